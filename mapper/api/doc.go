/*
Package api defines the specific protocol requests and responses used between
clients and servers of the “mapper” user namespace mapping service. These
protocol elements are exchanged using the [gob] encoding/decoding scheme;
namespace references travel as file descriptors piggybacked onto the
messages.

The api package automatically registers the individual protocol element types
so that they can be especially used in receiving (polymorphous) interface
values.
*/
package api
