/*
Package uds transfers open file descriptors between cooperating processes
over peer-to-peer pairs of connected (stream) unix domain sockets.

The mapper service uses it to hand freshly established user namespaces —
in the form of namespace-referencing file descriptors — back to its
clients, together with the service connections of newly spawned mapped
service instances. Stream sockets additionally give both sides a reliable
end-of-conversation signal when the peer goes away.
*/
package uds
