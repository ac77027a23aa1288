/*
Package mapper provides a client to create and communicate with so-called
“mapper services” that on demand spawn service instances into new user
namespaces with full UID and GID range mappings established.

Using mapper clients (and the mapper services they are automatically
connected to) works around the restriction Linux imposes on multi-threaded
processes such as Go programs, where no new user namespace can be detached
into after the “before the Go runtime phase”: the mapper service spawns a
child process into its new user namespace instead and orchestrates the setuid
newuidmap and newgidmap tools to write the child's ID mappings, releasing the
child only once both mappings are in place.

Package mapper thus is a “pure Go” alternative to shell scripts juggling
around with the [unshare(1)] command and the mapping tools, avoiding the
tedious and brittle passing of namespace information back into the Go code.

# Important

Make sure to call [gexec.CleanupBuildArtifacts] in your AfterSuite when using
this package.

[unshare(1)]: https://www.man7.org/linux/man-pages/man1/unshare.1.html
*/
package mapper

import "github.com/thediveo/mapspace"

var _ = mapspace.EstablishSelf // make mapspace.xxx true hyperlinks
