/*
Package mapspace establishes new unprivileged Linux user namespaces with a
full range of user and group IDs mapped into them, orchestrating the two
setuid mapping helpers newuidmap(1) and newgidmap(1) — and nothing but
unprivileged operations otherwise.

Creating a user namespace without privileges is easy; getting more than a
single ID mapped into it is not: the kernel only accepts multi-entry
mappings written by the setuid mapping helpers, and these helpers must act
on the target process from the outside, after the new user namespace
exists. mapspace solves this chicken-and-egg situation with a small,
strictly ordered handshake between three processes:

 1. the orchestrator creates a close-notification pipe and spawns the
    mapping delegate — a fresh process image of this very executable —
    handing it both fully pre-built mapping tool argument vectors;
 2. the orchestrator detaches into its new user namespace and only then
    closes the pipe's write end;
 3. the delegate, unblocked by the closed pipe, spawns newgidmap with the
    pre-built arguments, waits for it, and finally replaces its own
    process image with newuidmap;
 4. the orchestrator reaps the delegate, whose exit status tells it
    whether both mappings are now in place.

The pipe carries no payload; closing the write end is the only signal ever
sent. This ordering guarantees that the mapping tools never run before the
target namespace exists, and the pre-built argument vectors guarantee that
no child ever needs to construct data of its own between being spawned and
replacing its image.

# Usage in Go programs

[EstablishSelf] is the literal orchestrator contract, including the
unshare(2) step. The Linux kernel refuses CLONE_NEWUSER unsharing for
multi-threaded processes, and Go processes are always multi-threaded, so
for ordinary Go programs the supported route is [Cmd] (or [Command] and
[Self]): it applies CLONE_NEWUSER through the clone primitive when
spawning a new process — so the namespace is guaranteed to exist the
moment the spawn returns — and then runs the identical delegate handshake
against that child. The child gates itself on [AwaitMapped] and thus only
proceeds once it really is root of a fully mapped namespace.

Programs using the default delegate re-exec must call [Init] first thing
in main; alternatively, point [WithDelegate] or [Cmd.DelegateExe] at a
build of the cmd/mapspace-delegate binary.

The [github.com/thediveo/mapspace/mapper] package provides a
Ginkgo-flavored client (and a matching service) that hands out new mapped
user namespaces to tests, including the namespace-referencing file
descriptors, transferred over unix domain sockets.
*/
package mapspace
