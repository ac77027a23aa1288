/*
Package main provides the command for running a mapper service as a separate
process. This command is not intended to be run directly from the CLI, but
instead only from [mapper.Client] and [service.Mapmaker].

The command expects the file descriptor number 3 to be open and to be a
connected unix domain socket. This socket is then used to receive service
requests and to send back responses.

When spawned into a new user namespace by a Mapmaker, the command first gates
itself until its ID mappings have been fully established. The same executable
also doubles as the mapping delegate, so it must never do anything before
checking for the delegate role.

The command terminates when the connected peer socket closes (disconnects).
*/
package main
