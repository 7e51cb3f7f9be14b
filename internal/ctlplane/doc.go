// Package ctlplane carries reload requests and status between the daemon and
// the scribe CLI.
//
// # Overview
//
// The daemon owns a [Channel]. External requesters set its reload flag and
// block until the event loop completes the cycle; the loop polls the flag
// once per tick, publishes progress while it rebuilds, and completes the
// request with a result code (0 success, -1 failure).
//
// [Server] exposes the channel over net/rpc on a unix socket under the name
// "Control". [Client] dials it and reconnects when the daemon restarts.
//
//	scribe reload → Client → unix socket → Control.Reload → Channel ⇄ event loop
//
// # Adding RPC Methods
//
//  1. Define request/reply types in types.go
//  2. Add the method to Control in server.go
//  3. Add the client method in client.go and the interface in client_interface.go
//  4. Add the mock in client_mock.go
package ctlplane
