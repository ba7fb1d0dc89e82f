// Package query answers UDP query requests with the status of a Foundation
// server. The server describes itself through a Provider; the package handles
// the handshake tokens and the key/value encoding query clients expect.
package query
