// Package proxy implements the plugin-message protocol spoken between a network
// proxy and the backend servers behind it.
//
// Messages are tagged with an Action whose content types form a positional
// schema: the writer of an OutgoingMessage and the reader of the matching
// IncomingMessage must walk the same slots in the same order. The wire format
// follows Java's DataOutput conventions so that proxies written against the
// BungeeCord API can read and produce the same payloads.
package proxy
