// Package codec converts telemetry records to and from the opaque bytes
// kept by the row store.
//
// Every Codec rejects records it cannot represent with an *EncodeError and
// bytes it cannot read with a *DecodeError. The persistence engine treats a
// DecodeError as a corrupt row and deletes it, so Decode must never panic.
package codec
