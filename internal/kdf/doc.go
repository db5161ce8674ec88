// Package kdf turns a plaintext password into a fixed-length derived key
// with scrypt and dispatches those derivations onto a bounded pool of
// background workers.
//
// Derivation is deliberately expensive. Callers on a request path should go
// through Deriver, which enforces a timeout so a pathological cost parameter
// cannot hang a request.
package kdf
