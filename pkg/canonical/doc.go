// Package canonical provides deterministic JSON canonicalization and
// SHA-256 digesting for the AP2 trust layer.
//
// Everything in the mandate chain that is hashed or signed goes through
// this package: envelope proofs cover the canonical form of the header
// and data part, merchant cart authorizations bind a JWT to the canonical
// hash of the cart contents, and user payment authorizations bind a
// device signature to the canonical hashes of both the signed cart and
// the payment mandate.
//
// Canonicalization follows RFC 8785 (JSON Canonicalization Scheme) via
// github.com/gowebpki/jcs. Digests are rendered as URL-safe base64
// without padding:
//
//	hash, err := canonical.Hash(cart.Contents)
//
// The contract is cross-language: an implementation in any language given
// the same logical JSON value must produce the same hash string, or no
// signature exchanged between agents is meaningful.
package canonical
