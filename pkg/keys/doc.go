// Package keys provides the key material model for AP2 agents.
//
// Agents hold a KeyPair (Ed25519 or ECDSA P-256) used to sign envelope
// proofs and authorization JWTs. Public keys travel in two forms:
//
//   - multibase base58btc strings ("z..."), embedded in envelope proofs
//     and DID document verificationMethod entries
//   - JWK objects, embedded in the issuer JWT's cnf claim to bind a
//     user's device key to their credential
//
// Signing convention: Ed25519 signs the message bytes directly, ECDSA
// signs the SHA-256 digest of the message with an ASN.1-encoded
// signature. Verify applies the matching convention and fails closed on
// any key-type mismatch.
package keys
