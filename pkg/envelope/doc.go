// Package envelope implements the signed message envelope protocol for
// AP2 agent-to-agent exchanges.
//
// An envelope wraps a typed payload (or a returned artifact) in a header
// carrying the sender and recipient DIDs, an RFC 3339 UTC timestamp, a
// single-use nonce, and a proof. The proof covers the SHA-256 digest of
// the RFC 8785 canonical form of the header (without the proof itself)
// plus the data part, so verification is independent of transport and of
// JSON key ordering.
//
// # Building envelopes
//
//	codec, err := envelope.NewCodec(agentDID, kid, keyPair, nonces, keyResolver)
//	env, err := codec.CreateResponseMessage(peerDID, "ap2.mandates.IntentMandate", intent.ID, intent, true)
//
// # Verifying and dispatching
//
//	codec.RegisterHandler("ap2.mandates.IntentMandate", handleIntent)
//	result, err := codec.HandleMessage(ctx, env)
//
// Verification fails closed: a missing proof, an unsupported algorithm, a
// malformed kid, a kid whose DID differs from the claimed sender, a stale
// or unparsable timestamp, a replayed nonce, a failed key resolution, or
// a signature mismatch all yield false with no further processing. Nonce
// consumption happens during verification, so the same envelope never
// verifies twice.
//
// Cryptographic and structural violations are fatal for the message and
// are never retried; retrying cannot change the outcome.
package envelope
