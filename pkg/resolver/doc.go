// Package resolver resolves AP2 principals' public keys from their kids.
//
// Two implementations are provided:
//
//   - LocalKeyStore: an in-process table for agents that exchange keys
//     out of band (tests, demos, closed deployments)
//   - RegistryResolver: an HTTP DID-registry client with a read-through
//     document cache; the registry remains the source of truth
//
// The registry protocol is GET <registry>/did/<did> returning a DID
// document whose verificationMethod entries carry multibase public keys.
// A 404 or timeout is a resolution failure, which the envelope verifier
// folds into signature-verification failure.
package resolver
