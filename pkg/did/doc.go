// Package did defines the identifier model for AP2 principals.
//
// Every principal in the payment-authorization chain (buyer agent, merchant
// agent, credential issuer, payment processor, user) is named by a DID
// string of the form:
//
//	did:ap2:<role>:<name>
//
// and each of a principal's keys is named by a kid:
//
//	<did>#key-N
//
// The kid is embedded in envelope proofs and JWT headers so that the
// verifier can resolve exactly the key the signer used. The binding
// between a kid's DID component and a message's claimed sender is a core
// trust-layer invariant enforced by the envelope package.
package did
