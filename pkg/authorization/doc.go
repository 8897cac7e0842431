// Package authorization implements the two cryptographic authorizations
// of the mandate chain: the merchant's cart authorization and the user's
// payment authorization.
//
// The merchant authorization is a JWT whose cart_hash claim is the
// canonical hash of the cart contents. Verifiers recompute the hash from
// the contents actually presented, so any post-signing modification of
// the cart is detected regardless of transport.
//
// The user authorization is two tilde-joined JWTs:
//
//	<issuer_jwt>~<key_binding_jwt>
//
// The issuer JWT is minted by the credential provider and binds a user
// to their device public key through the cnf.jwk claim. The key-binding
// JWT is signed by that device key and carries a transaction_data claim
// with the canonical hashes of both the signed cart mandate and the
// payment mandate (computed without its user_authorization field), plus
// a WebAuthn assertion whose challenge derives from those same hashes.
// One authorization therefore proves: the credential provider vouches
// for the user, the user's device was present and active, and the
// approval covers exactly this cart and this payment.
package authorization
