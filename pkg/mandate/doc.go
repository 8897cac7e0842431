// Package mandate defines the Intent -> Cart -> Payment mandate chain
// and its stateless validation.
//
// Each mandate is created by one principal and is read-only thereafter,
// except for the cart's status transitions:
//
//	pending_merchant_signature -> signed    (merchant authorization attached)
//	pending_merchant_signature -> rejected  (explicit merchant refusal, terminal)
//
// ChainValidator runs the structural and linkage checks that must pass
// before any cryptographic verification: required fields (via
// go-playground/validator struct tags), the cart's intent_mandate_id
// linking back to the originating intent, payment amount equal to the
// cart total in both value and currency, and the presence of the
// payment's user_authorization. A missing user_authorization is a
// specification violation reported as ErrMissingUserAuthorization, never
// silently tolerated.
package mandate
