// Copyright (C) 2025 AP2 Project
//
// This file is part of ap2-go.
//
// ap2-go is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ap2-go is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with ap2-go.  If not, see <https://www.gnu.org/licenses/>.

package authorization

import (
	"context"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ap2-project/ap2-go/pkg/canonical"
	"github.com/ap2-project/ap2-go/pkg/did"
	"github.com/ap2-project/ap2-go/pkg/keys"
	"github.com/ap2-project/ap2-go/pkg/mandate"
	"github.com/ap2-project/ap2-go/pkg/nonce"
	"github.com/ap2-project/ap2-go/pkg/resolver"
)

// UserAuthorizationSeparator joins the issuer JWT and the key-binding
// JWT. This two-full-JWT convention resembles SD-JWT+KB but performs no
// selective disclosure; it is this system's own format and is not
// interoperable with external SD-JWT libraries.
const UserAuthorizationSeparator = "~"

// DefaultCredentialTTL is the lifetime of an issued user credential
const DefaultCredentialTTL = 24 * time.Hour

// TransactionData binds a user authorization to both documents of the
// transaction at once, preventing a valid authorization from being
// replayed against a different cart or payment.
type TransactionData struct {
	CartMandateHash    string `json:"cart_mandate_hash"`
	PaymentMandateHash string `json:"payment_mandate_hash"`
}

// challenge derives the WebAuthn challenge from the transaction data
func (t TransactionData) challenge() (string, error) {
	return canonical.Hash(t)
}

// CredentialIssuer issues user credentials: JWTs binding a user to their
// device public key via the cnf.jwk claim. Played by the credential
// provider service.
type CredentialIssuer struct {
	issuerDID did.AgentDID
	kid       did.KeyID
	keyPair   keys.KeyPair
	ttl       time.Duration
	now       func() time.Time
}

// NewCredentialIssuer creates an issuer for the credential provider identity
func NewCredentialIssuer(issuerDID did.AgentDID, kid did.KeyID, keyPair keys.KeyPair, ttl time.Duration) (*CredentialIssuer, error) {
	if err := issuerDID.Validate(); err != nil {
		return nil, err
	}
	if kid.DID() != issuerDID {
		return nil, fmt.Errorf("kid %s does not belong to %s", kid, issuerDID)
	}
	if keyPair == nil {
		return nil, fmt.Errorf("key pair cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	return &CredentialIssuer{
		issuerDID: issuerDID,
		kid:       kid,
		keyPair:   keyPair,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// IssueUserCredential issues the credential JWT for a user's device key
func (ci *CredentialIssuer) IssueUserCredential(userID string, processorDID did.AgentDID, devicePub crypto.PublicKey) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id cannot be empty")
	}
	if err := processorDID.Validate(); err != nil {
		return "", fmt.Errorf("invalid processor DID: %w", err)
	}

	jwk, err := keys.NewJWK(devicePub)
	if err != nil {
		return "", fmt.Errorf("failed to encode device key: %w", err)
	}

	method, err := signingMethodFor(ci.keyPair)
	if err != nil {
		return "", err
	}

	iat := ci.now().UTC()
	claims := jwt.MapClaims{
		"iss": ci.issuerDID.String(),
		"sub": userID,
		"aud": processorDID.String(),
		"iat": iat.Unix(),
		"exp": iat.Add(ci.ttl).Unix(),
		"cnf": map[string]any{"jwk": jwk},
	}

	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = ci.kid.String()

	signed, err := token.SignedString(ci.keyPair.Private())
	if err != nil {
		return "", fmt.Errorf("failed to sign user credential: %w", err)
	}
	return signed, nil
}

// PaymentAuthorizer builds user payment authorizations on the holder
// side, using the user's device key (the key bound by the credential's
// cnf claim).
type PaymentAuthorizer struct {
	deviceKey keys.KeyPair
	rpID      string
	origin    string
	now       func() time.Time
}

// NewPaymentAuthorizer creates an authorizer for the user's device
func NewPaymentAuthorizer(deviceKey keys.KeyPair, rpID, origin string) (*PaymentAuthorizer, error) {
	if deviceKey == nil {
		return nil, fmt.Errorf("device key cannot be nil")
	}
	return &PaymentAuthorizer{
		deviceKey: deviceKey,
		rpID:      rpID,
		origin:    origin,
		now:       time.Now,
	}, nil
}

// AuthorizePayment builds the user authorization
// "<issuer_jwt>~<key_binding_jwt>" binding the user's device signature to
// the signed cart and the payment mandate simultaneously.
//
// The cart hash covers the complete signed CartMandate; the payment hash
// covers the PaymentMandate without its user_authorization field (which
// this call produces).
func (a *PaymentAuthorizer) AuthorizePayment(issuerJWT string, cart *mandate.CartMandate, payment *mandate.PaymentMandate, audience string) (string, error) {
	if issuerJWT == "" {
		return "", fmt.Errorf("issuer credential cannot be empty")
	}
	if cart == nil || payment == nil {
		return "", fmt.Errorf("cart and payment mandates are required")
	}
	if cart.Status != mandate.CartStatusSigned {
		return "", fmt.Errorf("cart %s is not merchant-signed", cart.Contents.ID)
	}

	txData, err := newTransactionData(cart, payment)
	if err != nil {
		return "", err
	}

	challenge, err := txData.challenge()
	if err != nil {
		return "", fmt.Errorf("failed to derive challenge: %w", err)
	}

	assertion, err := NewAssertion(a.deviceKey, a.rpID, a.origin, challenge)
	if err != nil {
		return "", err
	}

	kbNonce, err := nonce.NewNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	method, err := signingMethodFor(a.deviceKey)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"aud":                         audience,
		"iat":                         a.now().UTC().Unix(),
		"nonce":                       kbNonce,
		"transaction_data":            txData,
		"webauthn_signature":          base64.StdEncoding.EncodeToString(assertion.Signature),
		"webauthn_authenticator_data": base64.StdEncoding.EncodeToString(assertion.AuthenticatorData),
		"webauthn_client_data_json":   string(assertion.ClientDataJSON),
	}

	kbToken, err := jwt.NewWithClaims(method, claims).SignedString(a.deviceKey.Private())
	if err != nil {
		return "", fmt.Errorf("failed to sign key-binding JWT: %w", err)
	}

	return issuerJWT + UserAuthorizationSeparator + kbToken, nil
}

// PaymentVerifier verifies user payment authorizations on the processor side
type PaymentVerifier struct {
	resolver     resolver.KeyResolver
	processorDID did.AgentDID
	now          func() time.Time
}

// NewPaymentVerifier creates a verifier acting as the given payment processor
func NewPaymentVerifier(keyResolver resolver.KeyResolver, processorDID did.AgentDID) (*PaymentVerifier, error) {
	if keyResolver == nil {
		return nil, fmt.Errorf("key resolver cannot be nil")
	}
	if err := processorDID.Validate(); err != nil {
		return nil, err
	}
	return &PaymentVerifier{
		resolver:     keyResolver,
		processorDID: processorDID,
		now:          time.Now,
	}, nil
}

// VerifyPayment verifies a payment mandate's user authorization against
// the cart and payment mandates actually presented.
//
// A structurally incomplete mandate (no user_authorization at all) is
// rejected before any cryptographic work: that is a specification
// violation, not a crypto failure.
func (v *PaymentVerifier) VerifyPayment(ctx context.Context, cart *mandate.CartMandate, payment *mandate.PaymentMandate) error {
	if cart == nil || payment == nil {
		return fmt.Errorf("cart and payment mandates are required")
	}
	if payment.UserAuthorization == "" {
		return mandate.ErrMissingUserAuthorization
	}

	parts := strings.Split(payment.UserAuthorization, UserAuthorizationSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("malformed user authorization: want issuer_jwt%skb_jwt", UserAuthorizationSeparator)
	}

	devicePub, deviceKeyType, err := v.verifyIssuerJWT(ctx, parts[0])
	if err != nil {
		return err
	}

	kbClaims, err := v.verifyKeyBindingJWT(parts[1], devicePub)
	if err != nil {
		return err
	}

	// Recompute both hashes from the documents actually presented.
	// Matching the claims proves this authorization was minted for this
	// exact (cart, payment) pair and no other.
	expected, err := newTransactionData(cart, payment)
	if err != nil {
		return err
	}

	claimed, err := transactionDataClaim(kbClaims)
	if err != nil {
		return err
	}
	if claimed.CartMandateHash != expected.CartMandateHash {
		return fmt.Errorf("user authorization bound to a different cart")
	}
	if claimed.PaymentMandateHash != expected.PaymentMandateHash {
		return fmt.Errorf("user authorization bound to a different payment mandate")
	}

	assertion, err := assertionClaims(kbClaims)
	if err != nil {
		return err
	}

	challenge, err := expected.challenge()
	if err != nil {
		return fmt.Errorf("failed to derive challenge: %w", err)
	}

	if err := assertion.Verify(deviceKeyType, devicePub, challenge); err != nil {
		return fmt.Errorf("user authorization rejected: %w", err)
	}

	return nil
}

// verifyIssuerJWT verifies the credential provider's JWT and extracts
// the bound device key from cnf.jwk.
func (v *PaymentVerifier) verifyIssuerJWT(ctx context.Context, raw string) (crypto.PublicKey, keys.KeyType, error) {
	token, err := jwt.Parse(raw, v.issuerKeyFunc(ctx),
		jwt.WithValidMethods(validSigningMethods),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(v.processorDID.String()),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, "", fmt.Errorf("issuer credential rejected: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "", fmt.Errorf("issuer credential has unexpected claims type")
	}

	cnf, ok := claims["cnf"].(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("issuer credential missing cnf claim")
	}
	rawJWK, err := json.Marshal(cnf["jwk"])
	if err != nil {
		return nil, "", fmt.Errorf("invalid cnf.jwk claim: %w", err)
	}
	var jwk keys.JWK
	if err := json.Unmarshal(rawJWK, &jwk); err != nil {
		return nil, "", fmt.Errorf("invalid cnf.jwk claim: %w", err)
	}

	devicePub, err := jwk.PublicKey()
	if err != nil {
		return nil, "", fmt.Errorf("invalid bound device key: %w", err)
	}
	return devicePub, jwk.KeyType(), nil
}

// verifyKeyBindingJWT verifies the holder's JWT with the device key from
// the credential's cnf claim: possession of that key at time of use is
// exactly what the key-binding JWT proves.
func (v *PaymentVerifier) verifyKeyBindingJWT(raw string, devicePub crypto.PublicKey) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw,
		func(t *jwt.Token) (any, error) { return devicePub, nil },
		jwt.WithValidMethods(validSigningMethods),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("key-binding JWT rejected: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("key-binding JWT has unexpected claims type")
	}
	return claims, nil
}

func (v *PaymentVerifier) issuerKeyFunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, err := kidHeader(t)
		if err != nil {
			return nil, err
		}

		claims, ok := t.Claims.(jwt.MapClaims)
		if !ok {
			return nil, fmt.Errorf("unexpected claims type")
		}
		iss, err := stringClaim(claims, "iss")
		if err != nil {
			return nil, err
		}
		if did.KeyID(kid).DID() != did.AgentDID(iss) {
			return nil, fmt.Errorf("kid %s does not belong to issuer %s", kid, iss)
		}

		pub, err := v.resolver.ResolvePublicKey(ctx, did.KeyID(kid))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve issuer key: %w", err)
		}
		return pub, nil
	}
}

// newTransactionData computes the dual hashes binding an authorization
// to its cart and payment.
func newTransactionData(cart *mandate.CartMandate, payment *mandate.PaymentMandate) (TransactionData, error) {
	cartHash, err := canonical.Hash(cart)
	if err != nil {
		return TransactionData{}, fmt.Errorf("failed to hash cart mandate: %w", err)
	}

	paymentHash, err := canonical.HashWithout(payment, "user_authorization")
	if err != nil {
		return TransactionData{}, fmt.Errorf("failed to hash payment mandate: %w", err)
	}

	return TransactionData{
		CartMandateHash:    cartHash,
		PaymentMandateHash: paymentHash,
	}, nil
}

// transactionDataClaim extracts the transaction_data claim
func transactionDataClaim(claims jwt.MapClaims) (TransactionData, error) {
	raw, err := json.Marshal(claims["transaction_data"])
	if err != nil {
		return TransactionData{}, fmt.Errorf("invalid transaction_data claim: %w", err)
	}

	var td TransactionData
	if err := json.Unmarshal(raw, &td); err != nil {
		return TransactionData{}, fmt.Errorf("invalid transaction_data claim: %w", err)
	}
	if td.CartMandateHash == "" || td.PaymentMandateHash == "" {
		return TransactionData{}, fmt.Errorf("transaction_data claim is incomplete")
	}
	return td, nil
}

// assertionClaims extracts the WebAuthn assertion from key-binding claims
func assertionClaims(claims jwt.MapClaims) (*Assertion, error) {
	sigB64, err := stringClaim(claims, "webauthn_signature")
	if err != nil {
		return nil, err
	}
	authDataB64, err := stringClaim(claims, "webauthn_authenticator_data")
	if err != nil {
		return nil, err
	}
	cdj, err := stringClaim(claims, "webauthn_client_data_json")
	if err != nil {
		return nil, err
	}

	signature, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("invalid webauthn_signature encoding: %w", err)
	}
	authData, err := base64.StdEncoding.DecodeString(authDataB64)
	if err != nil {
		return nil, fmt.Errorf("invalid webauthn_authenticator_data encoding: %w", err)
	}

	return &Assertion{
		Signature:         signature,
		AuthenticatorData: authData,
		ClientDataJSON:    []byte(cdj),
	}, nil
}
