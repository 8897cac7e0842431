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
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ap2-project/ap2-go/pkg/did"
	"github.com/ap2-project/ap2-go/pkg/keys"
	"github.com/ap2-project/ap2-go/pkg/mandate"
	"github.com/ap2-project/ap2-go/pkg/resolver"
)

// paymentFixture wires up every principal of a payment authorization:
// credential issuer, merchant, user device and payment processor.
type paymentFixture struct {
	store        *resolver.LocalKeyStore
	processorDID did.AgentDID

	issuer     *CredentialIssuer
	authorizer *PaymentAuthorizer
	verifier   *PaymentVerifier

	deviceKey keys.KeyPair
	issuerJWT string

	cart    *mandate.CartMandate
	payment *mandate.PaymentMandate
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	store := resolver.NewLocalKeyStore()
	processorDID := did.New("processor", "paynet")

	// Credential issuer
	issuerDID := did.New("issuer", "bank")
	issuerKid := did.NewKeyID(issuerDID, 1)
	issuerKey, err := keys.GenerateEd25519()
	require.NoError(t, err)
	require.NoError(t, store.Register(issuerKid, issuerKey.Public()))

	issuer, err := NewCredentialIssuer(issuerDID, issuerKid, issuerKey, 0)
	require.NoError(t, err)

	// User device
	deviceKey, err := keys.GenerateECDSA()
	require.NoError(t, err)

	issuerJWT, err := issuer.IssueUserCredential("user_alice", processorDID, deviceKey.Public())
	require.NoError(t, err)

	authorizer, err := NewPaymentAuthorizer(deviceKey, "wallet.example", "https://wallet.example")
	require.NoError(t, err)

	verifier, err := NewPaymentVerifier(store, processorDID)
	require.NoError(t, err)

	// Merchant-signed cart
	merchantDID := did.New("merchant", "ticket-shop")
	merchantKid := did.NewKeyID(merchantDID, 1)
	merchantKey, err := keys.GenerateEd25519()
	require.NoError(t, err)
	require.NoError(t, store.Register(merchantKid, merchantKey.Public()))

	cartAuthorizer, err := NewCartAuthorizer(merchantDID, merchantKid, merchantKey)
	require.NoError(t, err)

	contents := testCartContents()
	cart := mandate.NewCartMandate(contents, "intent_abc")
	token, err := cartAuthorizer.SignCart(contents)
	require.NoError(t, err)
	require.NoError(t, cart.AttachMerchantAuthorization(token))

	payment := mandate.NewPaymentMandate(contents.Total, "user_alice", merchantDID.String(), "card_1")

	return &paymentFixture{
		store:        store,
		processorDID: processorDID,
		issuer:       issuer,
		authorizer:   authorizer,
		verifier:     verifier,
		deviceKey:    deviceKey,
		issuerJWT:    issuerJWT,
		cart:         cart,
		payment:      payment,
	}
}

func (f *paymentFixture) authorize(t *testing.T) {
	t.Helper()
	auth, err := f.authorizer.AuthorizePayment(f.issuerJWT, f.cart, f.payment, f.processorDID.String())
	require.NoError(t, err)
	f.payment.UserAuthorization = auth
}

func TestAuthorizeAndVerifyPayment(t *testing.T) {
	f := newPaymentFixture(t)
	f.authorize(t)

	assert.NoError(t, f.verifier.VerifyPayment(context.Background(), f.cart, f.payment))
}

func TestVerifyPaymentFailsFastWithoutAuthorization(t *testing.T) {
	f := newPaymentFixture(t)

	err := f.verifier.VerifyPayment(context.Background(), f.cart, f.payment)
	assert.ErrorIs(t, err, mandate.ErrMissingUserAuthorization)
}

func TestVerifyPaymentRejectsMalformedAuthorization(t *testing.T) {
	f := newPaymentFixture(t)
	f.payment.UserAuthorization = "not-two-jwts"

	err := f.verifier.VerifyPayment(context.Background(), f.cart, f.payment)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed user authorization")
}

func TestVerifyPaymentRejectsDifferentPayment(t *testing.T) {
	f := newPaymentFixture(t)
	f.authorize(t)

	// Same authorization presented with a different payment mandate
	other := mandate.NewPaymentMandate(mandate.Money{Value: 9000, Currency: "JPY"},
		f.payment.PayerID, f.payment.PayeeID, f.payment.PaymentMethodID)
	other.UserAuthorization = f.payment.UserAuthorization

	err := f.verifier.VerifyPayment(context.Background(), f.cart, other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different payment mandate")
}

func TestVerifyPaymentRejectsMutatedCart(t *testing.T) {
	f := newPaymentFixture(t)
	f.authorize(t)

	mutated := *f.cart
	mutated.Contents.Total = mandate.Money{Value: 9000, Currency: "JPY"}

	err := f.verifier.VerifyPayment(context.Background(), &mutated, f.payment)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different cart")
}

func TestVerifyPaymentRejectsWrongProcessorAudience(t *testing.T) {
	f := newPaymentFixture(t)
	f.authorize(t)

	otherVerifier, err := NewPaymentVerifier(f.store, did.New("processor", "othernet"))
	require.NoError(t, err)

	err = otherVerifier.VerifyPayment(context.Background(), f.cart, f.payment)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
}

func TestVerifyPaymentRejectsExpiredCredential(t *testing.T) {
	f := newPaymentFixture(t)

	f.issuer.now = func() time.Time {
		return time.Now().Add(-2 * DefaultCredentialTTL)
	}
	expired, err := f.issuer.IssueUserCredential("user_alice", f.processorDID, f.deviceKey.Public())
	require.NoError(t, err)

	auth, err := f.authorizer.AuthorizePayment(expired, f.cart, f.payment, f.processorDID.String())
	require.NoError(t, err)
	f.payment.UserAuthorization = auth

	err = f.verifier.VerifyPayment(context.Background(), f.cart, f.payment)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifyPaymentRejectsForeignDeviceKey(t *testing.T) {
	f := newPaymentFixture(t)

	// Key-binding JWT signed by a key other than the credential's cnf key
	foreignKey, err := keys.GenerateECDSA()
	require.NoError(t, err)
	foreignAuthorizer, err := NewPaymentAuthorizer(foreignKey, "wallet.example", "https://wallet.example")
	require.NoError(t, err)

	auth, err := foreignAuthorizer.AuthorizePayment(f.issuerJWT, f.cart, f.payment, f.processorDID.String())
	require.NoError(t, err)
	f.payment.UserAuthorization = auth

	err = f.verifier.VerifyPayment(context.Background(), f.cart, f.payment)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key-binding JWT rejected")
}

func TestAuthorizePaymentRequiresSignedCart(t *testing.T) {
	f := newPaymentFixture(t)

	pending := mandate.NewCartMandate(testCartContents(), "intent_abc")
	_, err := f.authorizer.AuthorizePayment(f.issuerJWT, pending, f.payment, f.processorDID.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not merchant-signed")
}

func TestWebAuthnAssertionRoundTrip(t *testing.T) {
	deviceKey, err := keys.GenerateEd25519()
	require.NoError(t, err)

	assertion, err := NewAssertion(deviceKey, "wallet.example", "https://wallet.example", "challenge-1")
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, assertion.Verify(deviceKey.Type(), deviceKey.Public(), "challenge-1"))
	})

	t.Run("wrong challenge", func(t *testing.T) {
		err := assertion.Verify(deviceKey.Type(), deviceKey.Public(), "challenge-2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "challenge")
	})

	t.Run("wrong key", func(t *testing.T) {
		otherKey, err := keys.GenerateEd25519()
		require.NoError(t, err)
		assert.Error(t, assertion.Verify(otherKey.Type(), otherKey.Public(), "challenge-1"))
	})

	t.Run("tampered client data", func(t *testing.T) {
		tampered := *assertion
		tampered.ClientDataJSON = []byte(`{"type":"webauthn.get","challenge":"challenge-1","origin":"https://evil.example"}`)
		assert.Error(t, tampered.Verify(deviceKey.Type(), deviceKey.Public(), "challenge-1"))
	})
}
