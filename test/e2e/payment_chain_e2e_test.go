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

package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ap2-project/ap2-go/pkg/authorization"
	"github.com/ap2-project/ap2-go/pkg/client"
	"github.com/ap2-project/ap2-go/pkg/did"
	"github.com/ap2-project/ap2-go/pkg/envelope"
	"github.com/ap2-project/ap2-go/pkg/keys"
	"github.com/ap2-project/ap2-go/pkg/mandate"
	"github.com/ap2-project/ap2-go/pkg/nonce"
	"github.com/ap2-project/ap2-go/pkg/resolver"
)

// merchantService is an in-test merchant agent: signs carts, with
// deferred signing for carts flagged for review.
type merchantService struct {
	authorizer *authorization.CartAuthorizer

	mu     sync.RWMutex
	signed map[string]*mandate.CartMandate
	review bool
}

func (m *merchantService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sign/cart", func(w http.ResponseWriter, r *http.Request) {
		var cart mandate.CartMandate
		if err := json.NewDecoder(r.Body).Decode(&cart); err != nil {
			http.Error(w, "malformed cart", http.StatusBadRequest)
			return
		}

		if m.review {
			deferred := cart
			go func() {
				time.Sleep(50 * time.Millisecond)
				m.sign(&deferred)
			}()

			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"status":          string(mandate.CartStatusPending),
				"cart_mandate_id": cart.Contents.ID,
			})
			return
		}

		m.sign(&cart)
		json.NewEncoder(w).Encode(map[string]any{"signed_cart_mandate": &cart})
	})

	mux.HandleFunc("GET /cart-mandates/signed/{id}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		cart, ok := m.signed[r.PathValue("id")]
		m.mu.RUnlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(cart)
	})

	return mux
}

func (m *merchantService) sign(cart *mandate.CartMandate) {
	token, err := m.authorizer.SignCart(cart.Contents)
	if err != nil {
		return
	}
	if err := cart.AttachMerchantAuthorization(token); err != nil {
		return
	}

	m.mu.Lock()
	m.signed[cart.Contents.ID] = cart
	m.mu.Unlock()
}

// credentialService exposes PaymentVerifier as an attestation endpoint
type credentialService struct {
	verifier *authorization.PaymentVerifier
}

func (c *credentialService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /verify/attestation", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CartMandate    *mandate.CartMandate    `json:"cart_mandate"`
			PaymentMandate *mandate.PaymentMandate `json:"payment_mandate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed request", http.StatusBadRequest)
			return
		}

		result := client.AttestationResult{Verified: true}
		if err := c.verifier.VerifyPayment(r.Context(), req.CartMandate, req.PaymentMandate); err != nil {
			result = client.AttestationResult{
				Verified: false,
				Details:  map[string]string{"reason": err.Error()},
			}
		}
		json.NewEncoder(w).Encode(result)
	})

	return mux
}

// fixture wires every principal of the flow together
type fixture struct {
	store        *resolver.LocalKeyStore
	processorDID did.AgentDID

	merchantDID did.AgentDID
	merchant    *merchantService

	issuerJWT string
	deviceKey keys.KeyPair
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := resolver.NewLocalKeyStore()
	processorDID := did.New("processor", "paynet")

	merchantDID := did.New("merchant", "ticket-shop")
	merchantKid := did.NewKeyID(merchantDID, 1)
	merchantKey, err := keys.GenerateEd25519()
	require.NoError(t, err)
	require.NoError(t, store.Register(merchantKid, merchantKey.Public()))

	cartAuthorizer, err := authorization.NewCartAuthorizer(merchantDID, merchantKid, merchantKey)
	require.NoError(t, err)

	issuerDID := did.New("issuer", "bank")
	issuerKid := did.NewKeyID(issuerDID, 1)
	issuerKey, err := keys.GenerateEd25519()
	require.NoError(t, err)
	require.NoError(t, store.Register(issuerKid, issuerKey.Public()))

	issuer, err := authorization.NewCredentialIssuer(issuerDID, issuerKid, issuerKey, 0)
	require.NoError(t, err)

	deviceKey, err := keys.GenerateECDSA()
	require.NoError(t, err)

	issuerJWT, err := issuer.IssueUserCredential("user_alice", processorDID, deviceKey.Public())
	require.NoError(t, err)

	return &fixture{
		store:        store,
		processorDID: processorDID,
		merchantDID:  merchantDID,
		merchant: &merchantService{
			authorizer: cartAuthorizer,
			signed:     make(map[string]*mandate.CartMandate),
		},
		issuerJWT: issuerJWT,
		deviceKey: deviceKey,
	}
}

func ticketCart(intentID string) *mandate.CartMandate {
	contents := mandate.CartContents{
		ID: "cart_e2e_1",
		Items: []mandate.CartItem{
			{ID: "sku_ticket", Name: "Saturday concert ticket", Quantity: 2, Price: mandate.Money{Value: 4000, Currency: "JPY"}},
		},
		Total:        mandate.Money{Value: 8000, Currency: "JPY"},
		MerchantName: "Ticket Shop",
		Expiry:       time.Now().UTC().Add(time.Hour),
	}
	return mandate.NewCartMandate(contents, intentID)
}

func TestPaymentChainEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	merchantSrv := httptest.NewServer(f.merchant.handler())
	defer merchantSrv.Close()

	credentialSrv := httptest.NewServer((&credentialService{
		verifier: mustPaymentVerifier(t, f.store, f.processorDID),
	}).handler())
	defer credentialSrv.Close()

	// Intent
	shopperDID := did.New("agent", "shopper")
	intent := mandate.NewIntentMandate(shopperDID, "2 tickets for the Saturday concert", nil, time.Hour)

	// Cart signed by the merchant over HTTP
	merchantClient, err := client.NewMerchantClient(merchantSrv.URL, nil)
	require.NoError(t, err)

	result, err := merchantClient.RequestCartSignature(ctx, ticketCart(intent.ID))
	require.NoError(t, err)
	require.NotNil(t, result.SignedCart)
	cart := result.SignedCart
	assert.Equal(t, mandate.CartStatusSigned, cart.Status)

	// User authorization on the device
	payment := mandate.NewPaymentMandate(cart.Contents.Total, "user_alice", f.merchantDID.String(), "card_1")

	payAuthorizer, err := authorization.NewPaymentAuthorizer(f.deviceKey, "wallet.example", "https://wallet.example")
	require.NoError(t, err)
	userAuth, err := payAuthorizer.AuthorizePayment(f.issuerJWT, cart, payment, f.processorDID.String())
	require.NoError(t, err)
	payment.UserAuthorization = userAuth

	// Processor-side verification
	require.NoError(t, mandate.NewChainValidator().ValidateChain(intent, cart, payment))

	cartVerifier, err := authorization.NewCartVerifier(f.store, "did:ap2:merchant:")
	require.NoError(t, err)
	require.NoError(t, cartVerifier.VerifyCart(ctx, cart))

	require.NoError(t, mustPaymentVerifier(t, f.store, f.processorDID).VerifyPayment(ctx, cart, payment))

	// Credential provider attestation over HTTP agrees
	credentialClient, err := client.NewCredentialClient(credentialSrv.URL, nil)
	require.NoError(t, err)

	attestation, err := credentialClient.VerifyAttestation(ctx, cart, payment)
	require.NoError(t, err)
	assert.True(t, attestation.Verified)

	// A mutated price is caught at every binding hash
	t.Run("price mutation rejected", func(t *testing.T) {
		mutated := *cart
		mutated.Contents.Total = mandate.Money{Value: 9000, Currency: "JPY"}

		err := cartVerifier.VerifyCart(ctx, &mutated)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hash mismatch")

		err = mustPaymentVerifier(t, f.store, f.processorDID).VerifyPayment(ctx, &mutated, payment)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "different cart")

		attestation, err := credentialClient.VerifyAttestation(ctx, &mutated, payment)
		require.NoError(t, err)
		assert.False(t, attestation.Verified)
	})
}

func TestPaymentChainWithDeferredMerchantSigning(t *testing.T) {
	f := newFixture(t)
	f.merchant.review = true
	ctx := context.Background()

	merchantSrv := httptest.NewServer(f.merchant.handler())
	defer merchantSrv.Close()

	merchantClient, err := client.NewMerchantClient(merchantSrv.URL, nil)
	require.NoError(t, err)

	intent := mandate.NewIntentMandate(did.New("agent", "shopper"), "2 tickets", nil, time.Hour)

	result, err := merchantClient.RequestCartSignature(ctx, ticketCart(intent.ID))
	require.NoError(t, err)
	require.True(t, result.Pending)

	cart, err := merchantClient.WaitForSignedCart(ctx, result.CartMandateID, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, mandate.CartStatusSigned, cart.Status)

	cartVerifier, err := authorization.NewCartVerifier(f.store, "did:ap2:merchant:")
	require.NoError(t, err)
	assert.NoError(t, cartVerifier.VerifyCart(ctx, cart))
}

func TestSignedCartTravelsAsEnvelopeArtifact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shopperDID := did.New("agent", "shopper")
	shopperKid := did.NewKeyID(shopperDID, 1)
	shopperKey, err := keys.GenerateEd25519()
	require.NoError(t, err)
	require.NoError(t, f.store.Register(shopperKid, shopperKey.Public()))

	// Second key of the merchant, used only for envelope signing
	merchantKey, err := keys.GenerateEd25519()
	require.NoError(t, err)
	envelopeKid := did.NewKeyID(f.merchantDID, 2)
	require.NoError(t, f.store.Register(envelopeKid, merchantKey.Public()))

	merchantCodec, err := envelope.NewCodec(f.merchantDID, envelopeKid, merchantKey,
		nonce.NewManager(nonce.DefaultTTL), f.store)
	require.NoError(t, err)

	shopperCodec, err := envelope.NewCodec(shopperDID, shopperKid, shopperKey,
		nonce.NewManager(nonce.DefaultTTL), f.store)
	require.NoError(t, err)

	cart := ticketCart("intent_e2e")
	f.merchant.sign(cart)

	env, err := merchantCodec.CreateArtifactResponse(shopperDID, "signed_cart_mandate", cart, true)
	require.NoError(t, err)

	assert.True(t, shopperCodec.VerifyMessageSignature(ctx, env))
	require.NotNil(t, env.DataPart.Artifact)

	var received mandate.CartMandate
	require.NoError(t, json.Unmarshal(env.DataPart.Artifact.Parts[0].Data, &received))
	assert.Equal(t, mandate.CartStatusSigned, received.Status)
	assert.Equal(t, cart.Contents.Total, received.Contents.Total)

	// Replay of the exact same envelope is rejected
	assert.False(t, shopperCodec.VerifyMessageSignature(ctx, env))
}

func mustPaymentVerifier(t *testing.T, store *resolver.LocalKeyStore, processorDID did.AgentDID) *authorization.PaymentVerifier {
	t.Helper()
	v, err := authorization.NewPaymentVerifier(store, processorDID)
	require.NoError(t, err)
	return v
}
