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

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ap2-project/ap2-go/pkg/authorization"
	"github.com/ap2-project/ap2-go/pkg/did"
	"github.com/ap2-project/ap2-go/pkg/envelope"
	"github.com/ap2-project/ap2-go/pkg/keys"
	"github.com/ap2-project/ap2-go/pkg/mandate"
	"github.com/ap2-project/ap2-go/pkg/nonce"
	"github.com/ap2-project/ap2-go/pkg/resolver"
)

// This example walks the full mandate chain in one process:
// intent -> cart -> merchant signature -> user authorization -> verification.
func main() {
	fmt.Println("=== Payment Mandate Chain Example ===")
	fmt.Println()

	ctx := context.Background()
	store := resolver.NewLocalKeyStore()

	// Step 1: Create the principals and register their keys
	fmt.Println("Step 1: Creating principals...")

	shopperDID := did.New("agent", "shopper")
	shopperKid := did.NewKeyID(shopperDID, 1)
	shopperKey := mustKey(keys.GenerateEd25519())
	mustRegister(store, shopperKid, shopperKey)

	merchantDID := did.New("merchant", "ticket-shop")
	merchantKid := did.NewKeyID(merchantDID, 1)
	merchantKey := mustKey(keys.GenerateEd25519())
	mustRegister(store, merchantKid, merchantKey)

	issuerDID := did.New("issuer", "bank")
	issuerKid := did.NewKeyID(issuerDID, 1)
	issuerKey := mustKey(keys.GenerateEd25519())
	mustRegister(store, issuerKid, issuerKey)

	processorDID := did.New("processor", "paynet")

	// The user's device key never enters the registry; it travels inside
	// the credential's cnf claim.
	deviceKey := mustKey(keys.GenerateECDSA())

	fmt.Printf("  Shopper:   %s\n", shopperDID)
	fmt.Printf("  Merchant:  %s\n", merchantDID)
	fmt.Printf("  Issuer:    %s\n", issuerDID)
	fmt.Printf("  Processor: %s\n\n", processorDID)

	// Step 2: The shopper states intent
	fmt.Println("Step 2: Creating intent mandate...")
	intent := mandate.NewIntentMandate(shopperDID, "2 tickets for the Saturday concert", map[string]any{
		"max_total": 10000,
		"currency":  "JPY",
	}, time.Hour)
	fmt.Printf("  Intent: %s\n\n", intent.ID)

	// Step 3: The merchant assembles and signs a cart
	fmt.Println("Step 3: Merchant builds and signs the cart...")
	contents := mandate.CartContents{
		ID: "cart_demo_1",
		Items: []mandate.CartItem{
			{ID: "sku_ticket", Name: "Saturday concert ticket", Quantity: 2, Price: mandate.Money{Value: 4000, Currency: "JPY"}},
		},
		Total:        mandate.Money{Value: 8000, Currency: "JPY"},
		MerchantName: "Ticket Shop",
		Expiry:       time.Now().UTC().Add(time.Hour),
	}
	cart := mandate.NewCartMandate(contents, intent.ID)

	cartAuthorizer, err := authorization.NewCartAuthorizer(merchantDID, merchantKid, merchantKey)
	if err != nil {
		log.Fatalf("cart authorizer: %v", err)
	}
	cartJWT, err := cartAuthorizer.SignCart(contents)
	if err != nil {
		log.Fatalf("cart signing: %v", err)
	}
	if err := cart.AttachMerchantAuthorization(cartJWT); err != nil {
		log.Fatalf("attach authorization: %v", err)
	}
	fmt.Printf("  Cart %s signed, total %s\n\n", contents.ID, contents.Total)

	// Step 4: The issuer binds the user's device key to a credential
	fmt.Println("Step 4: Issuing user credential...")
	issuer, err := authorization.NewCredentialIssuer(issuerDID, issuerKid, issuerKey, 0)
	if err != nil {
		log.Fatalf("credential issuer: %v", err)
	}
	credential, err := issuer.IssueUserCredential("user_alice", processorDID, deviceKey.Public())
	if err != nil {
		log.Fatalf("issue credential: %v", err)
	}
	fmt.Println("  Credential issued for user_alice")
	fmt.Println()

	// Step 5: The user authorizes the payment on their device
	fmt.Println("Step 5: User authorizes the payment...")
	payment := mandate.NewPaymentMandate(contents.Total, "user_alice", merchantDID.String(), "card_visa_1")

	payAuthorizer, err := authorization.NewPaymentAuthorizer(deviceKey, "wallet.example", "https://wallet.example")
	if err != nil {
		log.Fatalf("payment authorizer: %v", err)
	}
	userAuth, err := payAuthorizer.AuthorizePayment(credential, cart, payment, processorDID.String())
	if err != nil {
		log.Fatalf("authorize payment: %v", err)
	}
	payment.UserAuthorization = userAuth
	fmt.Printf("  Payment %s authorized\n\n", payment.ID)

	// Step 6: The processor validates the whole chain
	fmt.Println("Step 6: Processor verifies the chain...")

	chainValidator := mandate.NewChainValidator()
	if err := chainValidator.ValidateChain(intent, cart, payment); err != nil {
		log.Fatalf("chain validation: %v", err)
	}
	fmt.Println("  Structural chain checks passed")

	cartVerifier, err := authorization.NewCartVerifier(store, "did:ap2:merchant:")
	if err != nil {
		log.Fatalf("cart verifier: %v", err)
	}
	if err := cartVerifier.VerifyCart(ctx, cart); err != nil {
		log.Fatalf("cart verification: %v", err)
	}
	fmt.Println("  Merchant cart authorization verified")

	payVerifier, err := authorization.NewPaymentVerifier(store, processorDID)
	if err != nil {
		log.Fatalf("payment verifier: %v", err)
	}
	if err := payVerifier.VerifyPayment(ctx, cart, payment); err != nil {
		log.Fatalf("payment verification: %v", err)
	}
	fmt.Println("  User payment authorization verified")
	fmt.Println()

	// Step 7: A tampered cart is rejected
	fmt.Println("Step 7: Demonstrating tamper detection...")
	tampered := *cart
	tampered.Contents.Total = mandate.Money{Value: 9000, Currency: "JPY"}
	if err := cartVerifier.VerifyCart(ctx, &tampered); err != nil {
		fmt.Printf("  Mutated cart rejected: %v\n\n", err)
	} else {
		log.Fatal("mutated cart was accepted")
	}

	// Step 8: Carry the signed cart in a signed envelope
	fmt.Println("Step 8: Sending the signed cart as an envelope artifact...")
	merchantCodec, err := envelope.NewCodec(merchantDID, merchantKid, merchantKey,
		nonce.NewManager(nonce.DefaultTTL), store)
	if err != nil {
		log.Fatalf("merchant codec: %v", err)
	}
	shopperCodec, err := envelope.NewCodec(shopperDID, shopperKid, shopperKey,
		nonce.NewManager(nonce.DefaultTTL), store)
	if err != nil {
		log.Fatalf("shopper codec: %v", err)
	}

	env, err := merchantCodec.CreateArtifactResponse(shopperDID, "signed_cart_mandate", cart, true)
	if err != nil {
		log.Fatalf("artifact envelope: %v", err)
	}
	if !shopperCodec.VerifyMessageSignature(ctx, env) {
		log.Fatal("artifact envelope failed verification")
	}
	fmt.Printf("  Envelope %s verified by the shopper\n", env.Header.MessageID)
	if shopperCodec.VerifyMessageSignature(ctx, env) {
		log.Fatal("replayed envelope was accepted")
	}
	fmt.Println("  Replay of the same envelope rejected")
	fmt.Println()

	fmt.Println("=== Payment chain complete ===")
}

func mustKey[T keys.KeyPair](kp T, err error) T {
	if err != nil {
		log.Fatalf("key generation: %v", err)
	}
	return kp
}

func mustRegister(store *resolver.LocalKeyStore, kid did.KeyID, kp keys.KeyPair) {
	if err := store.Register(kid, kp.Public()); err != nil {
		log.Fatalf("key registration: %v", err)
	}
}
