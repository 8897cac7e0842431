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

package mandate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ap2-project/ap2-go/pkg/did"
)

// Message type tags for mandates carried in envelopes
const (
	IntentMandateType  = "ap2.mandates.IntentMandate"
	CartMandateType    = "ap2.mandates.CartMandate"
	PaymentMandateType = "ap2.mandates.PaymentMandate"
)

// Money is an amount in minor units of a currency
type Money struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency" validate:"required,len=3"`
}

// Equal reports value and currency equality
func (m Money) Equal(other Money) bool {
	return m.Value == other.Value && m.Currency == other.Currency
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Value, m.Currency)
}

// IntentMandate is the buyer agent's signed statement of what the user
// wants to buy. Read-only after creation.
type IntentMandate struct {
	ID          string         `json:"id" validate:"required"`
	IssuerDID   did.AgentDID   `json:"issuer_did" validate:"required"`
	Description string         `json:"description" validate:"required"`
	Constraints map[string]any `json:"constraints,omitempty"`
	Expiry      time.Time      `json:"expiry"`
}

// NewIntentMandate creates an intent with a fresh id
func NewIntentMandate(issuer did.AgentDID, description string, constraints map[string]any, ttl time.Duration) *IntentMandate {
	return &IntentMandate{
		ID:          "intent_" + uuid.NewString(),
		IssuerDID:   issuer,
		Description: description,
		Constraints: constraints,
		Expiry:      time.Now().UTC().Add(ttl),
	}
}

// CartItem is one line of a cart
type CartItem struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	Price    Money  `json:"price"`
}

// CartContents is the merchant-assembled cart. This is the exact
// structure the merchant authorization JWT's cart_hash is computed over;
// any mutation after signing is detected as a hash mismatch.
type CartContents struct {
	ID           string     `json:"id" validate:"required"`
	Items        []CartItem `json:"items" validate:"required,dive"`
	Total        Money      `json:"total"`
	MerchantName string     `json:"merchant_name" validate:"required"`
	Expiry       time.Time  `json:"expiry"`
}

// CartMetadata links the cart back to the intent that produced it
type CartMetadata struct {
	IntentMandateID string            `json:"intent_mandate_id" validate:"required"`
	RawItems        []json.RawMessage `json:"raw_items,omitempty"`
}

// CartStatus is the cart mandate lifecycle state
type CartStatus string

const (
	// CartStatusPending means no merchant authorization is attached yet
	CartStatusPending CartStatus = "pending_merchant_signature"

	// CartStatusSigned means a merchant authorization is attached
	CartStatusSigned CartStatus = "signed"

	// CartStatusRejected means the merchant explicitly refused. Terminal.
	CartStatusRejected CartStatus = "rejected"
)

// CartMandate is created unsigned by the merchant-side agent and later
// signed by the merchant. Apart from the status transitions below it is
// read-only after creation.
type CartMandate struct {
	Contents              CartContents `json:"contents"`
	Metadata              CartMetadata `json:"metadata"`
	MerchantAuthorization string       `json:"merchant_authorization,omitempty"`
	Status                CartStatus   `json:"status"`
}

// NewCartMandate creates a pending cart bound to the given intent
func NewCartMandate(contents CartContents, intentMandateID string) *CartMandate {
	return &CartMandate{
		Contents: contents,
		Metadata: CartMetadata{IntentMandateID: intentMandateID},
		Status:   CartStatusPending,
	}
}

// AttachMerchantAuthorization transitions pending -> signed.
// The JWT itself is produced and verified by the authorization package.
func (c *CartMandate) AttachMerchantAuthorization(token string) error {
	if c.Status != CartStatusPending {
		return fmt.Errorf("cannot sign cart %s in status %q", c.Contents.ID, c.Status)
	}
	if token == "" {
		return fmt.Errorf("merchant authorization cannot be empty")
	}
	c.MerchantAuthorization = token
	c.Status = CartStatusSigned
	return nil
}

// Reject transitions pending -> rejected. Terminal.
func (c *CartMandate) Reject() error {
	if c.Status != CartStatusPending {
		return fmt.Errorf("cannot reject cart %s in status %q", c.Contents.ID, c.Status)
	}
	c.Status = CartStatusRejected
	return nil
}

// PaymentMandate is created by the buyer agent once the cart is signed.
// UserAuthorization is required before the mandate may proceed to a
// payment processor; its absence is a validation failure, not a missing
// optional field.
type PaymentMandate struct {
	ID                string `json:"id" validate:"required"`
	Amount            Money  `json:"amount"`
	PayerID           string `json:"payer_id" validate:"required"`
	PayeeID           string `json:"payee_id" validate:"required"`
	PaymentMethodID   string `json:"payment_method_id" validate:"required"`
	UserAuthorization string `json:"user_authorization,omitempty"`
}

// NewPaymentMandate creates a payment mandate with a fresh id
func NewPaymentMandate(amount Money, payerID, payeeID, paymentMethodID string) *PaymentMandate {
	return &PaymentMandate{
		ID:              "payment_" + uuid.NewString(),
		Amount:          amount,
		PayerID:         payerID,
		PayeeID:         payeeID,
		PaymentMethodID: paymentMethodID,
	}
}
