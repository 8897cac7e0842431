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
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrMissingUserAuthorization is returned when a payment mandate reaches
// validation without its user_authorization. This is checked before any
// cryptographic verification is attempted.
var ErrMissingUserAuthorization = errors.New("payment mandate missing user_authorization")

// ChainValidator runs the stateless checks a mandate chain must pass
// before its cryptographic material is even looked at: required fields,
// linkage identifiers, and amount/currency consistency end to end.
type ChainValidator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewChainValidator creates a validator
func NewChainValidator() *ChainValidator {
	return &ChainValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// ValidateIntent checks an intent mandate's structure and expiry
func (v *ChainValidator) ValidateIntent(intent *IntentMandate) error {
	if intent == nil {
		return fmt.Errorf("intent mandate cannot be nil")
	}
	if err := v.validate.Struct(intent); err != nil {
		return fmt.Errorf("intent mandate invalid: %w", err)
	}
	if err := intent.IssuerDID.Validate(); err != nil {
		return fmt.Errorf("intent mandate invalid: %w", err)
	}
	if !intent.Expiry.IsZero() && v.now().After(intent.Expiry) {
		return fmt.Errorf("intent mandate %s expired at %s", intent.ID, intent.Expiry.Format(time.RFC3339))
	}
	return nil
}

// ValidateCart checks a cart mandate's structure, status and expiry
func (v *ChainValidator) ValidateCart(cart *CartMandate) error {
	if cart == nil {
		return fmt.Errorf("cart mandate cannot be nil")
	}
	if err := v.validate.Struct(cart); err != nil {
		return fmt.Errorf("cart mandate invalid: %w", err)
	}

	switch cart.Status {
	case CartStatusPending:
		if cart.MerchantAuthorization != "" {
			return fmt.Errorf("cart %s is pending but carries a merchant authorization", cart.Contents.ID)
		}
	case CartStatusSigned:
		if cart.MerchantAuthorization == "" {
			return fmt.Errorf("cart %s is signed but has no merchant authorization", cart.Contents.ID)
		}
	case CartStatusRejected:
		return fmt.Errorf("cart %s was rejected by the merchant", cart.Contents.ID)
	default:
		return fmt.Errorf("cart %s has unknown status %q", cart.Contents.ID, cart.Status)
	}

	if !cart.Contents.Expiry.IsZero() && v.now().After(cart.Contents.Expiry) {
		return fmt.Errorf("cart %s expired at %s", cart.Contents.ID, cart.Contents.Expiry.Format(time.RFC3339))
	}
	return nil
}

// ValidatePayment checks a payment mandate's structure and that the
// user authorization is present. The authorization's cryptographic
// verification is a separate step in the authorization package.
func (v *ChainValidator) ValidatePayment(payment *PaymentMandate) error {
	if payment == nil {
		return fmt.Errorf("payment mandate cannot be nil")
	}
	if err := v.validate.Struct(payment); err != nil {
		return fmt.Errorf("payment mandate invalid: %w", err)
	}
	if payment.UserAuthorization == "" {
		return ErrMissingUserAuthorization
	}
	return nil
}

// ValidateChain checks that the three mandates form a consistent chain:
// the cart links back to the intent, the payment amount equals the cart
// total in value and currency, the cart is merchant-signed, and the
// payment carries a user authorization.
func (v *ChainValidator) ValidateChain(intent *IntentMandate, cart *CartMandate, payment *PaymentMandate) error {
	if err := v.ValidateIntent(intent); err != nil {
		return err
	}
	if err := v.ValidateCart(cart); err != nil {
		return err
	}
	if err := v.ValidatePayment(payment); err != nil {
		return err
	}

	if cart.Status != CartStatusSigned {
		return fmt.Errorf("cart %s is not merchant-signed", cart.Contents.ID)
	}
	if cart.Metadata.IntentMandateID != intent.ID {
		return fmt.Errorf("cart %s links to intent %s, not %s",
			cart.Contents.ID, cart.Metadata.IntentMandateID, intent.ID)
	}
	if !payment.Amount.Equal(cart.Contents.Total) {
		return fmt.Errorf("payment amount %s does not match cart total %s",
			payment.Amount, cart.Contents.Total)
	}
	if payment.PayerID == payment.PayeeID {
		return fmt.Errorf("payment payer and payee are the same principal: %s", payment.PayerID)
	}
	return nil
}
