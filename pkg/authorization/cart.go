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
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ap2-project/ap2-go/pkg/canonical"
	"github.com/ap2-project/ap2-go/pkg/did"
	"github.com/ap2-project/ap2-go/pkg/keys"
	"github.com/ap2-project/ap2-go/pkg/mandate"
	"github.com/ap2-project/ap2-go/pkg/resolver"
)

// CartAuthorizationTTL is the lifetime of a merchant cart authorization
const CartAuthorizationTTL = time.Hour

// CartAuthorizer produces merchant cart authorizations: JWTs binding the
// merchant's signature to the canonical hash of one specific cart.
type CartAuthorizer struct {
	merchantDID did.AgentDID
	kid         did.KeyID
	keyPair     keys.KeyPair
	now         func() time.Time
}

// NewCartAuthorizer creates an authorizer for the merchant identity
func NewCartAuthorizer(merchantDID did.AgentDID, kid did.KeyID, keyPair keys.KeyPair) (*CartAuthorizer, error) {
	if err := merchantDID.Validate(); err != nil {
		return nil, err
	}
	if kid.DID() != merchantDID {
		return nil, fmt.Errorf("kid %s does not belong to %s", kid, merchantDID)
	}
	if keyPair == nil {
		return nil, fmt.Errorf("key pair cannot be nil")
	}
	return &CartAuthorizer{
		merchantDID: merchantDID,
		kid:         kid,
		keyPair:     keyPair,
		now:         time.Now,
	}, nil
}

// SignCart builds the merchant authorization JWT over the cart contents.
// The signature covers cart_hash, the canonical hash of the contents, so
// it binds to this exact cart rather than to a name or id.
func (a *CartAuthorizer) SignCart(contents mandate.CartContents) (string, error) {
	cartHash, err := canonical.Hash(contents)
	if err != nil {
		return "", fmt.Errorf("failed to hash cart contents: %w", err)
	}

	method, err := signingMethodFor(a.keyPair)
	if err != nil {
		return "", err
	}

	iat := a.now().UTC()
	claims := jwt.MapClaims{
		"iss":       a.merchantDID.String(),
		"sub":       a.merchantDID.String(),
		"aud":       AudiencePaymentProcessor,
		"iat":       iat.Unix(),
		"exp":       iat.Add(CartAuthorizationTTL).Unix(),
		"jti":       uuid.NewString(),
		"cart_hash": cartHash,
	}

	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = a.kid.String()

	signed, err := token.SignedString(a.keyPair.Private())
	if err != nil {
		return "", fmt.Errorf("failed to sign cart authorization: %w", err)
	}
	return signed, nil
}

// CartVerifier verifies merchant cart authorizations
type CartVerifier struct {
	resolver       resolver.KeyResolver
	merchantPrefix string
	now            func() time.Time
}

// NewCartVerifier creates a verifier. merchantPrefix pins the
// authorization issuer to the expected principal class, e.g.
// "did:ap2:merchant:".
func NewCartVerifier(keyResolver resolver.KeyResolver, merchantPrefix string) (*CartVerifier, error) {
	if keyResolver == nil {
		return nil, fmt.Errorf("key resolver cannot be nil")
	}
	if merchantPrefix == "" {
		return nil, fmt.Errorf("merchant DID prefix cannot be empty")
	}
	return &CartVerifier{
		resolver:       keyResolver,
		merchantPrefix: merchantPrefix,
		now:            time.Now,
	}, nil
}

// VerifyCart verifies the merchant authorization against the cart
// contents actually received. The cart_hash claim is recomputed from
// those contents; a difference means the cart was tampered with after
// signing.
func (v *CartVerifier) VerifyCart(ctx context.Context, cart *mandate.CartMandate) error {
	if cart == nil {
		return fmt.Errorf("cart mandate cannot be nil")
	}
	if cart.MerchantAuthorization == "" {
		return fmt.Errorf("cart %s has no merchant authorization", cart.Contents.ID)
	}

	token, err := jwt.Parse(cart.MerchantAuthorization, v.keyFunc(ctx),
		jwt.WithValidMethods(validSigningMethods),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(AudiencePaymentProcessor),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return fmt.Errorf("merchant authorization rejected: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("merchant authorization has unexpected claims type")
	}

	iss, err := stringClaim(claims, "iss")
	if err != nil {
		return err
	}
	sub, err := stringClaim(claims, "sub")
	if err != nil {
		return err
	}
	if iss != sub {
		return fmt.Errorf("merchant authorization iss %q does not match sub %q", iss, sub)
	}
	if !did.AgentDID(iss).HasPrefix(v.merchantPrefix) {
		return fmt.Errorf("merchant authorization issuer %q is not a %s* principal", iss, v.merchantPrefix)
	}

	claimedHash, err := stringClaim(claims, "cart_hash")
	if err != nil {
		return err
	}
	actualHash, err := canonical.Hash(cart.Contents)
	if err != nil {
		return fmt.Errorf("failed to hash cart contents: %w", err)
	}
	if claimedHash != actualHash {
		return fmt.Errorf("cart %s hash mismatch: contents changed after signing", cart.Contents.ID)
	}

	return nil
}

// keyFunc resolves the merchant's key from the token's kid and requires
// the kid to belong to the issuer.
func (v *CartVerifier) keyFunc(ctx context.Context) jwt.Keyfunc {
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
			return nil, fmt.Errorf("failed to resolve merchant key: %w", err)
		}
		return pub, nil
	}
}
