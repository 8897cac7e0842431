package authorization

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ap2-project/ap2-go/pkg/keys"
)

// AudiencePaymentProcessor is the audience claim of merchant cart
// authorizations.
const AudiencePaymentProcessor = "payment_processor"

// validSigningMethods are the JWT algorithms this library accepts.
// Anything else fails closed at parse time.
var validSigningMethods = []string{"EdDSA", "ES256"}

// signingMethodFor maps a key pair to its JWT signing method
func signingMethodFor(kp keys.KeyPair) (jwt.SigningMethod, error) {
	switch kp.Type() {
	case keys.KeyTypeEd25519:
		return jwt.SigningMethodEdDSA, nil
	case keys.KeyTypeECDSA:
		return jwt.SigningMethodES256, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", kp.Type())
	}
}

// kidHeader extracts the kid header of a parsed token
func kidHeader(t *jwt.Token) (string, error) {
	kid, ok := t.Header["kid"].(string)
	if !ok || kid == "" {
		return "", fmt.Errorf("token has no kid header")
	}
	return kid, nil
}

// stringClaim extracts a required string claim
func stringClaim(claims jwt.MapClaims, name string) (string, error) {
	v, ok := claims[name].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing or invalid %q claim", name)
	}
	return v, nil
}
