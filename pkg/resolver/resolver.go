package resolver

import (
	"context"
	"crypto"

	"github.com/ap2-project/ap2-go/pkg/did"
)

// KeyResolver resolves a signer's current public key given its kid.
// Resolution failure (unknown DID, unknown key, registry 404 or timeout)
// is an error; the envelope verifier treats any error as verification
// failure.
type KeyResolver interface {
	// ResolvePublicKey returns the public key named by kid
	ResolvePublicKey(ctx context.Context, kid did.KeyID) (crypto.PublicKey, error)
}
