package keys

import (
	"crypto"
)

// KeyType identifies the signature scheme of a key pair
type KeyType string

const (
	// KeyTypeEd25519 is Ed25519 (EdDSA)
	KeyTypeEd25519 KeyType = "ed25519"

	// KeyTypeECDSA is ECDSA over NIST P-256 with SHA-256
	KeyTypeECDSA KeyType = "ecdsa"
)

// Supported reports whether t names a signature scheme this library
// can verify. Anything else must fail closed at the verification boundary.
func (t KeyType) Supported() bool {
	return t == KeyTypeEd25519 || t == KeyTypeECDSA
}

// KeyPair is an asymmetric signing key held by an agent
type KeyPair interface {
	// Type returns the signature scheme of this key pair
	Type() KeyType

	// Sign signs the given message. Ed25519 signs the message directly;
	// ECDSA signs its SHA-256 digest (ASN.1 encoded signature).
	Sign(message []byte) ([]byte, error)

	// Public returns the public half of the key pair
	Public() crypto.PublicKey

	// Private returns the private half of the key pair.
	// Needed by JWT signers that consume the raw key.
	Private() crypto.PrivateKey

	// PublicKeyMultibase returns the public key in multibase form
	// (base58btc, "z" prefix)
	PublicKeyMultibase() (string, error)
}
