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

package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// ECDSAKeyPair implements KeyPair with ECDSA over P-256
type ECDSAKeyPair struct {
	priv *ecdsa.PrivateKey
}

// GenerateECDSA creates a fresh P-256 key pair
func GenerateECDSA() (*ECDSAKeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ecdsa key: %w", err)
	}
	return &ECDSAKeyPair{priv: priv}, nil
}

// NewECDSA wraps an existing P-256 private key
func NewECDSA(priv *ecdsa.PrivateKey) (*ECDSAKeyPair, error) {
	if priv == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	if priv.Curve != elliptic.P256() {
		return nil, fmt.Errorf("unsupported curve: %s", priv.Curve.Params().Name)
	}
	return &ECDSAKeyPair{priv: priv}, nil
}

// Type returns KeyTypeECDSA
func (k *ECDSAKeyPair) Type() KeyType {
	return KeyTypeECDSA
}

// Sign signs the SHA-256 digest of the message, returning an ASN.1 signature
func (k *ECDSAKeyPair) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, k.priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("ecdsa signing failed: %w", err)
	}
	return sig, nil
}

// Public returns the *ecdsa.PublicKey
func (k *ECDSAKeyPair) Public() crypto.PublicKey {
	return &k.priv.PublicKey
}

// Private returns the *ecdsa.PrivateKey
func (k *ECDSAKeyPair) Private() crypto.PrivateKey {
	return k.priv
}

// PublicKeyMultibase returns the public key as multibase base58btc
func (k *ECDSAKeyPair) PublicKeyMultibase() (string, error) {
	return EncodePublicKey(k.Public())
}
