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
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// Ed25519KeyPair implements KeyPair with Ed25519
type Ed25519KeyPair struct {
	priv ed25519.PrivateKey
}

// GenerateEd25519 creates a fresh Ed25519 key pair
func GenerateEd25519() (*Ed25519KeyPair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}
	return &Ed25519KeyPair{priv: priv}, nil
}

// NewEd25519FromSeed builds a key pair from a 32-byte seed
func NewEd25519FromSeed(seed []byte) (*Ed25519KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid ed25519 seed length: %d", len(seed))
	}
	return &Ed25519KeyPair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Type returns KeyTypeEd25519
func (k *Ed25519KeyPair) Type() KeyType {
	return KeyTypeEd25519
}

// Sign signs the message with Ed25519
func (k *Ed25519KeyPair) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, message), nil
}

// Public returns the ed25519.PublicKey
func (k *Ed25519KeyPair) Public() crypto.PublicKey {
	return k.priv.Public()
}

// Private returns the ed25519.PrivateKey
func (k *Ed25519KeyPair) Private() crypto.PrivateKey {
	return k.priv
}

// PublicKeyMultibase returns the public key as multibase base58btc
func (k *Ed25519KeyPair) PublicKeyMultibase() (string, error) {
	return EncodePublicKey(k.Public())
}
