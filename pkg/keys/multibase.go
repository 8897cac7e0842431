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
	"crypto/ed25519"
	"crypto/elliptic"
	"fmt"

	"github.com/multiformats/go-multibase"
)

// EncodePublicKey encodes a public key as multibase base58btc ("z" prefix).
// Ed25519 keys are the raw 32 bytes; ECDSA P-256 keys use the 33-byte
// compressed point.
func EncodePublicKey(pub crypto.PublicKey) (string, error) {
	var raw []byte

	switch pk := pub.(type) {
	case ed25519.PublicKey:
		raw = pk
	case *ecdsa.PublicKey:
		if pk.Curve != elliptic.P256() {
			return "", fmt.Errorf("unsupported curve: %s", pk.Curve.Params().Name)
		}
		raw = elliptic.MarshalCompressed(pk.Curve, pk.X, pk.Y)
	default:
		return "", fmt.Errorf("unsupported public key type %T", pub)
	}

	encoded, err := multibase.Encode(multibase.Base58BTC, raw)
	if err != nil {
		return "", fmt.Errorf("multibase encoding failed: %w", err)
	}
	return encoded, nil
}

// DecodePublicKey decodes a multibase public key of the given type
func DecodePublicKey(keyType KeyType, encoded string) (crypto.PublicKey, error) {
	_, raw, err := multibase.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("multibase decoding failed: %w", err)
	}

	switch keyType {
	case KeyTypeEd25519:
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid ed25519 public key length: %d", len(raw))
		}
		return ed25519.PublicKey(raw), nil

	case KeyTypeECDSA:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), raw)
		if x == nil {
			return nil, fmt.Errorf("invalid compressed P-256 point")
		}
		return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil

	default:
		return nil, fmt.Errorf("unsupported key type: %s", keyType)
	}
}
