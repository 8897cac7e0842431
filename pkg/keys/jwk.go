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
	"encoding/base64"
	"fmt"
	"math/big"
)

// JWK is the minimal JSON Web Key representation used in the issuer
// JWT's cnf claim to bind a user's device key to their credential.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y,omitempty"`
}

// NewJWK converts a public key into JWK form
func NewJWK(pub crypto.PublicKey) (*JWK, error) {
	switch pk := pub.(type) {
	case ed25519.PublicKey:
		return &JWK{
			Kty: "OKP",
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(pk),
		}, nil

	case *ecdsa.PublicKey:
		if pk.Curve != elliptic.P256() {
			return nil, fmt.Errorf("unsupported curve: %s", pk.Curve.Params().Name)
		}
		return &JWK{
			Kty: "EC",
			Crv: "P-256",
			X:   base64.RawURLEncoding.EncodeToString(pk.X.FillBytes(make([]byte, 32))),
			Y:   base64.RawURLEncoding.EncodeToString(pk.Y.FillBytes(make([]byte, 32))),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported public key type %T", pub)
	}
}

// PublicKey converts the JWK back into a crypto.PublicKey
func (j *JWK) PublicKey() (crypto.PublicKey, error) {
	switch {
	case j.Kty == "OKP" && j.Crv == "Ed25519":
		raw, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, fmt.Errorf("invalid x coordinate: %w", err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid ed25519 public key length: %d", len(raw))
		}
		return ed25519.PublicKey(raw), nil

	case j.Kty == "EC" && j.Crv == "P-256":
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, fmt.Errorf("invalid x coordinate: %w", err)
		}
		yb, err := base64.RawURLEncoding.DecodeString(j.Y)
		if err != nil {
			return nil, fmt.Errorf("invalid y coordinate: %w", err)
		}
		pk := &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xb),
			Y:     new(big.Int).SetBytes(yb),
		}
		if !pk.Curve.IsOnCurve(pk.X, pk.Y) {
			return nil, fmt.Errorf("point is not on P-256")
		}
		return pk, nil

	default:
		return nil, fmt.Errorf("unsupported JWK: kty=%s crv=%s", j.Kty, j.Crv)
	}
}

// KeyType reports the signature scheme of the JWK, or "" if unsupported
func (j *JWK) KeyType() KeyType {
	switch {
	case j.Kty == "OKP" && j.Crv == "Ed25519":
		return KeyTypeEd25519
	case j.Kty == "EC" && j.Crv == "P-256":
		return KeyTypeECDSA
	default:
		return ""
	}
}
