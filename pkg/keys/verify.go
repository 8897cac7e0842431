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
	"crypto/sha256"
)

// Verify checks a signature produced by KeyPair.Sign with the matching
// key type. It never panics on foreign key material: a type mismatch
// between keyType and pub simply verifies as false.
func Verify(keyType KeyType, pub crypto.PublicKey, message, signature []byte) bool {
	switch keyType {
	case KeyTypeEd25519:
		pk, ok := pub.(ed25519.PublicKey)
		if !ok || len(pk) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(pk, message, signature)

	case KeyTypeECDSA:
		pk, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return false
		}
		digest := sha256.Sum256(message)
		return ecdsa.VerifyASN1(pk, digest[:], signature)

	default:
		return false
	}
}

// TypeOf reports the KeyType of a public key, or "" if unsupported
func TypeOf(pub crypto.PublicKey) KeyType {
	switch pub.(type) {
	case ed25519.PublicKey:
		return KeyTypeEd25519
	case *ecdsa.PublicKey:
		return KeyTypeECDSA
	default:
		return ""
	}
}
