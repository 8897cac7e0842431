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

package canonical

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonicalize returns the RFC 8785 (JCS) canonical JSON bytes of v.
// Semantically identical values produce identical bytes regardless of
// source map ordering, which makes the result safe to hash and sign
// across independent implementations.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	canonicalized, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize JSON: %w", err)
	}

	return canonicalized, nil
}

// Digest returns the SHA-256 digest of the canonical form of v.
func Digest(v any) ([]byte, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(b)
	return sum[:], nil
}

// Hash returns the SHA-256 digest of the canonical form of v as
// URL-safe base64 without padding. This is the cross-agent trust anchor:
// any two implementations given the same logical JSON value must produce
// the same string.
func Hash(v any) (string, error) {
	digest, err := Digest(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(digest), nil
}

// HashWithout hashes v with the named top-level fields removed.
// Used where a signature must cover a document minus the field that
// will carry the signature itself (e.g. a payment mandate without its
// user_authorization).
func HashWithout(v any, fields ...string) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("failed to decode value into map: %w", err)
	}

	for _, f := range fields {
		delete(m, f)
	}

	return Hash(m)
}
