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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSortsKeys(t *testing.T) {
	out, err := Canonicalize(map[string]any{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(out))
}

func TestHashIsOrderIndependent(t *testing.T) {
	// Same logical document arriving with different key order
	var doc1, doc2 map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"total":{"value":8000,"currency":"JPY"},"id":"cart_1"}`), &doc1))
	require.NoError(t, json.Unmarshal([]byte(`{"id":"cart_1","total":{"currency":"JPY","value":8000}}`), &doc2))

	h1, err := Hash(doc1)
	require.NoError(t, err)
	h2, err := Hash(doc2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHashDetectsValueChange(t *testing.T) {
	h1, err := Hash(map[string]any{"value": 8000})
	require.NoError(t, err)
	h2, err := Hash(map[string]any{"value": 9000})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHashWithout(t *testing.T) {
	type doc struct {
		ID                string `json:"id"`
		UserAuthorization string `json:"user_authorization,omitempty"`
	}

	withAuth, err := HashWithout(doc{ID: "payment_1", UserAuthorization: "a.b.c~d.e.f"}, "user_authorization")
	require.NoError(t, err)

	withoutAuth, err := HashWithout(doc{ID: "payment_1"}, "user_authorization")
	require.NoError(t, err)

	// The excluded field never influences the hash
	assert.Equal(t, withAuth, withoutAuth)

	full, err := Hash(doc{ID: "payment_1", UserAuthorization: "a.b.c~d.e.f"})
	require.NoError(t, err)
	assert.NotEqual(t, full, withAuth)
}

func TestCanonicalizeRejectsUnmarshalable(t *testing.T) {
	_, err := Canonicalize(map[string]any{"bad": func() {}})
	assert.Error(t, err)
}
