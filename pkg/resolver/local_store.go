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

package resolver

import (
	"context"
	"crypto"
	"fmt"
	"sync"

	"github.com/ap2-project/ap2-go/pkg/did"
)

// LocalKeyStore is a KeyResolver backed by an in-process key table.
// Used by agents that exchange keys out of band (tests, demos, closed
// deployments). Safe for concurrent use.
type LocalKeyStore struct {
	mu   sync.RWMutex
	keys map[did.KeyID]crypto.PublicKey
}

// NewLocalKeyStore creates an empty local key store
func NewLocalKeyStore() *LocalKeyStore {
	return &LocalKeyStore{
		keys: make(map[did.KeyID]crypto.PublicKey),
	}
}

// Register associates a public key with a kid, replacing any earlier key
func (s *LocalKeyStore) Register(kid did.KeyID, pub crypto.PublicKey) error {
	if err := kid.Validate(); err != nil {
		return err
	}
	if pub == nil {
		return fmt.Errorf("public key cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[kid] = pub
	return nil
}

// ResolvePublicKey implements KeyResolver
func (s *LocalKeyStore) ResolvePublicKey(ctx context.Context, kid did.KeyID) (crypto.PublicKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pub, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no key registered for kid %s", kid)
	}
	return pub, nil
}
