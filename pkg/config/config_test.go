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

package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ap2-project/ap2-go/pkg/did"
	"github.com/ap2-project/ap2-go/pkg/keys"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	seed := base64.StdEncoding.EncodeToString(make([]byte, ed25519.SeedSize))

	path := writeConfig(t, `
agent_did: did:ap2:agent:shopper
key_id: did:ap2:agent:shopper#key-1
key_type: ed25519
key_seed: `+seed+`
registry_url: http://localhost:8080
nonce_ttl_seconds: 300
clock_skew_seconds: 120
merchant:
  base_url: http://localhost:9090
  poll_interval_seconds: 2
  timeout_seconds: 60
credential_issuer:
  base_url: http://localhost:9091
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, did.AgentDID("did:ap2:agent:shopper"), cfg.AgentDID)
	assert.Equal(t, did.KeyID("did:ap2:agent:shopper#key-1"), cfg.KeyID)
	assert.Equal(t, 5*time.Minute, cfg.NonceTTL())
	assert.Equal(t, 2*time.Minute, cfg.ClockSkew())
	assert.Equal(t, 2*time.Second, cfg.Merchant.PollInterval())
	assert.Equal(t, time.Minute, cfg.Merchant.Timeout())
	assert.Equal(t, "http://localhost:9091", cfg.CredentialIssuer.BaseURL)

	keyPair, err := cfg.KeyPair()
	require.NoError(t, err)
	assert.Equal(t, keys.KeyTypeEd25519, keyPair.Type())

	// Same seed yields the same key
	again, err := cfg.KeyPair()
	require.NoError(t, err)
	assert.Equal(t, keyPair.Public(), again.Public())
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
agent_did: did:ap2:merchant:shop
key_id: did:ap2:merchant:shop#key-1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, keys.KeyTypeEd25519, cfg.KeyType)
	assert.Equal(t, "1.0", cfg.SchemaVersion)
	assert.Equal(t, 10*time.Minute, cfg.NonceTTL())
	assert.Equal(t, 5*time.Minute, cfg.ClockSkew())
}

func TestLoadRejectsForeignKeyID(t *testing.T) {
	path := writeConfig(t, `
agent_did: did:ap2:merchant:shop
key_id: did:ap2:merchant:other#key-1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong to")
}

func TestLoadRejectsInvalidDID(t *testing.T) {
	path := writeConfig(t, `
agent_did: not-a-did
key_id: not-a-did#key-1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid agent_did")
}

func TestNewCodecFromConfig(t *testing.T) {
	path := writeConfig(t, `
agent_did: did:ap2:agent:shopper
key_id: did:ap2:agent:shopper#key-1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	codec, store, err := cfg.NewCodec()
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, cfg.AgentDID, codec.AgentDID())
}
