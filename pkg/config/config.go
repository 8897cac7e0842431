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
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ap2-project/ap2-go/pkg/did"
	"github.com/ap2-project/ap2-go/pkg/envelope"
	"github.com/ap2-project/ap2-go/pkg/keys"
	"github.com/ap2-project/ap2-go/pkg/nonce"
	"github.com/ap2-project/ap2-go/pkg/resolver"
)

// MerchantConfig holds the merchant agent endpoints and polling policy
type MerchantConfig struct {
	BaseURL             string `yaml:"base_url"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
}

// PollInterval returns the poll interval as a duration
func (m MerchantConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSeconds) * time.Second
}

// Timeout returns the overall wait timeout as a duration
func (m MerchantConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// CredentialIssuerConfig holds the credential provider endpoint
type CredentialIssuerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Config is the YAML configuration of one agent
type Config struct {
	AgentDID did.AgentDID `yaml:"agent_did"`
	KeyID    did.KeyID    `yaml:"key_id"`

	// KeyType selects the signature scheme; KeySeed is the base64-encoded
	// ed25519 seed. ECDSA keys are generated at startup when no seed
	// applies (demo use).
	KeyType keys.KeyType `yaml:"key_type"`
	KeySeed string       `yaml:"key_seed,omitempty"`

	RegistryURL   string `yaml:"registry_url,omitempty"`
	SchemaVersion string `yaml:"schema_version,omitempty"`

	NonceTTLSeconds  int `yaml:"nonce_ttl_seconds,omitempty"`
	ClockSkewSeconds int `yaml:"clock_skew_seconds,omitempty"`

	Merchant         MerchantConfig         `yaml:"merchant,omitempty"`
	CredentialIssuer CredentialIssuerConfig `yaml:"credential_issuer,omitempty"`
}

// Load reads and validates an agent configuration file
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.KeyType == "" {
		c.KeyType = keys.KeyTypeEd25519
	}
	if c.SchemaVersion == "" {
		c.SchemaVersion = envelope.DefaultSchemaVersion
	}
	if c.NonceTTLSeconds <= 0 {
		c.NonceTTLSeconds = int(nonce.DefaultTTL.Seconds())
	}
	if c.ClockSkewSeconds <= 0 {
		c.ClockSkewSeconds = int(envelope.DefaultClockSkew.Seconds())
	}
}

// Validate checks the configuration for structural errors
func (c *Config) Validate() error {
	if err := c.AgentDID.Validate(); err != nil {
		return fmt.Errorf("invalid agent_did: %w", err)
	}
	if err := c.KeyID.Validate(); err != nil {
		return fmt.Errorf("invalid key_id: %w", err)
	}
	if c.KeyID.DID() != c.AgentDID {
		return fmt.Errorf("key_id %s does not belong to agent_did %s", c.KeyID, c.AgentDID)
	}
	if !c.KeyType.Supported() {
		return fmt.Errorf("unsupported key_type: %s", c.KeyType)
	}
	return nil
}

// NonceTTL returns the nonce TTL as a duration
func (c *Config) NonceTTL() time.Duration {
	return time.Duration(c.NonceTTLSeconds) * time.Second
}

// ClockSkew returns the envelope freshness window as a duration
func (c *Config) ClockSkew() time.Duration {
	return time.Duration(c.ClockSkewSeconds) * time.Second
}

// KeyPair materializes the agent's signing key from the configuration
func (c *Config) KeyPair() (keys.KeyPair, error) {
	switch c.KeyType {
	case keys.KeyTypeEd25519:
		if c.KeySeed == "" {
			return keys.GenerateEd25519()
		}
		seed, err := base64.StdEncoding.DecodeString(c.KeySeed)
		if err != nil {
			return nil, fmt.Errorf("invalid key_seed encoding: %w", err)
		}
		return keys.NewEd25519FromSeed(seed)

	case keys.KeyTypeECDSA:
		return keys.GenerateECDSA()

	default:
		return nil, fmt.Errorf("unsupported key_type: %s", c.KeyType)
	}
}

// NewCodec builds a fully wired envelope codec from the configuration:
// signing key, nonce manager and key resolver (registry-backed when
// registry_url is set, local otherwise).
func (c *Config) NewCodec() (*envelope.Codec, *resolver.LocalKeyStore, error) {
	keyPair, err := c.KeyPair()
	if err != nil {
		return nil, nil, err
	}

	local := resolver.NewLocalKeyStore()
	if err := local.Register(c.KeyID, keyPair.Public()); err != nil {
		return nil, nil, err
	}

	var keyResolver resolver.KeyResolver = local
	if c.RegistryURL != "" {
		keyResolver = resolver.NewRegistryResolver(c.RegistryURL)
	}

	codec, err := envelope.NewCodec(c.AgentDID, c.KeyID, keyPair,
		nonce.NewManager(c.NonceTTL()), keyResolver,
		envelope.WithClockSkew(c.ClockSkew()),
		envelope.WithSchemaVersion(c.SchemaVersion),
	)
	if err != nil {
		return nil, nil, err
	}
	return codec, local, nil
}
