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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ap2-project/ap2-go/pkg/did"
	"github.com/ap2-project/ap2-go/pkg/keys"
)

// Verification method types accepted in DID documents
const (
	VerificationMethodEd25519 = "Ed25519VerificationKey2020"
	VerificationMethodECDSA   = "EcdsaSecp256r1VerificationKey2019"
)

// DefaultDocumentTTL is how long a resolved DID document is served from cache
const DefaultDocumentTTL = 5 * time.Minute

// VerificationMethod is one key entry of a DID document
type VerificationMethod struct {
	ID                 did.KeyID    `json:"id"`
	Type               string       `json:"type"`
	Controller         did.AgentDID `json:"controller"`
	PublicKeyMultibase string       `json:"publicKeyMultibase"`
}

// Document is the registry's DID document shape
type Document struct {
	ID                 did.AgentDID         `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
}

type cachedDocument struct {
	doc       *Document
	fetchedAt time.Time
}

// RegistryResolver is a KeyResolver backed by an HTTP DID registry
// (GET <registry>/did/<did> returning a DID document). Documents are
// served from a read-through cache; the registry stays the source of
// truth. Safe for concurrent use.
type RegistryResolver struct {
	baseURL     string
	httpClient  *http.Client
	documentTTL time.Duration

	mu    sync.RWMutex
	cache map[did.AgentDID]cachedDocument
}

// RegistryResolverOption customizes a RegistryResolver
type RegistryResolverOption func(*RegistryResolver)

// WithHTTPClient sets the HTTP client (default: 10s timeout client)
func WithHTTPClient(c *http.Client) RegistryResolverOption {
	return func(r *RegistryResolver) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// WithDocumentTTL sets the DID document cache lifetime
func WithDocumentTTL(ttl time.Duration) RegistryResolverOption {
	return func(r *RegistryResolver) {
		if ttl > 0 {
			r.documentTTL = ttl
		}
	}
}

// NewRegistryResolver creates a resolver against the given registry base URL
func NewRegistryResolver(baseURL string, opts ...RegistryResolverOption) *RegistryResolver {
	r := &RegistryResolver{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		documentTTL: DefaultDocumentTTL,
		cache:       make(map[did.AgentDID]cachedDocument),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolvePublicKey implements KeyResolver: it fetches (or serves from
// cache) the signer's DID document and decodes the verification method
// matching kid.
func (r *RegistryResolver) ResolvePublicKey(ctx context.Context, kid did.KeyID) (crypto.PublicKey, error) {
	agentDID, _, err := did.ParseKeyID(kid)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kid: %w", err)
	}

	doc, err := r.resolveDocument(ctx, agentDID)
	if err != nil {
		return nil, err
	}

	for _, vm := range doc.VerificationMethod {
		if vm.ID != kid {
			continue
		}

		keyType, err := keyTypeOf(vm.Type)
		if err != nil {
			return nil, err
		}

		pub, err := keys.DecodePublicKey(keyType, vm.PublicKeyMultibase)
		if err != nil {
			return nil, fmt.Errorf("failed to decode key %s: %w", kid, err)
		}
		return pub, nil
	}

	return nil, fmt.Errorf("no verification method %s in DID document for %s", kid, agentDID)
}

// InvalidateCache drops the cached document for a DID (e.g. after key rotation)
func (r *RegistryResolver) InvalidateCache(agentDID did.AgentDID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, agentDID)
}

func (r *RegistryResolver) resolveDocument(ctx context.Context, agentDID did.AgentDID) (*Document, error) {
	r.mu.RLock()
	cached, ok := r.cache[agentDID]
	r.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < r.documentTTL {
		return cached.doc, nil
	}

	doc, err := r.fetchDocument(ctx, agentDID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[agentDID] = cachedDocument{doc: doc, fetchedAt: time.Now()}
	r.mu.Unlock()

	return doc, nil
}

func (r *RegistryResolver) fetchDocument(ctx context.Context, agentDID did.AgentDID) (*Document, error) {
	endpoint := fmt.Sprintf("%s/did/%s", r.baseURL, url.PathEscape(string(agentDID)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry lookup %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("DID %s not found in registry", agentDID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry lookup %s: HTTP %d", endpoint, resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode DID document: %w", err)
	}

	if doc.ID != agentDID {
		return nil, fmt.Errorf("DID document id mismatch: requested %s, got %s", agentDID, doc.ID)
	}

	return &doc, nil
}

func keyTypeOf(verificationMethodType string) (keys.KeyType, error) {
	switch verificationMethodType {
	case VerificationMethodEd25519:
		return keys.KeyTypeEd25519, nil
	case VerificationMethodECDSA:
		return keys.KeyTypeECDSA, nil
	default:
		return "", fmt.Errorf("unsupported verification method type: %s", verificationMethodType)
	}
}

// NewDocument builds a DID document for an agent's key pairs, for
// registries and agents that self-publish their documents.
func NewDocument(agentDID did.AgentDID, pairs ...keys.KeyPair) (*Document, error) {
	doc := &Document{ID: agentDID}

	for i, kp := range pairs {
		encoded, err := kp.PublicKeyMultibase()
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %d: %w", i+1, err)
		}

		vmType := VerificationMethodEd25519
		if kp.Type() == keys.KeyTypeECDSA {
			vmType = VerificationMethodECDSA
		}

		doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
			ID:                 did.NewKeyID(agentDID, i+1),
			Type:               vmType,
			Controller:         agentDID,
			PublicKeyMultibase: encoded,
		})
	}

	return doc, nil
}
