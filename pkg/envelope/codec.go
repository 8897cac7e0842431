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

package envelope

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ap2-project/ap2-go/pkg/canonical"
	"github.com/ap2-project/ap2-go/pkg/did"
	"github.com/ap2-project/ap2-go/pkg/keys"
	"github.com/ap2-project/ap2-go/pkg/nonce"
	"github.com/ap2-project/ap2-go/pkg/resolver"
)

// DefaultClockSkew is the freshness window around "now" within which an
// envelope timestamp is accepted.
const DefaultClockSkew = 5 * time.Minute

// DefaultSchemaVersion is the envelope schema version emitted by the codec
const DefaultSchemaVersion = "1.0"

// Dispatch errors returned by HandleMessage
var (
	// ErrRecipientMismatch means the envelope was addressed to another agent
	ErrRecipientMismatch = errors.New("message recipient mismatch")

	// ErrInvalidSignature means envelope verification failed
	ErrInvalidSignature = errors.New("invalid message signature")
)

// HandlerFunc processes a verified envelope of one message type.
// The result is returned to the caller, which may wrap it into a new
// signed envelope, an artifact, or an error response.
type HandlerFunc func(ctx context.Context, env *SignedEnvelope) (any, error)

// Codec builds, signs, verifies and dispatches signed envelopes for one
// agent. It owns no mandate state; its only mutable collaborators are the
// injected nonce manager and key resolver, both safe for concurrent use.
type Codec struct {
	agentDID did.AgentDID
	kid      did.KeyID
	keyPair  keys.KeyPair

	nonces   *nonce.Manager
	resolver resolver.KeyResolver

	clockSkew     time.Duration
	schemaVersion string
	now           func() time.Time
	logger        *slog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// Option customizes a Codec
type Option func(*Codec)

// WithClockSkew sets the timestamp freshness window (default 5 minutes)
func WithClockSkew(d time.Duration) Option {
	return func(c *Codec) {
		if d > 0 {
			c.clockSkew = d
		}
	}
}

// WithSchemaVersion overrides the emitted schema version
func WithSchemaVersion(v string) Option {
	return func(c *Codec) {
		if v != "" {
			c.schemaVersion = v
		}
	}
}

// WithClock overrides the time source. Test use.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the structured logger (default slog.Default)
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCodec creates a codec for the given agent identity.
// The nonce manager and key resolver are required collaborators: the
// manager provides replay protection, the resolver maps proof kids to
// public keys.
func NewCodec(agentDID did.AgentDID, kid did.KeyID, keyPair keys.KeyPair, nonces *nonce.Manager, keyResolver resolver.KeyResolver, opts ...Option) (*Codec, error) {
	if err := agentDID.Validate(); err != nil {
		return nil, err
	}
	if err := kid.Validate(); err != nil {
		return nil, err
	}
	if kid.DID() != agentDID {
		return nil, fmt.Errorf("kid %s does not belong to %s", kid, agentDID)
	}
	if keyPair == nil {
		return nil, fmt.Errorf("key pair cannot be nil")
	}
	if nonces == nil {
		return nil, fmt.Errorf("nonce manager cannot be nil")
	}
	if keyResolver == nil {
		return nil, fmt.Errorf("key resolver cannot be nil")
	}

	c := &Codec{
		agentDID:      agentDID,
		kid:           kid,
		keyPair:       keyPair,
		nonces:        nonces,
		resolver:      keyResolver,
		clockSkew:     DefaultClockSkew,
		schemaVersion: DefaultSchemaVersion,
		now:           time.Now,
		logger:        slog.Default(),
		handlers:      make(map[string]HandlerFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AgentDID returns the agent identity this codec signs as
func (c *Codec) AgentDID() did.AgentDID {
	return c.agentDID
}

// ========================================
// Construction
// ========================================

// CreateResponseMessage builds an envelope carrying a typed message.
// If sign is true the envelope proof covers the canonical form of the
// header (without proof) and data part.
func (c *Codec) CreateResponseMessage(recipient did.AgentDID, dataType, dataID string, payload any, sign bool) (*SignedEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	env, err := c.newEnvelope(recipient)
	if err != nil {
		return nil, err
	}
	env.DataPart = DataPart{
		Type:    dataType,
		ID:      dataID,
		Payload: raw,
	}

	if sign {
		if err := c.signEnvelope(env); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// CreateArtifactResponse builds a signed envelope carrying a returned
// document (e.g. a completed CartMandate) as an artifact.
func (c *Codec) CreateArtifactResponse(recipient did.AgentDID, name string, document any, sign bool) (*SignedEnvelope, error) {
	raw, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact document: %w", err)
	}

	env, err := c.newEnvelope(recipient)
	if err != nil {
		return nil, err
	}
	env.DataPart = DataPart{
		Kind: KindArtifact,
		Artifact: &Artifact{
			Name:       name,
			ArtifactID: uuid.NewString(),
			Parts:      []Part{{Kind: "data", Data: raw}},
		},
	}

	if sign {
		if err := c.signEnvelope(env); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// CreateErrorResponse builds a signed error envelope. Details defaults
// to an empty mapping so callers always receive a structured object.
func (c *Codec) CreateErrorResponse(recipient did.AgentDID, errorCode, errorMessage string, details map[string]any) (*SignedEnvelope, error) {
	if details == nil {
		details = map[string]any{}
	}
	payload := ErrorPayload{
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
		Details:      details,
	}
	return c.CreateResponseMessage(recipient, ErrorMessageType, uuid.NewString(), payload, true)
}

func (c *Codec) newEnvelope(recipient did.AgentDID) (*SignedEnvelope, error) {
	if err := recipient.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}

	n, err := nonce.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &SignedEnvelope{
		Header: Header{
			MessageID:     uuid.NewString(),
			SenderDID:     c.agentDID,
			RecipientDID:  recipient,
			Timestamp:     c.now().UTC().Format(time.RFC3339),
			Nonce:         n,
			SchemaVersion: c.schemaVersion,
		},
	}, nil
}

func (c *Codec) signEnvelope(env *SignedEnvelope) error {
	digest, err := signingDigest(env)
	if err != nil {
		return err
	}

	signature, err := c.keyPair.Sign(digest)
	if err != nil {
		return fmt.Errorf("failed to sign envelope: %w", err)
	}

	encoded, err := c.keyPair.PublicKeyMultibase()
	if err != nil {
		return fmt.Errorf("failed to encode public key: %w", err)
	}

	env.Header.Proof = &Proof{
		Algorithm:          c.keyPair.Type(),
		SignatureValue:     base64.StdEncoding.EncodeToString(signature),
		PublicKeyMultibase: encoded,
		KID:                c.kid,
		Created:            c.now().UTC().Format(time.RFC3339),
		ProofPurpose:       ProofPurposeAuthentication,
	}
	return nil
}

// signingDigest computes the SHA-256 canonical digest of the envelope
// with the proof stripped from the header.
func signingDigest(env *SignedEnvelope) ([]byte, error) {
	header := env.Header
	header.Proof = nil

	digest, err := canonical.Digest(signingInput{Header: header, DataPart: env.DataPart})
	if err != nil {
		return nil, fmt.Errorf("failed to compute signing digest: %w", err)
	}
	return digest, nil
}

// ========================================
// Verification
// ========================================

// VerifyMessageSignature verifies an inbound envelope. All failure modes
// collapse to false; it never panics and never returns partial success.
//
// Checks, in order: proof present, supported algorithm, kid shape, kid
// DID equals the claimed sender, timestamp within the freshness window,
// nonce present and unused, and the signature verifies over the
// canonical digest with the resolved key.
//
// Nonce consumption happens here, so verifying the same envelope twice
// fails the second time: replay defense doubles as an idempotence
// boundary.
func (c *Codec) VerifyMessageSignature(ctx context.Context, env *SignedEnvelope) bool {
	if env == nil || env.Header.Proof == nil {
		return false
	}
	proof := env.Header.Proof

	if !proof.Algorithm.Supported() {
		c.logVerifyFailure(env, "unsupported algorithm")
		return false
	}

	signerDID, _, err := did.ParseKeyID(proof.KID)
	if err != nil {
		c.logVerifyFailure(env, "malformed kid")
		return false
	}

	// Signer must be the claimed sender. A mismatch here is a
	// key-substitution attempt, not a configuration problem.
	if signerDID != env.Header.SenderDID {
		c.logVerifyFailure(env, "kid does not match sender")
		return false
	}

	ts, err := time.Parse(time.RFC3339, env.Header.Timestamp)
	if err != nil {
		c.logVerifyFailure(env, "unparsable timestamp")
		return false
	}
	age := c.now().Sub(ts)
	if age > c.clockSkew || age < -c.clockSkew {
		c.logVerifyFailure(env, "timestamp outside freshness window")
		return false
	}

	if !c.nonces.IsValidNonce(env.Header.Nonce) {
		c.logVerifyFailure(env, "missing or replayed nonce")
		return false
	}

	pub, err := c.resolver.ResolvePublicKey(ctx, proof.KID)
	if err != nil {
		c.logVerifyFailure(env, "key resolution failed")
		return false
	}

	signature, err := base64.StdEncoding.DecodeString(proof.SignatureValue)
	if err != nil {
		c.logVerifyFailure(env, "undecodable signature")
		return false
	}

	digest, err := signingDigest(env)
	if err != nil {
		c.logVerifyFailure(env, "digest computation failed")
		return false
	}

	if !keys.Verify(proof.Algorithm, pub, digest, signature) {
		c.logVerifyFailure(env, "signature mismatch")
		return false
	}

	return true
}

func (c *Codec) logVerifyFailure(env *SignedEnvelope, reason string) {
	c.logger.Debug("envelope verification failed",
		"reason", reason,
		"message_id", env.Header.MessageID,
		"sender", env.Header.SenderDID,
	)
}

// ========================================
// Dispatch
// ========================================

// RegisterHandler associates a handler with a message type. A later
// registration for the same type replaces the earlier one.
func (c *Codec) RegisterHandler(messageType string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[messageType] = fn
}

// HandleMessage verifies an inbound envelope and dispatches it to the
// handler registered for its data_part type.
func (c *Codec) HandleMessage(ctx context.Context, env *SignedEnvelope) (any, error) {
	if env == nil {
		return nil, fmt.Errorf("envelope cannot be nil")
	}

	if env.Header.RecipientDID != c.agentDID {
		return nil, ErrRecipientMismatch
	}

	if !c.VerifyMessageSignature(ctx, env) {
		return nil, ErrInvalidSignature
	}

	c.mu.RLock()
	handler, ok := c.handlers[env.DataPart.Type]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no handler registered for type %q", env.DataPart.Type)
	}

	return handler(ctx, env)
}
