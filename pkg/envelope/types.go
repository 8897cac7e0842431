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
	"encoding/json"

	"github.com/ap2-project/ap2-go/pkg/did"
	"github.com/ap2-project/ap2-go/pkg/keys"
)

// Data part kinds
const (
	// KindArtifact marks a data part carrying a returned signed document
	KindArtifact = "artifact"
)

// ErrorMessageType is the data_part type of error envelopes
const ErrorMessageType = "ap2.errors.Error"

// ProofPurposeAuthentication is the proof_purpose emitted on envelope proofs
const ProofPurposeAuthentication = "authentication"

// Proof is the cryptographic proof over an envelope's canonical form
type Proof struct {
	Algorithm          keys.KeyType `json:"algorithm"`
	SignatureValue     string       `json:"signature_value"`
	PublicKeyMultibase string       `json:"public_key_multibase"`
	KID                did.KeyID    `json:"kid"`
	Created            string       `json:"created"`
	ProofPurpose       string       `json:"proof_purpose"`
}

// Header is the envelope header. Proof is excluded from the signed bytes.
type Header struct {
	MessageID     string       `json:"message_id"`
	SenderDID     did.AgentDID `json:"sender_did"`
	RecipientDID  did.AgentDID `json:"recipient_did"`
	Timestamp     string       `json:"timestamp"`
	Nonce         string       `json:"nonce"`
	SchemaVersion string       `json:"schema_version"`
	Proof         *Proof       `json:"proof,omitempty"`
}

// Part is one element of an artifact
type Part struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Artifact is a returned signed document carried inside an envelope
// rather than as a typed request/response payload.
type Artifact struct {
	Name       string `json:"name"`
	ArtifactID string `json:"artifact_id"`
	Parts      []Part `json:"parts"`
}

// DataPart is either a typed message (Type, ID, Payload) or an artifact
// (Kind == "artifact", Artifact set).
type DataPart struct {
	Kind     string          `json:"kind,omitempty"`
	Type     string          `json:"type,omitempty"`
	ID       string          `json:"id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Artifact *Artifact       `json:"artifact,omitempty"`
}

// IsArtifact reports whether the data part carries an artifact
func (d *DataPart) IsArtifact() bool {
	return d.Kind == KindArtifact
}

// SignedEnvelope is the wire message exchanged between agents
type SignedEnvelope struct {
	Header   Header   `json:"header"`
	DataPart DataPart `json:"data_part"`
}

// ErrorPayload is the payload of an error envelope. Details is never nil
// on envelopes built by this library.
type ErrorPayload struct {
	ErrorCode    string         `json:"error_code"`
	ErrorMessage string         `json:"error_message"`
	Details      map[string]any `json:"details"`
}

// signingInput is the canonical form covered by the proof:
// the header without its proof, plus the data part.
type signingInput struct {
	Header   Header   `json:"header"`
	DataPart DataPart `json:"data_part"`
}
