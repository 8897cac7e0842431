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

package authorization

import (
	"crypto"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ap2-project/ap2-go/pkg/keys"
)

// Authenticator data flags: user present | user verified
const authenticatorFlags = 0x05

// clientData is the WebAuthn client data document signed by the device
type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// Assertion is a WebAuthn-style device signature proving user presence
// and verification. The signature covers
// authenticator_data || SHA256(client_data_json).
type Assertion struct {
	Signature         []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
}

// NewAssertion produces an assertion with the user's device key over the
// given challenge.
func NewAssertion(deviceKey keys.KeyPair, rpID, origin, challenge string) (*Assertion, error) {
	if deviceKey == nil {
		return nil, fmt.Errorf("device key cannot be nil")
	}
	if challenge == "" {
		return nil, fmt.Errorf("challenge cannot be empty")
	}

	cdj, err := json.Marshal(clientData{
		Type:      "webauthn.get",
		Challenge: challenge,
		Origin:    origin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal client data: %w", err)
	}

	authData := newAuthenticatorData(rpID)

	signature, err := deviceKey.Sign(signedMessage(authData, cdj))
	if err != nil {
		return nil, fmt.Errorf("device signing failed: %w", err)
	}

	return &Assertion{
		Signature:         signature,
		AuthenticatorData: authData,
		ClientDataJSON:    cdj,
	}, nil
}

// Verify checks the device signature and, when expectedChallenge is
// non-empty, that the client data carries exactly that challenge.
func (a *Assertion) Verify(keyType keys.KeyType, devicePub crypto.PublicKey, expectedChallenge string) error {
	if len(a.Signature) == 0 || len(a.AuthenticatorData) == 0 || len(a.ClientDataJSON) == 0 {
		return fmt.Errorf("incomplete webauthn assertion")
	}

	var cd clientData
	if err := json.Unmarshal(a.ClientDataJSON, &cd); err != nil {
		return fmt.Errorf("invalid client data: %w", err)
	}
	if cd.Type != "webauthn.get" {
		return fmt.Errorf("unexpected client data type %q", cd.Type)
	}
	if expectedChallenge != "" && cd.Challenge != expectedChallenge {
		return fmt.Errorf("client data challenge does not match transaction data")
	}

	if !keys.Verify(keyType, devicePub, signedMessage(a.AuthenticatorData, a.ClientDataJSON), a.Signature) {
		return fmt.Errorf("webauthn signature verification failed")
	}
	return nil
}

// newAuthenticatorData builds the minimal authenticator data structure:
// SHA256(rpID) || flags || signCount.
func newAuthenticatorData(rpID string) []byte {
	rpIDHash := sha256.Sum256([]byte(rpID))

	data := make([]byte, 0, len(rpIDHash)+5)
	data = append(data, rpIDHash[:]...)
	data = append(data, authenticatorFlags)
	data = binary.BigEndian.AppendUint32(data, 1)
	return data
}

// signedMessage is the byte string the device signs:
// authenticator_data || SHA256(client_data_json).
func signedMessage(authData, clientDataJSON []byte) []byte {
	cdjHash := sha256.Sum256(clientDataJSON)
	return append(append([]byte{}, authData...), cdjHash[:]...)
}
