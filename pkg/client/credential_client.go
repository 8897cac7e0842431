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

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ap2-project/ap2-go/pkg/mandate"
)

// AttestationResult is the credential provider's verdict on a payment
// mandate's user authorization.
type AttestationResult struct {
	Verified bool              `json:"verified"`
	Details  map[string]string `json:"details,omitempty"`
}

type attestationRequest struct {
	CartMandate    *mandate.CartMandate    `json:"cart_mandate"`
	PaymentMandate *mandate.PaymentMandate `json:"payment_mandate"`
}

// CredentialClient talks to a credential provider's attestation endpoint
type CredentialClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCredentialClient creates a client for the credential provider at
// baseURL. If httpClient is nil, http.DefaultClient is used.
func NewCredentialClient(baseURL string, httpClient *http.Client) (*CredentialClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("credential provider base URL cannot be empty")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &CredentialClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// VerifyAttestation asks the credential provider to verify the payment
// mandate's user authorization against the signed cart. A network or
// protocol failure is an error; an authorization the provider examined
// and rejected comes back as Verified=false with details.
func (c *CredentialClient) VerifyAttestation(ctx context.Context, cart *mandate.CartMandate, payment *mandate.PaymentMandate) (*AttestationResult, error) {
	if cart == nil || payment == nil {
		return nil, fmt.Errorf("cart and payment mandates are required")
	}

	body, err := json.Marshal(attestationRequest{
		CartMandate:    cart,
		PaymentMandate: payment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attestation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify/attestation", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("attestation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attestation request failed: %s", readError(resp))
	}

	var result AttestationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode attestation result: %w", err)
	}
	return &result, nil
}
