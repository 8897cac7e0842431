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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ap2-project/ap2-go/pkg/mandate"
)

// ErrNotSigned means the merchant has not signed the cart yet.
// Callers poll again or give up; it is not a failure of the request itself.
var ErrNotSigned = errors.New("cart mandate not signed yet")

// DefaultPollInterval is the default delay between signed-cart polls
const DefaultPollInterval = 2 * time.Second

// SignCartResult is the merchant's answer to a cart signing request.
// Either SignedCart is set (synchronous signing) or Pending is true and
// the caller must poll with CartMandateID.
type SignCartResult struct {
	SignedCart    *mandate.CartMandate
	Pending       bool
	CartMandateID string
}

type signCartResponse struct {
	SignedCartMandate *mandate.CartMandate `json:"signed_cart_mandate,omitempty"`
	Status            string               `json:"status,omitempty"`
	CartMandateID     string               `json:"cart_mandate_id,omitempty"`
}

// MerchantClient talks to a merchant agent's cart signing endpoints
type MerchantClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewMerchantClient creates a client for the merchant agent at baseURL.
// If httpClient is nil, http.DefaultClient is used.
func NewMerchantClient(baseURL string, httpClient *http.Client) (*MerchantClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("merchant base URL cannot be empty")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &MerchantClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     slog.Default(),
	}, nil
}

// SetLogger replaces the client's logger
func (c *MerchantClient) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// RequestCartSignature submits an unsigned cart mandate for merchant
// signing. Merchants that require human review answer with a pending
// status instead of a signed cart.
func (c *MerchantClient) RequestCartSignature(ctx context.Context, cart *mandate.CartMandate) (*SignCartResult, error) {
	if cart == nil {
		return nil, fmt.Errorf("cart mandate cannot be nil")
	}

	body, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cart mandate: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sign/cart", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("merchant rejected sign request: %s", readError(resp))
	}

	var parsed signCartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode sign response: %w", err)
	}

	if parsed.SignedCartMandate != nil {
		return &SignCartResult{SignedCart: parsed.SignedCartMandate}, nil
	}
	if parsed.Status == string(mandate.CartStatusPending) && parsed.CartMandateID != "" {
		return &SignCartResult{Pending: true, CartMandateID: parsed.CartMandateID}, nil
	}
	return nil, fmt.Errorf("merchant returned neither a signed cart nor a pending status")
}

// GetSignedCart fetches the signed cart mandate by id.
// Returns ErrNotSigned while the merchant has not signed it.
func (c *MerchantClient) GetSignedCart(ctx context.Context, cartMandateID string) (*mandate.CartMandate, error) {
	if cartMandateID == "" {
		return nil, fmt.Errorf("cart mandate id cannot be empty")
	}

	url := fmt.Sprintf("%s/cart-mandates/signed/%s", c.baseURL, cartMandateID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signed cart request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var cart mandate.CartMandate
		if err := json.NewDecoder(resp.Body).Decode(&cart); err != nil {
			return nil, fmt.Errorf("failed to decode signed cart: %w", err)
		}
		return &cart, nil

	case http.StatusNotFound:
		return nil, ErrNotSigned

	default:
		return nil, fmt.Errorf("signed cart request failed: %s", readError(resp))
	}
}

// WaitForSignedCart polls GetSignedCart at pollInterval until the cart is
// signed or timeout elapses. Transient errors are retried; the overall
// deadline never resets.
func (c *MerchantClient) WaitForSignedCart(ctx context.Context, cartMandateID string, timeout, pollInterval time.Duration) (*mandate.CartMandate, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		cart, err := c.GetSignedCart(ctx, cartMandateID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, ErrNotSigned) {
			c.logger.Debug("signed cart poll failed, retrying",
				"cart_mandate_id", cartMandateID, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("cart %s was not signed in time: %w", cartMandateID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// readError extracts a short error description from a non-2xx response
func readError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil || len(body) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
}
