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

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ap2-project/ap2-go/pkg/envelope"
)

// Error codes carried in error envelopes
const (
	ErrorCodeBadRequest        = "bad_request"
	ErrorCodeRecipientMismatch = "recipient_mismatch"
	ErrorCodeInvalidSignature  = "invalid_signature"
	ErrorCodeNoHandler         = "no_handler"
	ErrorCodeHandlerFailed     = "handler_error"
)

// EnvelopeHandler exposes an agent's codec over HTTP: POSTed signed
// envelopes are verified and dispatched, and the handler's result is
// returned as a signed envelope addressed back to the sender.
type EnvelopeHandler struct {
	codec  *envelope.Codec
	logger *slog.Logger
}

// NewEnvelopeHandler creates an HTTP handler around the agent's codec
func NewEnvelopeHandler(codec *envelope.Codec, logger *slog.Logger) (*EnvelopeHandler, error) {
	if codec == nil {
		return nil, errors.New("codec cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EnvelopeHandler{codec: codec, logger: logger}, nil
}

// ServeHTTP implements http.Handler
func (h *EnvelopeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var env envelope.SignedEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		// No sender to address a signed error to
		writeJSONError(w, http.StatusBadRequest, ErrorCodeBadRequest, "malformed envelope")
		return
	}

	ctx := r.Context()
	result, err := h.codec.HandleMessage(ctx, &env)
	if err != nil {
		h.writeErrorEnvelope(w, &env, err)
		return
	}

	response, ok := result.(*envelope.SignedEnvelope)
	if !ok {
		// Handlers returning plain values get wrapped for them
		response, err = h.codec.CreateResponseMessage(env.Header.SenderDID, env.DataPart.Type, env.DataPart.ID, result, true)
		if err != nil {
			h.logger.Error("failed to wrap handler result", "error", err)
			writeJSONError(w, http.StatusInternalServerError, ErrorCodeHandlerFailed, "failed to build response")
			return
		}
	}

	writeEnvelope(w, http.StatusOK, response)
}

// writeErrorEnvelope maps a dispatch error to an error code and HTTP
// status, then answers with a signed error envelope.
func (h *EnvelopeHandler) writeErrorEnvelope(w http.ResponseWriter, env *envelope.SignedEnvelope, dispatchErr error) {
	var code string
	var status int

	switch {
	case errors.Is(dispatchErr, envelope.ErrRecipientMismatch):
		code, status = ErrorCodeRecipientMismatch, http.StatusForbidden
	case errors.Is(dispatchErr, envelope.ErrInvalidSignature):
		code, status = ErrorCodeInvalidSignature, http.StatusUnauthorized
	case strings.Contains(dispatchErr.Error(), "no handler registered"):
		code, status = ErrorCodeNoHandler, http.StatusNotFound
	default:
		code, status = ErrorCodeHandlerFailed, http.StatusInternalServerError
	}

	h.logger.Debug("envelope dispatch failed",
		"error_code", code,
		"message_id", env.Header.MessageID,
		"sender", env.Header.SenderDID,
		"error", dispatchErr,
	)

	// An unverifiable sender DID cannot receive a signed error
	if env.Header.SenderDID.Validate() != nil {
		writeJSONError(w, status, code, dispatchErr.Error())
		return
	}

	errEnv, err := h.codec.CreateErrorResponse(env.Header.SenderDID, code, dispatchErr.Error(), map[string]any{
		"request_message_id": env.Header.MessageID,
	})
	if err != nil {
		h.logger.Error("failed to build error envelope", "error", err)
		writeJSONError(w, http.StatusInternalServerError, ErrorCodeHandlerFailed, "failed to build error response")
		return
	}

	writeEnvelope(w, status, errEnv)
}

func writeEnvelope(w http.ResponseWriter, status int, env *envelope.SignedEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope.ErrorPayload{
		ErrorCode:    code,
		ErrorMessage: message,
		Details:      map[string]any{},
	})
}
