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

package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ap2-project/ap2-go/pkg/authorization"
	"github.com/ap2-project/ap2-go/pkg/did"
	"github.com/ap2-project/ap2-go/pkg/keys"
	"github.com/ap2-project/ap2-go/pkg/mandate"
	"github.com/ap2-project/ap2-go/pkg/resolver"
)

// reviewThreshold is the cart total above which this demo merchant
// "reviews" the cart before signing, exercising the pending/poll path.
const reviewThreshold = 50000

// merchantAgent is a demo merchant signing service
type merchantAgent struct {
	agentDID   did.AgentDID
	kid        did.KeyID
	keyPair    keys.KeyPair
	authorizer *authorization.CartAuthorizer
	document   *resolver.Document
	logger     *slog.Logger

	mu     sync.RWMutex
	signed map[string]*mandate.CartMandate
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	name := flag.String("name", "ticket-shop", "merchant name component of the DID")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	agentDID := did.New("merchant", *name)
	kid := did.NewKeyID(agentDID, 1)

	keyPair, err := keys.GenerateEd25519()
	if err != nil {
		logger.Error("key generation failed", "error", err)
		os.Exit(1)
	}

	authorizer, err := authorization.NewCartAuthorizer(agentDID, kid, keyPair)
	if err != nil {
		logger.Error("authorizer construction failed", "error", err)
		os.Exit(1)
	}

	document, err := resolver.NewDocument(agentDID, keyPair)
	if err != nil {
		logger.Error("DID document construction failed", "error", err)
		os.Exit(1)
	}

	agent := &merchantAgent{
		agentDID:   agentDID,
		kid:        kid,
		keyPair:    keyPair,
		authorizer: authorizer,
		document:   document,
		logger:     logger,
		signed:     make(map[string]*mandate.CartMandate),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/sign/cart", agent.handleSignCart)
	r.Get("/cart-mandates/signed/{id}", agent.handleGetSignedCart)
	r.Get("/did/{did}", agent.handleGetDIDDocument)

	logger.Info("merchant agent listening", "addr", *addr, "did", agentDID)
	if err := http.ListenAndServe(*addr, r); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// handleSignCart signs small carts synchronously and defers large ones
// to a short review, answering with a pending status.
func (a *merchantAgent) handleSignCart(w http.ResponseWriter, r *http.Request) {
	var cart mandate.CartMandate
	if err := json.NewDecoder(r.Body).Decode(&cart); err != nil {
		http.Error(w, "malformed cart mandate", http.StatusBadRequest)
		return
	}
	if cart.Status != mandate.CartStatusPending {
		http.Error(w, "cart is not pending signature", http.StatusConflict)
		return
	}

	if cart.Contents.Total.Value > reviewThreshold {
		a.logger.Info("cart deferred for review", "cart_id", cart.Contents.ID, "total", cart.Contents.Total)

		// Simulated human review
		deferred := cart
		go func() {
			time.Sleep(3 * time.Second)
			if err := a.signAndStore(&deferred); err != nil {
				a.logger.Error("deferred signing failed", "cart_id", deferred.Contents.ID, "error", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]string{
			"status":          string(mandate.CartStatusPending),
			"cart_mandate_id": cart.Contents.ID,
		})
		return
	}

	if err := a.signAndStore(&cart); err != nil {
		a.logger.Error("cart signing failed", "cart_id", cart.Contents.ID, "error", err)
		http.Error(w, "signing failed", http.StatusInternalServerError)
		return
	}

	a.logger.Info("cart signed", "cart_id", cart.Contents.ID, "total", cart.Contents.Total)
	writeJSON(w, map[string]any{"signed_cart_mandate": &cart})
}

func (a *merchantAgent) handleGetSignedCart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a.mu.RLock()
	cart, ok := a.signed[id]
	a.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, cart)
}

func (a *merchantAgent) handleGetDIDDocument(w http.ResponseWriter, r *http.Request) {
	if did.AgentDID(chi.URLParam(r, "did")) != a.agentDID {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, a.document)
}

func (a *merchantAgent) signAndStore(cart *mandate.CartMandate) error {
	token, err := a.authorizer.SignCart(cart.Contents)
	if err != nil {
		return err
	}
	if err := cart.AttachMerchantAuthorization(token); err != nil {
		return err
	}

	a.mu.Lock()
	a.signed[cart.Contents.ID] = cart
	a.mu.Unlock()
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
