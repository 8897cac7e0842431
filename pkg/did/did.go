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

package did

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AgentDID is a decentralized identifier naming a principal
// (agent, merchant, user or credential issuer), e.g. "did:ap2:merchant:acme"
type AgentDID string

// KeyID identifies one specific key of a principal: "<did>#key-N"
type KeyID string

// Method is the DID method used by AP2 principals
const Method = "ap2"

var (
	didPattern = regexp.MustCompile(`^did:[a-z0-9]+:.+$`)
	kidPattern = regexp.MustCompile(`^(did:[a-z0-9]+:[^#]+)#key-([0-9]+)$`)
)

// New builds an AP2 DID from a role and name, e.g. New("merchant", "acme")
func New(role, name string) AgentDID {
	return AgentDID(fmt.Sprintf("did:%s:%s:%s", Method, role, name))
}

// Validate checks that the DID has the basic "did:<method>:<identifier>" shape
func (d AgentDID) Validate() error {
	if d == "" {
		return fmt.Errorf("DID cannot be empty")
	}
	if !didPattern.MatchString(string(d)) {
		return fmt.Errorf("invalid DID format: %s", d)
	}
	return nil
}

// String returns the DID as a plain string
func (d AgentDID) String() string {
	return string(d)
}

// NewKeyID builds the key identifier for the n-th key of a DID
func NewKeyID(d AgentDID, n int) KeyID {
	return KeyID(fmt.Sprintf("%s#key-%d", d, n))
}

// ParseKeyID splits a kid into its DID and key index.
// The kid must match "did:<method>:<identifier>#key-<n>".
func ParseKeyID(kid KeyID) (AgentDID, int, error) {
	m := kidPattern.FindStringSubmatch(string(kid))
	if m == nil {
		return "", 0, fmt.Errorf("invalid kid format: %s", kid)
	}

	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("invalid key index in kid %s: %w", kid, err)
	}

	return AgentDID(m[1]), n, nil
}

// DID returns the DID component of the kid, or "" if the kid is malformed
func (k KeyID) DID() AgentDID {
	d, _, err := ParseKeyID(k)
	if err != nil {
		return ""
	}
	return d
}

// Validate checks the kid shape
func (k KeyID) Validate() error {
	_, _, err := ParseKeyID(k)
	return err
}

// String returns the kid as a plain string
func (k KeyID) String() string {
	return string(k)
}

// HasPrefix reports whether the DID starts with the given prefix.
// Used to pin an authorization issuer to an expected principal class,
// e.g. HasPrefix("did:ap2:merchant:")
func (d AgentDID) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(d), prefix)
}
