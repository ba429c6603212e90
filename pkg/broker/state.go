package broker

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-training/integration-broker/pkg/core"
)

// nonceBytes gives 256 bits of entropy per state token.
const nonceBytes = 32

// StateToken is the anti-forgery value sent through the provider's consent
// screen. It is bound to exactly one (user, org) pair and used once.
type StateToken struct {
	Nonce  string `json:"state"`
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
}

// StateManager creates, encodes and verifies state tokens.
type StateManager struct {
	random io.Reader
}

// NewStateManager returns a StateManager backed by crypto/rand.
func NewStateManager() *StateManager {
	return &StateManager{random: rand.Reader}
}

// Create returns a fresh token for the pair. It only fails when the random
// source is unavailable.
func (m *StateManager) Create(userID, orgID string) (StateToken, error) {
	b := make([]byte, nonceBytes)
	if _, err := io.ReadFull(m.random, b); err != nil {
		return StateToken{}, fmt.Errorf("failed to generate state nonce: %w", err)
	}
	return StateToken{
		Nonce:  base64.RawURLEncoding.EncodeToString(b),
		UserID: userID,
		OrgID:  orgID,
	}, nil
}

// Serialize encodes token as the JSON string placed in the state parameter.
func (m *StateManager) Serialize(token StateToken) (string, error) {
	data, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	return string(data), nil
}

// Deserialize parses a state parameter. It fails with core.ErrMalformedState
// when s is not a JSON object carrying all three fields.
func (m *StateManager) Deserialize(s string) (StateToken, error) {
	if strings.TrimSpace(s) == "" {
		return StateToken{}, core.NewError(core.KindMalformedState, "state is empty")
	}
	var token StateToken
	if err := json.Unmarshal([]byte(s), &token); err != nil {
		return StateToken{}, core.WrapError(core.KindMalformedState, "state is not valid JSON", err)
	}
	switch {
	case token.Nonce == "":
		return StateToken{}, core.NewError(core.KindMalformedState, "state nonce is missing")
	case token.UserID == "":
		return StateToken{}, core.NewError(core.KindMalformedState, "state user_id is missing")
	case token.OrgID == "":
		return StateToken{}, core.NewError(core.KindMalformedState, "state org_id is missing")
	}
	return token, nil
}

// Verify reports whether received and stored are exactly equal.
func (m *StateManager) Verify(received, stored StateToken) bool {
	return received.Nonce == stored.Nonce &&
		received.UserID == stored.UserID &&
		received.OrgID == stored.OrgID
}
