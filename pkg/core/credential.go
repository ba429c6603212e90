package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// Credential is a provider token response as returned by the token endpoint.
// Fields the broker does not model are kept in Extra so the stored and
// returned payload matches what the provider sent.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var credentialFields = []string{"access_token", "refresh_token", "token_type", "expires_in"}

// UnmarshalJSON decodes the known token fields and keeps the rest in Extra.
func (c *Credential) UnmarshalJSON(data []byte) error {
	type plain Credential
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, field := range credentialFields {
		delete(all, field)
	}
	if len(all) == 0 {
		all = nil
	}

	*c = Credential(p)
	c.Extra = all
	return nil
}

// MarshalJSON merges Extra back with the known token fields.
func (c Credential) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+len(credentialFields))
	for k, v := range c.Extra {
		out[k] = v
	}
	out["access_token"] = c.AccessToken
	out["token_type"] = c.TokenType
	if c.RefreshToken != "" {
		out["refresh_token"] = c.RefreshToken
	}
	if c.ExpiresIn != 0 {
		out["expires_in"] = c.ExpiresIn
	}
	return json.Marshal(out)
}

// ParseCredential decodes a credential payload and checks it carries an access token.
func ParseCredential(raw string) (*Credential, error) {
	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, fmt.Errorf("failed to decode credential: %w", err)
	}
	if strings.TrimSpace(cred.AccessToken) == "" {
		return nil, fmt.Errorf("credential has no access_token")
	}
	return &cred, nil
}

// Token returns an oauth2.Token view of the credential for bearer requests.
// Expiry is left zero: the broker does not track issue time, the provider
// rejects stale tokens itself.
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		ExpiresIn:    c.ExpiresIn,
	}
}
