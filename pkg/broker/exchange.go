package broker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-training/integration-broker/pkg/core"
)

const (
	defaultRequestTimeout     = 10 * time.Second
	maxTokenResponseBodyBytes = 1 << 20
)

// ClientConfig holds the OAuth client registration. It is set once at
// construction and never changed.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// ExchangeClient trades authorization codes for tokens at a provider's
// token endpoint. Codes are single-use, so it never retries.
type ExchangeClient struct {
	tokenURL   string
	client     ClientConfig
	httpClient *http.Client
	timeout    time.Duration
}

// NewExchangeClient creates an ExchangeClient. A nil httpClient uses
// http.DefaultClient; a non-positive timeout uses 10s.
func NewExchangeClient(tokenURL string, client ClientConfig, httpClient *http.Client, timeout time.Duration) *ExchangeClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &ExchangeClient{
		tokenURL:   tokenURL,
		client:     client,
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// Exchange posts the authorization_code grant and decodes the token response.
// A non-2xx answer fails with core.ErrTokenExchangeFailed carrying the status
// and body; network errors and timeouts fail with core.ErrTransport.
func (c *ExchangeClient) Exchange(ctx context.Context, code string) (*core.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.client.RedirectURI},
		"client_id":     {c.client.ClientID},
		"client_secret": {c.client.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, core.WrapError(core.KindInvalidRequest, "failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.WrapError(core.KindTransport, "token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBodyBytes))
	if err != nil {
		return nil, core.WrapError(core.KindTransport, "failed to read token response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.UpstreamError(core.KindTokenExchangeFailed, resp.StatusCode, string(body))
	}

	var cred core.Credential
	if err := json.Unmarshal(body, &cred); err != nil {
		e := core.UpstreamError(core.KindTokenExchangeFailed, resp.StatusCode, string(body))
		e.Detail = "undecodable token response"
		e.Err = err
		return nil, e
	}
	if cred.AccessToken == "" {
		e := core.UpstreamError(core.KindTokenExchangeFailed, resp.StatusCode, string(body))
		e.Detail = "token response has no access_token"
		return nil, e
	}
	return &cred, nil
}
