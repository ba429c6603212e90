// Package provider describes the SaaS providers the broker can delegate to:
// their OAuth endpoints, default scopes and resource list API.
package provider

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/oauth2"
)

// ErrUnknownProvider is returned by Lookup for an unregistered name.
var ErrUnknownProvider = errors.New("unknown provider")

// Provider is an immutable description of one OAuth2 provider.
type Provider struct {
	// Name is the lower-case identifier used in store keys and routes.
	Name string
	// Endpoint holds the fixed authorization and token URLs.
	Endpoint oauth2.Endpoint
	// Scopes requested on every authorization.
	Scopes []string
	// APIBaseURL is the root of the resource list API.
	APIBaseURL string
	// ListPath formats the list endpoint path for a resource type.
	ListPath string
	// DefaultResourceType is listed when the caller names none.
	DefaultResourceType string
}

// ListURL returns the list endpoint for resourceType. The resource type is
// path escaped so it stays a single path segment.
func (p Provider) ListURL(resourceType string) string {
	return strings.TrimRight(p.APIBaseURL, "/") + fmt.Sprintf(p.ListPath, url.PathEscape(resourceType))
}

// Validate checks the fields the broker depends on.
func (p Provider) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.New("provider name is required")
	case p.Endpoint.AuthURL == "":
		return fmt.Errorf("provider %q: auth url is required", p.Name)
	case p.Endpoint.TokenURL == "":
		return fmt.Errorf("provider %q: token url is required", p.Name)
	case p.APIBaseURL == "":
		return fmt.Errorf("provider %q: api base url is required", p.Name)
	case !strings.Contains(p.ListPath, "%s"):
		return fmt.Errorf("provider %q: list path must contain %%s", p.Name)
	}
	return nil
}

var builtin = map[string]func() Provider{
	"hubspot": HubSpot,
}

// Lookup returns the built-in provider registered under name.
func Lookup(name string) (Provider, error) {
	ctor, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return ctor(), nil
}

// Names lists the built-in provider names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
