package items

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-training/integration-broker/pkg/core"
	"golang.org/x/oauth2"
)

const (
	// DefaultPageSize is the limit sent with every list request.
	DefaultPageSize       = 10
	defaultRequestTimeout = 10 * time.Second
	maxPageBodyBytes      = 4 << 20
	maxErrorBodyBytes     = 64 << 10
)

var resourceTypePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidResourceType reports whether resourceType is a plain object type name
// that can be placed in a list URL path.
func ValidResourceType(resourceType string) bool {
	return resourceTypePattern.MatchString(resourceType)
}

// ListURLFunc returns the list endpoint for a resource type.
type ListURLFunc func(resourceType string) string

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	// PageSize is the limit parameter; DefaultPageSize when zero.
	PageSize int
	// MaxPages stops pagination after this many pages; zero means no bound.
	MaxPages int
	// RequestTimeout bounds each page request.
	RequestTimeout time.Duration
	// HTTPClient supplies the base transport. Bearer auth is layered on top.
	HTTPClient *http.Client
}

// Fetcher drains a provider's cursor-paginated list endpoint.
type Fetcher struct {
	listURL    ListURLFunc
	pageSize   int
	maxPages   int
	timeout    time.Duration
	httpClient *http.Client
	normalizer Normalizer
}

// NewFetcher creates a Fetcher for the list endpoints returned by listURL.
func NewFetcher(listURL ListURLFunc, opts FetcherOptions) *Fetcher {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Fetcher{
		listURL:    listURL,
		pageSize:   opts.PageSize,
		maxPages:   opts.MaxPages,
		timeout:    opts.RequestTimeout,
		httpClient: opts.HTTPClient,
	}
}

type listPage struct {
	Results []json.RawMessage `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

func (p *listPage) nextCursor() string {
	if p.Paging == nil || p.Paging.Next == nil {
		return ""
	}
	return p.Paging.Next.After
}

// All returns a lazy sequence of the items of resourceType. Pages are
// requested as the sequence is consumed. When a page fails, or the page
// limit cuts the listing short, the error is yielded last with a zero item;
// items yielded before it remain valid. An invalid resource type yields a
// core.ErrInvalidRequest error before any request is sent.
// The sequence can be ranged over once; later ranges yield nothing.
func (f *Fetcher) All(ctx context.Context, token *oauth2.Token, resourceType string) iter.Seq2[core.IntegrationItem, error] {
	var used atomic.Bool
	return func(yield func(core.IntegrationItem, error) bool) {
		if used.Swap(true) {
			return
		}
		log := core.LoggerFromCtx(ctx).With("resource_type", resourceType)
		if !ValidResourceType(resourceType) {
			yield(core.IntegrationItem{}, core.NewError(core.KindInvalidRequest,
				fmt.Sprintf("invalid resource type %q", resourceType)))
			return
		}

		client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, f.httpClient),
			oauth2.StaticTokenSource(token))
		seen := make(map[string]struct{})
		cursor := ""

		for page := 0; ; page++ {
			if f.maxPages > 0 && page >= f.maxPages {
				log.Warn("page limit reached, stopping pagination", "max_pages", f.maxPages)
				yield(core.IntegrationItem{}, core.NewError(core.KindPageLimit,
					fmt.Sprintf("listing truncated after %d pages", f.maxPages)))
				return
			}

			lp, err := f.fetchPage(ctx, client, resourceType, cursor)
			if err != nil {
				log.Warn("page fetch failed", "page", page, "error", err)
				yield(core.IntegrationItem{}, err)
				return
			}

			for _, raw := range lp.Results {
				item, err := f.normalizer.NormalizeJSON(raw, resourceType)
				if err != nil {
					log.Warn("skipping record", "page", page, "error", err)
					continue
				}
				if !yield(item, nil) {
					return
				}
			}

			next := lp.nextCursor()
			if next == "" {
				log.Debug("pagination complete", "pages", page+1)
				return
			}
			if _, dup := seen[next]; dup {
				log.Warn("provider repeated a pagination cursor, stopping", "cursor", next)
				return
			}
			seen[next] = struct{}{}
			cursor = next
		}
	}
}

// FetchAll drains All. On a page failure or a truncated listing it returns
// the items collected so far together with the error.
func (f *Fetcher) FetchAll(ctx context.Context, token *oauth2.Token, resourceType string) ([]core.IntegrationItem, error) {
	out := []core.IntegrationItem{}
	for item, err := range f.All(ctx, token, resourceType) {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, client *http.Client, resourceType, cursor string) (*listPage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	u, err := url.Parse(f.listURL(resourceType))
	if err != nil {
		return nil, core.WrapError(core.KindInvalidRequest, "invalid list url", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(f.pageSize))
	if cursor != "" {
		q.Set("after", cursor)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, core.WrapError(core.KindInvalidRequest, "failed to build list request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.KindTransport, "list request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, core.UpstreamError(core.KindFetchFailed, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBodyBytes))
	if err != nil {
		return nil, core.WrapError(core.KindTransport, "failed to read list response", err)
	}

	var lp listPage
	if err := json.Unmarshal(body, &lp); err != nil {
		e := core.WrapError(core.KindFetchFailed, "undecodable list response", err)
		e.Status = resp.StatusCode
		e.Body = string(body)
		return nil, e
	}
	return &lp, nil
}
