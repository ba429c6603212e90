package items

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-training/integration-broker/pkg/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeProvider serves pages keyed by the "after" cursor. The page for the
// empty cursor is the first one.
type fakeProvider struct {
	t        *testing.T
	pages    map[string]string
	statuses map[string]int
	requests atomic.Int32
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.requests.Add(1)
	if got := r.Header.Get("Authorization"); got != "Bearer access-123" {
		p.t.Errorf("Authorization = %q, want bearer token", got)
	}
	if got := r.URL.Query().Get("limit"); got != "10" {
		p.t.Errorf("limit = %q, want 10", got)
	}
	after := r.URL.Query().Get("after")
	if status, ok := p.statuses[after]; ok {
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"status":"error","message":"page %q failed"}`, after)
		return
	}
	body, ok := p.pages[after]
	if !ok {
		p.t.Errorf("unexpected cursor %q", after)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func page(next string, ids ...string) string {
	results := make([]string, 0, len(ids))
	for _, id := range ids {
		results = append(results, fmt.Sprintf(`{"id":%q,"properties":{"firstname":"User","lastname":%q}}`, id, id))
	}
	paging := ""
	if next != "" {
		paging = fmt.Sprintf(`,"paging":{"next":{"after":%q,"link":"ignored"}}`, next)
	}
	return fmt.Sprintf(`{"results":[%s]%s}`, strings.Join(results, ","), paging)
}

func newTestFetcher(t *testing.T, p *fakeProvider, opts FetcherOptions) *Fetcher {
	t.Helper()
	p.t = t
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	opts.HTTPClient = srv.Client()
	return NewFetcher(func(resourceType string) string {
		return srv.URL + "/crm/v3/objects/" + resourceType
	}, opts)
}

var testToken = &oauth2.Token{AccessToken: "access-123", TokenType: "bearer"}

func ids(items []core.IntegrationItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestFetchAll_DrainsAllPagesInOrder(t *testing.T) {
	p := &fakeProvider{pages: map[string]string{
		"":   page("c1", "1", "2"),
		"c1": page("c2", "3", "4"),
		"c2": page("", "5"),
	}}
	f := newTestFetcher(t, p, FetcherOptions{})

	items, err := f.FetchAll(context.Background(), testToken, "contacts")
	require.NoError(t, err)
	assert.Equal(t, []string{"1_Contact", "2_Contact", "3_Contact", "4_Contact", "5_Contact"}, ids(items))
	assert.Equal(t, "User 1", items[0].Name)
	assert.Equal(t, int32(3), p.requests.Load())
}

func TestFetchAll_EmptyResult(t *testing.T) {
	p := &fakeProvider{pages: map[string]string{"": `{"results":[]}`}}
	f := newTestFetcher(t, p, FetcherOptions{})

	items, err := f.FetchAll(context.Background(), testToken, "contacts")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestFetchAll_PartialFailure(t *testing.T) {
	p := &fakeProvider{
		pages: map[string]string{
			"":   page("c1", "1", "2"),
			"c2": page("", "5"),
		},
		statuses: map[string]int{"c1": http.StatusTooManyRequests},
	}
	f := newTestFetcher(t, p, FetcherOptions{})

	items, err := f.FetchAll(context.Background(), testToken, "contacts")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrFetchFailed)
	assert.Equal(t, []string{"1_Contact", "2_Contact"}, ids(items))

	var fe *core.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusTooManyRequests, fe.Status)
	assert.Contains(t, fe.Body, "failed")
	assert.Equal(t, int32(2), p.requests.Load())
}

func TestFetchAll_SkipsMalformedRecords(t *testing.T) {
	p := &fakeProvider{pages: map[string]string{
		"": `{"results":[{"id":"1"},{"properties":{"firstname":"ghost"}},{"id":"3"}]}`,
	}}
	f := newTestFetcher(t, p, FetcherOptions{})

	items, err := f.FetchAll(context.Background(), testToken, "contacts")
	require.NoError(t, err)
	assert.Equal(t, []string{"1_Contact", "3_Contact"}, ids(items))
}

func TestFetchAll_UndecodablePage(t *testing.T) {
	p := &fakeProvider{pages: map[string]string{"": `<html>maintenance</html>`}}
	f := newTestFetcher(t, p, FetcherOptions{})

	items, err := f.FetchAll(context.Background(), testToken, "contacts")
	assert.ErrorIs(t, err, core.ErrFetchFailed)
	assert.Empty(t, items)
}

func TestFetchAll_RepeatedCursorStops(t *testing.T) {
	p := &fakeProvider{pages: map[string]string{
		"":     page("loop", "1"),
		"loop": page("loop", "2"),
	}}
	f := newTestFetcher(t, p, FetcherOptions{})

	items, err := f.FetchAll(context.Background(), testToken, "contacts")
	require.NoError(t, err)
	assert.Equal(t, []string{"1_Contact", "2_Contact"}, ids(items))
	assert.Equal(t, int32(2), p.requests.Load())
}

func TestFetchAll_MaxPages(t *testing.T) {
	p := &fakeProvider{pages: map[string]string{
		"":   page("c1", "1"),
		"c1": page("c2", "2"),
		"c2": page("", "3"),
	}}
	f := newTestFetcher(t, p, FetcherOptions{MaxPages: 2})

	items, err := f.FetchAll(context.Background(), testToken, "contacts")
	assert.ErrorIs(t, err, core.ErrPageLimit)
	assert.Equal(t, []string{"1_Contact", "2_Contact"}, ids(items))
	assert.Equal(t, int32(2), p.requests.Load())
}

func TestFetchAll_MaxPagesNotReached(t *testing.T) {
	p := &fakeProvider{pages: map[string]string{
		"":   page("c1", "1"),
		"c1": page("", "2"),
	}}
	f := newTestFetcher(t, p, FetcherOptions{MaxPages: 2})

	items, err := f.FetchAll(context.Background(), testToken, "contacts")
	require.NoError(t, err)
	assert.Equal(t, []string{"1_Contact", "2_Contact"}, ids(items))
}

func TestFetchAll_RejectsUnsafeResourceType(t *testing.T) {
	p := &fakeProvider{pages: map[string]string{"": page("", "1")}}
	f := newTestFetcher(t, p, FetcherOptions{})

	for _, resourceType := range []string{
		"contacts/../../../oauth/v1/access-tokens/a",
		"contacts?after=x",
		"contacts#frag",
		"",
	} {
		items, err := f.FetchAll(context.Background(), testToken, resourceType)
		assert.ErrorIs(t, err, core.ErrInvalidRequest, resourceType)
		assert.Empty(t, items)
	}
	assert.Zero(t, p.requests.Load())
}

func TestValidResourceType(t *testing.T) {
	for _, ok := range []string{"contacts", "companies", "line_items", "2-1234567", "p_custom"} {
		assert.True(t, ValidResourceType(ok), ok)
	}
	for _, bad := range []string{"", "contacts/..", "..", "a b", "contacts%2F", "épisodes"} {
		assert.False(t, ValidResourceType(bad), bad)
	}
}

func TestFetchAll_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	f := NewFetcher(func(string) string { return srv.URL }, FetcherOptions{
		HTTPClient:     srv.Client(),
		RequestTimeout: 20 * time.Millisecond,
	})

	_, err := f.FetchAll(context.Background(), testToken, "contacts")
	assert.ErrorIs(t, err, core.ErrTransport)
}

func TestAll_IsLazy(t *testing.T) {
	p := &fakeProvider{pages: map[string]string{
		"":   page("c1", "1", "2"),
		"c1": page("", "3"),
	}}
	f := newTestFetcher(t, p, FetcherOptions{})

	seq := f.All(context.Background(), testToken, "contacts")
	assert.Equal(t, int32(0), p.requests.Load())

	for item, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, "1_Contact", item.ID)
		break
	}
	assert.Equal(t, int32(1), p.requests.Load())

	// A second range over the same sequence yields nothing.
	count := 0
	for range seq {
		count++
	}
	assert.Zero(t, count)
	assert.Equal(t, int32(1), p.requests.Load())
}
