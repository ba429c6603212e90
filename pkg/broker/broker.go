// Package broker mediates the OAuth2 authorization code flow with a SaaS
// provider and hands out the resulting credentials once.
package broker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-training/integration-broker/pkg/core"
	"github.com/go-training/integration-broker/pkg/items"
	"github.com/go-training/integration-broker/pkg/provider"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// DefaultTTL bounds how long pending states and credentials live.
const DefaultTTL = 600 * time.Second

const tracerName = "github.com/go-training/integration-broker/pkg/broker"

// Phase is a step of the callback state machine.
type Phase string

const (
	PhaseAwaitingRedirect Phase = "AwaitingRedirect"
	PhaseStateVerified    Phase = "StateVerified"
	PhaseTokenExchanged   Phase = "TokenExchanged"
	PhaseClosed           Phase = "Closed"
	PhaseFailed           Phase = "Failed"
)

// Config configures a Broker for one provider.
type Config struct {
	Provider provider.Provider
	Client   ClientConfig

	// StateTTL and CredentialTTL default to DefaultTTL.
	StateTTL      time.Duration
	CredentialTTL time.Duration

	// HTTPClient is used for token exchange and list requests.
	HTTPClient *http.Client
	// RequestTimeout bounds every outbound request.
	RequestTimeout time.Duration

	// PageSize and MaxPages tune item listing, see items.FetcherOptions.
	PageSize int
	MaxPages int

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// CallbackParams are the query parameters of the provider redirect.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult reports where the callback state machine stopped.
type CallbackResult struct {
	Phase  Phase
	UserID string
	OrgID  string
}

// Broker runs the authorize, callback and credential pickup phases for one
// provider and lists the provider's items.
type Broker struct {
	provider  provider.Provider
	store     core.Store
	stateTTL  time.Duration
	oauth     *oauth2.Config
	states    *StateManager
	exchanger *ExchangeClient
	creds     *CredentialCache
	fetcher   *items.Fetcher
	tracer    trace.Tracer
}

// New validates cfg and builds a Broker using store for pending states and
// credentials.
func New(cfg Config, store core.Store) (*Broker, error) {
	if store == nil {
		return nil, errors.New("broker: store is required")
	}
	if err := cfg.Provider.Validate(); err != nil {
		return nil, err
	}
	if cfg.Client.ClientID == "" || cfg.Client.ClientSecret == "" {
		return nil, errors.New("broker: client id and client secret are required")
	}
	if cfg.Client.RedirectURI == "" {
		return nil, errors.New("broker: redirect uri is required")
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = DefaultTTL
	}
	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = DefaultTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}

	p := cfg.Provider
	return &Broker{
		provider: p,
		store:    store,
		stateTTL: cfg.StateTTL,
		oauth: &oauth2.Config{
			ClientID:     cfg.Client.ClientID,
			ClientSecret: cfg.Client.ClientSecret,
			Endpoint:     p.Endpoint,
			RedirectURL:  cfg.Client.RedirectURI,
			Scopes:       append([]string(nil), p.Scopes...),
		},
		states:    NewStateManager(),
		exchanger: NewExchangeClient(p.Endpoint.TokenURL, cfg.Client, cfg.HTTPClient, cfg.RequestTimeout),
		creds:     NewCredentialCache(store, cfg.CredentialTTL),
		fetcher: items.NewFetcher(p.ListURL, items.FetcherOptions{
			PageSize:       cfg.PageSize,
			MaxPages:       cfg.MaxPages,
			RequestTimeout: cfg.RequestTimeout,
			HTTPClient:     cfg.HTTPClient,
		}),
		tracer: cfg.TracerProvider.Tracer(tracerName),
	}, nil
}

// Name returns the provider name.
func (b *Broker) Name() string {
	return b.provider.Name
}

// Authorize records a pending authorization for (userID, orgID) and returns
// the provider consent URL. It performs one store write and no network call.
func (b *Broker) Authorize(ctx context.Context, userID, orgID string) (string, error) {
	ctx, span := b.startSpan(ctx, "broker.Authorize", userID, orgID)
	defer span.End()

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(orgID) == "" {
		return "", b.fail(span, core.NewError(core.KindInvalidRequest, "user_id and org_id are required"))
	}

	token, err := b.states.Create(userID, orgID)
	if err != nil {
		return "", b.fail(span, err)
	}
	state, err := b.states.Serialize(token)
	if err != nil {
		return "", b.fail(span, err)
	}
	if err := b.store.Set(ctx, StateKey(b.Name(), orgID, userID), state, b.stateTTL); err != nil {
		return "", b.fail(span, core.WrapError(core.KindTransport, "failed to store state", err))
	}

	core.LoggerFromCtx(ctx).Debug("authorization started",
		"provider", b.Name(), "org_id", orgID, "user_id", userID)
	return b.oauth.AuthCodeURL(state), nil
}

// Callback handles the provider redirect. See Phase for the state machine;
// every failure is terminal and the result's Phase is PhaseFailed.
func (b *Broker) Callback(ctx context.Context, params CallbackParams) (CallbackResult, error) {
	ctx, span := b.tracer.Start(ctx, "broker.Callback",
		trace.WithAttributes(attribute.String("integration.provider", b.Name())))
	defer span.End()

	log := core.LoggerFromCtx(ctx).With("provider", b.Name())
	res := CallbackResult{Phase: PhaseAwaitingRedirect}
	transition := func(to Phase) {
		log.Debug("callback phase", "from", res.Phase, "to", to)
		res.Phase = to
		core.AddRequestAttributes(ctx, attribute.String("integration.phase", string(to)))
	}
	fail := func(err error) (CallbackResult, error) {
		transition(PhaseFailed)
		return res, b.fail(span, err)
	}

	if params.Error != "" {
		detail := params.Error
		if params.ErrorDescription != "" {
			detail += ": " + params.ErrorDescription
		}
		log.Info("provider denied authorization", "error", detail)
		return fail(core.NewError(core.KindProviderDenied, detail))
	}

	received, err := b.states.Deserialize(params.State)
	if err != nil {
		log.Warn("malformed oauth state, possible forgery attempt", "error", err)
		return fail(err)
	}
	res.UserID, res.OrgID = received.UserID, received.OrgID
	log = log.With("org_id", received.OrgID, "user_id", received.UserID)

	key := StateKey(b.Name(), received.OrgID, received.UserID)
	stored, err := b.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, core.ErrKeyNotFound) {
			log.Info("no pending authorization for state")
			return fail(core.NewError(core.KindStateMismatch, "state does not match: no pending authorization"))
		}
		return fail(core.WrapError(core.KindTransport, "failed to read state", err))
	}
	storedToken, err := b.states.Deserialize(stored)
	if err != nil || stored != params.State || !b.states.Verify(received, storedToken) {
		log.Warn("oauth state mismatch")
		return fail(core.NewError(core.KindStateMismatch, "state does not match"))
	}
	transition(PhaseStateVerified)

	if strings.TrimSpace(params.Code) == "" {
		b.deleteState(ctx, log, key)
		return fail(core.NewError(core.KindInvalidRequest, "authorization code is missing"))
	}

	var cred *core.Credential
	var g errgroup.Group
	g.Go(func() error {
		c, err := b.exchanger.Exchange(ctx, params.Code)
		if err != nil {
			return err
		}
		cred = c
		return nil
	})
	g.Go(func() error {
		b.deleteState(ctx, log, key)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("token exchange failed", "error", err)
		return fail(err)
	}
	transition(PhaseTokenExchanged)

	if err := b.creds.Put(ctx, b.Name(), received.OrgID, received.UserID, cred); err != nil {
		return fail(err)
	}
	transition(PhaseClosed)
	log.Info("authorization completed")
	return res, nil
}

// ConsumeCredentials returns the credential stored by a completed callback
// and removes it. Only the first call succeeds.
func (b *Broker) ConsumeCredentials(ctx context.Context, userID, orgID string) (*core.Credential, error) {
	ctx, span := b.startSpan(ctx, "broker.ConsumeCredentials", userID, orgID)
	defer span.End()

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(orgID) == "" {
		return nil, b.fail(span, core.NewError(core.KindInvalidRequest, "user_id and org_id are required"))
	}
	cred, err := b.creds.GetAndConsume(ctx, b.Name(), orgID, userID)
	if err != nil {
		return nil, b.fail(span, err)
	}
	return cred, nil
}

// Items returns the lazy item sequence of resourceType, see items.Fetcher.All.
// An empty resourceType lists the provider default.
func (b *Broker) Items(ctx context.Context, cred *core.Credential, resourceType string) (iter.Seq2[core.IntegrationItem, error], error) {
	if cred == nil || strings.TrimSpace(cred.AccessToken) == "" {
		return nil, core.NewError(core.KindInvalidRequest, "credential has no access_token")
	}
	resourceType, err := b.resourceType(resourceType)
	if err != nil {
		return nil, err
	}
	return b.fetcher.All(ctx, cred.Token(), resourceType), nil
}

// ListItems drains every page of resourceType. When a page fails the items
// gathered so far are returned with a core.ErrFetchFailed error; a listing
// cut short by the page limit returns them with core.ErrPageLimit.
func (b *Broker) ListItems(ctx context.Context, cred *core.Credential, resourceType string) ([]core.IntegrationItem, error) {
	resourceType, typeErr := b.resourceType(resourceType)
	ctx, span := b.tracer.Start(ctx, "broker.ListItems", trace.WithAttributes(
		attribute.String("integration.provider", b.Name()),
		attribute.String("integration.resource_type", resourceType),
	))
	defer span.End()

	if typeErr != nil {
		return nil, b.fail(span, typeErr)
	}
	if cred == nil || strings.TrimSpace(cred.AccessToken) == "" {
		return nil, b.fail(span, core.NewError(core.KindInvalidRequest, "credential has no access_token"))
	}
	out, err := b.fetcher.FetchAll(ctx, cred.Token(), resourceType)
	core.AddRequestAttributes(ctx, attribute.Int("integration.items", len(out)))
	if err != nil {
		return out, b.fail(span, err)
	}
	return out, nil
}

// resourceType resolves the listed type. Only plain object type names are
// accepted since the value becomes a path segment of the list URL.
func (b *Broker) resourceType(resourceType string) (string, error) {
	resourceType = strings.ToLower(strings.TrimSpace(resourceType))
	if resourceType == "" {
		return b.provider.DefaultResourceType, nil
	}
	if !items.ValidResourceType(resourceType) {
		return resourceType, core.NewError(core.KindInvalidRequest,
			fmt.Sprintf("invalid resource type %q", resourceType))
	}
	return resourceType, nil
}

// deleteState is best effort: a leftover state expires with its TTL.
func (b *Broker) deleteState(ctx context.Context, log *slog.Logger, key string) {
	if err := b.store.Delete(ctx, key); err != nil {
		log.Warn("failed to delete oauth state", "key", key, "error", err)
	}
}

func (b *Broker) startSpan(ctx context.Context, name, userID, orgID string) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("integration.provider", b.Name()),
		attribute.String("integration.user_id", userID),
		attribute.String("integration.org_id", orgID),
	))
}

func (b *Broker) fail(span trace.Span, err error) error {
	kind := core.KindOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	span.SetAttributes(attribute.String("integration.error_kind", string(kind)))
	return err
}
