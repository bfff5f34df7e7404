package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/enrich-cli/internal/breaker"
	"github.com/sells-group/enrich-cli/internal/credential"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
)

// Person is the chairman record extracted from a source page.
type Person struct {
	Name  string
	TaxID string
}

// ExtractFunc parses a source response body for one entity. It returns the
// extracted person, or found=false when the source answered and the entity
// is not listed. The concrete selector/regex logic per site lives behind
// this boundary.
type ExtractFunc func(entity model.Entity, body []byte) (person Person, found bool, err error)

// APIOptions configures an APIConnector.
type APIOptions struct {
	Name      string
	BaseURL   string
	RateLimit time.Duration
	// QueryParam names the search parameter carrying the entity tax ID.
	// Default "query".
	QueryParam string

	// PinnedKey is the credential assigned to this instance for its batch.
	// It takes priority over pool rotation until PinnedFailLimit failures,
	// after which the instance falls through to the pool so a bad key does
	// not permanently stall the batch.
	PinnedKey       string
	PinnedFailLimit int

	Pool    *credential.Pool
	Breaker *breaker.Breaker
	Retry   resilience.RetryConfig
	Extract ExtractFunc

	HTTPClient *http.Client
}

// APIConnector is the shared scaffold for HTTP-backed sources. It owns the
// orchestration-facing half of every site connector: breaker consultation,
// request pacing, credential selection and failover, status classification
// into the dispatcher's failure taxonomy, and bounded in-place retries.
type APIConnector struct {
	opts    APIOptions
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger

	pinned      string
	pinnedFails int
}

// NewAPI creates a connector instance for one batch.
func NewAPI(opts APIOptions) *APIConnector {
	if opts.QueryParam == "" {
		opts.QueryParam = "query"
	}
	if opts.PinnedFailLimit <= 0 {
		opts.PinnedFailLimit = 3
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.RateLimit), 1)
	}
	return &APIConnector{
		opts:    opts,
		client:  client,
		limiter: limiter,
		log:     zap.L().With(zap.String("source", opts.Name)),
		pinned:  opts.PinnedKey,
	}
}

func (c *APIConnector) Name() string { return c.opts.Name }

func (c *APIConnector) RateLimit() time.Duration { return c.opts.RateLimit }

// Close releases the instance's HTTP session resources.
func (c *APIConnector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// Lookup resolves one entity against the source.
func (c *APIConnector) Lookup(ctx context.Context, entity model.Entity) (model.Result, error) {
	var zero model.Result

	if c.opts.Breaker != nil && c.opts.Breaker.IsBlocked() {
		return zero, &BlockedError{Err: eris.Errorf("%s: cooling down for %s", c.opts.Name, c.opts.Breaker.Remaining())}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, eris.Wrap(err, "connector: rate wait")
		}
	}

	key := c.currentKey()

	retry := c.opts.Retry
	retry.ShouldRetry = IsRetryable
	retry.OnRetry = resilience.RetryLogger(c.opts.Name, entity.ID)

	result, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (model.Result, error) {
		return c.fetchOnce(ctx, entity, key)
	})
	if err != nil {
		return zero, c.afterFailure(key, err)
	}

	if c.opts.Pool != nil && key != "" {
		c.opts.Pool.MarkSuccess(key)
	}
	c.pinnedFails = 0
	return result, nil
}

// currentKey prefers the pinned credential until it has failed too often,
// then defers to the pool's rotation state. Keyless sources get "".
func (c *APIConnector) currentKey() string {
	if c.pinned != "" && c.pinnedFails < c.opts.PinnedFailLimit {
		return c.pinned
	}
	if c.opts.Pool == nil || c.opts.Pool.Size() == 0 {
		return ""
	}
	key, _ := c.opts.Pool.Current()
	return key
}

// afterFailure updates credential state for the failed key and upgrades a
// credential rejection to TerminalError once every key is exhausted.
func (c *APIConnector) afterFailure(key string, err error) error {
	ce, isCred := IsCredential(err)
	if !isCred {
		return err
	}

	if c.pinned != "" && key == c.pinned {
		c.pinnedFails++
		if c.pinnedFails >= c.opts.PinnedFailLimit {
			c.log.Warn("abandoning pinned credential", zap.Int("failures", c.pinnedFails))
		}
	}

	if c.opts.Pool != nil && c.opts.Pool.Size() > 0 {
		if _, rotated, _ := c.opts.Pool.FailOver(key); rotated {
			c.log.Info("rotated credential", zap.String("source", c.opts.Name))
		}
		if c.opts.Pool.Exhausted() {
			return &TerminalError{Err: eris.Wrapf(ce, "%s: all credentials exhausted", c.opts.Name)}
		}
	}
	return err
}

// fetchOnce performs a single request and classifies the response.
func (c *APIConnector) fetchOnce(ctx context.Context, entity model.Entity, key string) (model.Result, error) {
	var zero model.Result

	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return zero, eris.Wrapf(err, "connector: parse base url %s", c.opts.BaseURL)
	}
	q := u.Query()
	q.Set(c.opts.QueryParam, entity.ID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return zero, eris.Wrap(err, "connector: build request")
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return zero, &RetryableError{Err: resilience.NewTransientError(err, 0)}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return zero, &RetryableError{Err: resilience.NewTransientError(err, resp.StatusCode)}
	}

	if blocked, bt := DetectBlock(resp, body); blocked {
		if c.opts.Breaker != nil && c.opts.Breaker.Trip() {
			c.log.Warn("source block detected, breaker tripped", zap.String("block_type", string(bt)))
		}
		return zero, &BlockedError{Err: eris.Errorf("%s: blocked (%s)", c.opts.Name, bt)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return zero, &CredentialError{Key: key, Err: eris.Errorf("%s: status %d", c.opts.Name, resp.StatusCode)}
	case resp.StatusCode == http.StatusNotFound:
		return notFound(entity, c.opts.Name), nil
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return zero, &RetryableError{Err: resilience.NewTransientError(fmt.Errorf("%s: status %d", c.opts.Name, resp.StatusCode), resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return zero, &RetryableError{Err: eris.Errorf("%s: unexpected status %d", c.opts.Name, resp.StatusCode)}
	}

	person, found, err := c.opts.Extract(entity, body)
	if err != nil {
		// One-off parse miss: the page may render differently next attempt.
		return zero, &RetryableError{Err: eris.Wrapf(err, "%s: extract %s", c.opts.Name, entity.ID)}
	}
	if !found {
		return notFound(entity, c.opts.Name), nil
	}

	return model.Result{
		EntityID:     entity.ID,
		EntityName:   entity.Name,
		ChairmanName: person.Name,
		ChairmanID:   person.TaxID,
		Source:       c.opts.Name,
		Status:       model.StatusFound,
	}, nil
}

func notFound(entity model.Entity, source string) model.Result {
	return model.Result{
		EntityID:   entity.ID,
		EntityName: entity.Name,
		Source:     source,
		Status:     model.StatusNotFound,
	}
}
