package arambo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/arambo/backoffice/internal/telemetry/metrics"
	"github.com/arambo/backoffice/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultCacheSizeMB = 10
	// GET responses are cached briefly to spare the backend from the
	// dashboard's refresh-happy tables
	readCacheExpireSeconds = 30
)

// TokenSource yields the current bearer token, if any. Implemented by the
// session credential store.
type TokenSource interface {
	Token() (string, bool)
}

// Client talks to the Arambo back-office API: auth endpoints plus the
// properties, trips, trucks and furniture resources. Mutating resource calls
// attach the bearer token from the token source; a 401 response fires the
// unauthorized hook exactly once per call and surfaces ErrUnauthorized.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	cache          *freecache.Cache
	metrics        *metrics.Manager
	onUnauthorized func()
}

func NewClient(
	baseURL string,
	httpClient *http.Client,
	tokens TokenSource,
	metricsManager *metrics.Manager,
) *Client {
	megabyte := 1024 * 1024
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		cache:      freecache.NewCache(defaultCacheSizeMB * megabyte),
		metrics:    metricsManager,
	}
}

// OnUnauthorized registers the session teardown hook, called whenever an
// authenticated call receives HTTP 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// apiEnvelope is the common response wrapper of the back-office API.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Admin   *Admin          `json:"admin"`
}

type requestParams struct {
	resource      string
	method        string
	path          string
	body          any
	authenticated bool
	bearerToken   string // explicit token, used by auth endpoints
}

// doJSON performs a request and unmarshals a 2xx response body into out
// (skipped when out is nil). Non-2xx responses are converted to errors; 401
// on authenticated calls additionally triggers the unauthorized hook.
func (c *Client) doJSON(ctx context.Context, p requestParams, out any) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aramboClient."+p.resource)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", p.method),
		attribute.String("http.path", p.path),
	)

	start := time.Now()

	var bodyReader io.Reader
	if p.body != nil {
		bodyBytes, err := json.Marshal(p.body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, p.method, c.baseURL+p.path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token := p.bearerToken
	if token == "" && p.authenticated {
		if t, ok := c.tokens.Token(); ok {
			token = t
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.countRequest(p.resource, p.method, "transport_error")
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.HistRequestDuration.Observe(time.Since(start).Seconds())
	c.countRequest(p.resource, p.method, strconv.Itoa(resp.StatusCode))

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && (p.authenticated || p.bearerToken != "") {
		c.metrics.CounterUnauthorized.Inc()
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return fmt.Errorf("%w: %s %s", ErrUnauthorized, p.method, p.path)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, p.method, p.path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, fmt.Sprintf("unexpected status %d", resp.StatusCode))
		return fmt.Errorf("%s %s: %s", p.method, p.path, apiErrorMessage(respBytes, resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("unmarshal response body: %w", err)
	}
	return nil
}

// getCachedJSON is doJSON for GETs, with a short-lived freecache layer in
// front of the API keyed by the request path.
func (c *Client) getCachedJSON(ctx context.Context, resource, path string, out any) error {
	cacheKey := []byte(resource + "::" + path)
	if cached, err := c.cache.Get(cacheKey); err == nil {
		log.Tracef("found %s response in cache", path)
		if err := json.Unmarshal(cached, out); err == nil {
			return nil
		}
		log.Errorf("failed to unmarshal cached response for %s, falling through", path)
		// drop the corrupt entry now; the re-cache below only happens
		// when the fresh response marshals cleanly
		c.cache.Del(cacheKey)
	}

	if err := c.doJSON(ctx, requestParams{
		resource: resource,
		method:   http.MethodGet,
		path:     path,
	}, out); err != nil {
		return err
	}

	respBytes, err := json.Marshal(out)
	if err == nil {
		if err := c.cache.Set(cacheKey, respBytes, readCacheExpireSeconds); err != nil {
			log.Errorf("failed to cache response for %s: %s", path, err)
		}
	}
	return nil
}

// invalidate drops a cached GET response after a successful mutation, so a
// follow-up read does not serve stale data for the whole cache TTL.
func (c *Client) invalidate(resource, path string) {
	c.cache.Del([]byte(resource + "::" + path))
}

func (c *Client) countRequest(resource, method, status string) {
	c.metrics.CounterAPIRequests.WithLabelValues(resource, method, status).Inc()
}

func apiErrorMessage(respBytes []byte, statusCode int) string {
	var envelope apiEnvelope
	if err := json.Unmarshal(respBytes, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	return fmt.Sprintf("unexpected status %d", statusCode)
}
