package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/listing"
)

const (
	loginPath   = "/auth/token/"
	refreshPath = "/auth/token/refresh/"
)

var errRenewalDisabled = errors.New("token renewal disabled by retry policy")

type (
	// RetryPolicy decides what the client does once the API rejects its access token.
	// The rejected request is retried at most once, whichever way the token was renewed.
	RetryPolicy struct {
		Refresh bool // exchange the refresh token for a new access token
		Relogin bool // log in again with the configured credentials if refreshing failed
	}

	Options struct {
		BaseURL    string
		Username   string
		Password   string
		Timeout    time.Duration
		Policy     RetryPolicy
		HTTPClient *http.Client
	}

	TokenPair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}

	// Client talks to the ERP REST API on behalf of the console.
	// It owns the session tokens; build one per process and pass it around.
	Client struct {
		opts    Options
		http    *http.Client
		logger  core.Logger
		metrics *metrics

		mu     sync.Mutex // guards tokens
		tokens TokenPair

		authMu sync.Mutex // serializes logins & refreshes
	}
)

var DefaultRetryPolicy = RetryPolicy{Refresh: true, Relogin: true}

// NewOptions maps the upstream configuration to client options, with the default retry policy.
func NewOptions(conf *core.Config) Options {
	return Options{
		BaseURL:  conf.Upstream.BaseURL,
		Username: conf.Upstream.Username,
		Password: conf.Upstream.Password,
		Timeout:  conf.Upstream.Timeout,
		Policy:   DefaultRetryPolicy,
	}
}

func NewClient(opts Options, logger core.Logger) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		opts:    opts,
		http:    httpClient,
		logger:  logger,
		metrics: metricsSingleton(),
	}
}

func (c *Client) Tokens() TokenPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

func (c *Client) SetTokens(tokens TokenPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
}

func (c *Client) hasCredentials() bool {
	return c.opts.Username != "" && c.opts.Password != ""
}

// Login obtains a new token pair with the given credentials.
func (c *Client) Login(ctx context.Context, username, password string) (TokenPair, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.login(ctx, username, password)
}

// Refresh exchanges the refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.refresh(ctx)
}

// FetchPage loads one page of a list endpoint and normalizes it.
func (c *Client) FetchPage(ctx context.Context, endpoint string, params url.Values) (listing.Page, error) {
	body, err := c.Get(ctx, endpoint, params)
	if err != nil {
		return listing.Page{}, err
	}
	page := listing.NormalizeJSON(body)
	c.metrics.pageItemsLoaded.WithLabelValues(endpoint).Add(float64(len(page.Items)))
	return page, nil
}

func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, endpoint, endpoint, params, nil)
}

// Patch sends a partial update of the record `id` of the `collection` endpoint.
func (c *Client) Patch(ctx context.Context, collection, id string, values interface{}) ([]byte, error) {
	endpoint := strings.TrimSuffix(collection, "/") + "/" + url.PathEscape(id) + "/"
	return c.do(ctx, http.MethodPatch, endpoint, collection, nil, values)
}

// do sends a request to `endpoint`. Metrics are labelled with `route`, the endpoint without record IDs.
func (c *Client) do(
	ctx context.Context,
	method, endpoint, route string,
	params url.Values,
	payload interface{},
) ([]byte, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, errors.Wrap(err, "logging in")
	}

	access := c.Tokens().Access
	status, body, err := c.send(ctx, method, endpoint, route, params, payload, access)
	if err != nil {
		return nil, err
	}
	if status < http.StatusMultipleChoices {
		return body, nil
	}

	apiErr := newAPIError(status, body)
	if !apiErr.tokenInvalid() {
		return nil, apiErr
	}
	if err := c.renew(ctx, access); err != nil {
		c.logger.Warn("could not renew upstream token", err, map[string]interface{}{"endpoint": endpoint})
		return nil, apiErr
	}

	status, body, err = c.send(ctx, method, endpoint, route, params, payload, c.Tokens().Access)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusMultipleChoices {
		return nil, newAPIError(status, body)
	}
	return body, nil
}

// ensureToken logs in with the configured credentials if the client has no access token yet.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.Tokens().Access != "" || !c.hasCredentials() {
		return nil
	}
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if c.Tokens().Access != "" {
		return nil
	}
	_, err := c.login(ctx, c.opts.Username, c.opts.Password)
	return err
}

// renew replaces the rejected access token `failed` according to the retry policy.
func (c *Client) renew(ctx context.Context, failed string) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	// renewed by a concurrent request in the meantime
	if current := c.Tokens().Access; current != "" && current != failed {
		return nil
	}

	err := errRenewalDisabled
	if c.opts.Policy.Refresh {
		if err = c.refresh(ctx); err == nil {
			return nil
		}
		c.logger.Debug("refreshing upstream token failed", err)
	}
	if c.opts.Policy.Relogin && c.hasCredentials() {
		_, err = c.login(ctx, c.opts.Username, c.opts.Password)
	}
	return err
}

func (c *Client) login(ctx context.Context, username, password string) (tokens TokenPair, err error) {
	defer func() { c.metrics.observeToken("login", err) }()

	if username == "" || password == "" {
		return TokenPair{}, ErrNoCredentials
	}
	payload := map[string]string{"username": username, "password": password}
	status, body, err := c.send(ctx, http.MethodPost, loginPath, loginPath, nil, payload, "")
	if err != nil {
		return TokenPair{}, err
	}
	if status >= http.StatusMultipleChoices {
		return TokenPair{}, newAPIError(status, body)
	}
	if err = json.Unmarshal(body, &tokens); err != nil {
		return TokenPair{}, errors.Wrap(err, "decoding token pair")
	}
	if tokens.Access == "" {
		return TokenPair{}, errors.New("login answered without an access token")
	}
	c.SetTokens(tokens)
	return tokens, nil
}

func (c *Client) refresh(ctx context.Context) (err error) {
	defer func() { c.metrics.observeToken("refresh", err) }()

	current := c.Tokens()
	if current.Refresh == "" {
		return ErrNoRefresh
	}
	payload := map[string]string{"refresh": current.Refresh}
	status, body, err := c.send(ctx, http.MethodPost, refreshPath, refreshPath, nil, payload, "")
	if err != nil {
		return err
	}
	if status >= http.StatusMultipleChoices {
		return newAPIError(status, body)
	}

	var renewed TokenPair
	if err = json.Unmarshal(body, &renewed); err != nil {
		return errors.Wrap(err, "decoding refreshed token")
	}
	if renewed.Access == "" {
		return errors.New("refresh answered without an access token")
	}
	if renewed.Refresh == "" { // refresh tokens are not rotated
		renewed.Refresh = current.Refresh
	}
	c.SetTokens(renewed)
	return nil
}

func (c *Client) send(
	ctx context.Context,
	method, endpoint, route string,
	params url.Values,
	payload interface{},
	access string,
) (int, []byte, error) {
	u := c.opts.BaseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, errors.Wrap(err, "encoding payload")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return 0, nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observeRequest(route, 0, started)
		return 0, nil, errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.observeRequest(route, resp.StatusCode, started)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "reading %s %s", method, endpoint)
	}
	return resp.StatusCode, body, nil
}
