package citymind

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 30 * time.Second

	// The portal's settings endpoint is not immediately consistent after
	// writes; reads issued right after a mutation return the old state.
	defaultSettleDelay = time.Second
)

// ConfigData are the resolved portal credentials for one account.
type ConfigData struct {
	Email    string
	Password string
}

// Client owns the HTTP session against the portal for a single account: the
// login handshake, the authenticated fetch primitives, and the update cycle
// that fills the raw data store. All failures terminate in a status
// transition plus a logged diagnostic; no network or parse error escapes
// the public methods.
type Client struct {
	cfg       ConfigData
	logger    *zap.Logger
	callbacks Callbacks

	httpClient  *http.Client
	baseURL     string
	settleDelay time.Duration

	periods *AnalyticPeriods
	store   *Store

	mu     sync.Mutex
	status ConnectivityStatus
	token  string

	// cycleMu serializes update cycles so a new cycle never interleaves
	// writes with one still in flight.
	cycleMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different portal base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithRequestTimeout bounds every portal request.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithSettleDelay overrides the wait between an alert-settings write and
// the reload that follows it.
func WithSettleDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.settleDelay = delay
	}
}

// WithPeriods supplies a pre-built analytic period window.
func WithPeriods(periods *AnalyticPeriods) Option {
	return func(c *Client) {
		c.periods = periods
	}
}

// NewClient creates a session client for the given account. The client
// starts in StatusNotConnected; Initialize performs the login handshake.
func NewClient(cfg ConfigData, logger *zap.Logger, callbacks Callbacks, opts ...Option) *Client {
	c := &Client{
		cfg:         cfg,
		logger:      logger,
		callbacks:   callbacks,
		httpClient:  &http.Client{Timeout: defaultRequestTimeout},
		baseURL:     DefaultBaseURL,
		settleDelay: defaultSettleDelay,
		periods:     NewAnalyticPeriods(),
		store:       NewStore(),
		status:      StatusNotConnected,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Status returns the current connectivity status.
func (c *Client) Status() ConnectivityStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// Token returns the current session token, empty when not logged in.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.token
}

// Data returns a consistent snapshot of the raw data store.
func (c *Client) Data() Snapshot {
	return c.store.Snapshot()
}

// LastUpdate returns when an authenticated fetch last succeeded.
func (c *Client) LastUpdate() time.Time {
	return c.store.LastUpdate()
}

// Periods returns the analytic period window used for endpoint templating.
func (c *Client) Periods() *AnalyticPeriods {
	return c.periods
}

// MunicipalityID returns the municipality identifier resolved from the
// account profile, or empty before the first initialize fetch.
func (c *Client) MunicipalityID() string {
	payload := c.store.Section(SectionMe)
	if payload == nil {
		return ""
	}

	var me MeProfile
	if err := json.Unmarshal(payload, &me); err != nil {
		return ""
	}

	return me.MunicipalID.String()
}

// Initialize starts the login handshake. It always resolves by changing
// status, never by returning an error.
func (c *Client) Initialize(ctx context.Context) {
	c.setStatus(StatusConnecting, "initializing portal session")

	c.login(ctx)
}

// Terminate closes the underlying connections and marks the client
// disconnected. Safe to call at any point, including mid-cycle; in-flight
// requests fail naturally into the Failed path.
func (c *Client) Terminate() {
	c.httpClient.CloseIdleConnections()

	c.setStatus(StatusDisconnected, "termination requested")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

type loginResponse struct {
	Token       string `json:"token"`
	ErrorCode   int    `json:"errorCode"`
	ErrorReason string `json:"errorReason"`
}

func (c *Client) login(ctx context.Context) {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	body := loginRequest{
		Email:    c.cfg.Email,
		Password: c.cfg.Password,
		DeviceID: loginDeviceID,
	}

	payload, outcome := c.send(ctx, http.MethodPost, endpointLogin, c.params(""), body, false)
	if !outcome.ok() {
		c.setStatus(StatusFailed, c.diagnostic(endpointLogin, http.MethodPost, outcome))
		return
	}

	var resp loginResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		c.setStatus(StatusFailed, fmt.Sprintf("failed to parse login response: %v", err))
		return
	}

	switch {
	case resp.ErrorCode == errorCodeInvalidCredentials:
		c.setStatus(StatusInvalidCredentials, fmt.Sprintf("login rejected, error #%d: %s", resp.ErrorCode, resp.ErrorReason))

	case resp.Token != "":
		c.mu.Lock()
		c.token = resp.Token
		c.mu.Unlock()

		c.setStatus(StatusConnected, "")

	default:
		c.setStatus(StatusMissingAPIKey, "login succeeded but no token was returned")
	}
}

// Update runs one update cycle: initialize group (until the municipality id
// is resolved), the account-level update group, then the per-meter group
// for every known meter. Each step re-checks the status so a mid-cycle 401
// or failure aborts the remaining fetches instead of reusing a known-bad
// session. A single data-changed event fires after the cycle completes.
// Cycles for the same client are serialized.
func (c *Client) Update(ctx context.Context) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	c.logger.Debug("updating portal data",
		zap.String("email", c.cfg.Email),
		zap.Stringer("status", c.Status()),
	)

	if !c.Status().IsOnline() {
		return
	}

	if c.periods.Refresh(time.Now()) {
		c.logger.Debug("analytic periods recomputed",
			zap.String("today", c.periods.TodayISO()),
		)
	}

	if c.MunicipalityID() == "" {
		c.loadGroup(ctx, initializeGroup, "")
	}

	c.loadGroup(ctx, updateGroup, "")

	for _, meterID := range c.meterIDs() {
		c.loadGroup(ctx, perMeterGroup, meterID)
	}

	c.callbacks.dataChanged()
}

// SetAlertSettings enables or disables one alert type on one media channel.
// Enable maps to PUT, disable to DELETE; after the write settles the
// settings section is reloaded and a data-changed event fires. A session
// that is not connected skips the write entirely.
func (c *Client) SetAlertSettings(ctx context.Context, alertType AlertType, channel AlertChannel, enabled bool) {
	if !c.Status().IsOnline() {
		c.logger.Warn("skipping alert setting update, session is offline",
			zap.Stringer("status", c.Status()),
			zap.Stringer("alert_type", alertType),
			zap.Stringer("channel", channel),
		)
		return
	}

	c.logger.Info("updating alert setting",
		zap.Stringer("alert_type", alertType),
		zap.Stringer("channel", channel),
		zap.Bool("enabled", enabled),
	)

	method := http.MethodDelete
	if enabled {
		method = http.MethodPut
	}

	params := c.params("")
	params.alertTypeID = strconv.Itoa(int(alertType))

	_, outcome := c.send(ctx, method, endpointAlertSettingsUpdate, params, []int{int(channel)}, true)
	c.applyOutcome(endpointAlertSettingsUpdate, method, outcome)

	select {
	case <-ctx.Done():
		return
	case <-time.After(c.settleDelay):
	}

	c.loadGroup(ctx, reloadGroup, "")

	c.callbacks.dataChanged()
}

// loadGroup fetches an endpoint group in order, merging each payload into
// the raw store. meterID is empty for account-level groups. The group is
// abandoned as soon as the client is no longer connected.
func (c *Client) loadGroup(ctx context.Context, group []endpointGroupEntry, meterID string) {
	for _, entry := range group {
		if !c.Status().IsOnline() {
			return
		}

		payload, outcome := c.send(ctx, http.MethodGet, entry.endpoint, c.params(meterID), nil, true)
		c.applyOutcome(entry.endpoint, http.MethodGet, outcome)

		if !outcome.ok() {
			continue
		}

		var stored bool
		if meterID == "" {
			stored = c.store.SetSection(entry.key, payload)
		} else {
			stored = c.store.SetMeterSection(entry.key, meterID, payload)
		}

		if !stored {
			c.logger.Debug("skipping empty payload, keeping prior data",
				zap.String("section", entry.key),
				zap.String("meter_id", meterID),
			)
		}
	}
}

func (c *Client) meterIDs() []string {
	payload := c.store.Section(SectionMeters)
	if payload == nil {
		return nil
	}

	var meters []MeterListEntry
	if err := json.Unmarshal(payload, &meters); err != nil {
		c.logger.Warn("failed to parse meter list", zap.Error(err))
		return nil
	}

	ids := make([]string, 0, len(meters))
	for _, meter := range meters {
		if id := meter.MeterCount.String(); id != "" {
			ids = append(ids, id)
		}
	}

	return ids
}

func (c *Client) params(meterID string) endpointParams {
	return endpointParams{
		meterID:        meterID,
		municipalityID: c.MunicipalityID(),
		periods:        c.periods,
	}
}

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeUnauthorized
	outcomeHTTPError
	outcomeTimeout
	outcomeError
)

// requestOutcome is the explicit classification of a single portal request.
// The fetch primitives never retry and never panic; the caller applies the
// matching status transition as a separate step.
type requestOutcome struct {
	kind       outcomeKind
	statusCode int
	message    string
}

func (o requestOutcome) ok() bool {
	return o.kind == outcomeOK
}

// send issues one portal request and classifies the result. Authenticated
// requests carry the session token header; a successful one refreshes the
// last-update timestamp.
func (c *Client) send(ctx context.Context, method, endpoint string, params endpointParams, body any, authenticated bool) (json.RawMessage, requestOutcome) {
	path, err := buildEndpoint(endpoint, params)
	if err != nil {
		return nil, requestOutcome{kind: outcomeError, message: err.Error()}
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, requestOutcome{kind: outcomeError, message: fmt.Sprintf("failed to encode request body: %v", err)}
		}

		reqBody = bytes.NewReader(encoded)
	}

	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, requestOutcome{kind: outcomeError, message: err.Error()}
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authenticated {
		req.Header.Set(tokenHeader, c.Token())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, requestOutcome{kind: outcomeTimeout, message: "request timed out"}
		}

		return nil, requestOutcome{kind: outcomeError, message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, requestOutcome{kind: outcomeError, statusCode: resp.StatusCode, message: err.Error()}
	}

	c.logger.Debug("portal response",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, requestOutcome{kind: outcomeUnauthorized, statusCode: resp.StatusCode, message: http.StatusText(resp.StatusCode)}

	case resp.StatusCode >= http.StatusBadRequest:
		return nil, requestOutcome{kind: outcomeHTTPError, statusCode: resp.StatusCode, message: http.StatusText(resp.StatusCode)}
	}

	if authenticated {
		c.store.TouchLastUpdate(time.Now())
	}

	return payload, requestOutcome{kind: outcomeOK, statusCode: resp.StatusCode}
}

// applyOutcome maps a request outcome onto the status machine: 401 drops
// the session to NotConnected (re-login on the next cycle), every other
// failure lands in Failed.
func (c *Client) applyOutcome(endpoint, method string, outcome requestOutcome) {
	switch outcome.kind {
	case outcomeOK:

	case outcomeUnauthorized:
		c.setStatus(StatusNotConnected, c.diagnostic(endpoint, method, outcome))

	default:
		c.setStatus(StatusFailed, c.diagnostic(endpoint, method, outcome))
	}
}

func (c *Client) diagnostic(endpoint, method string, outcome requestOutcome) string {
	message := fmt.Sprintf("endpoint: %s, method: %s", endpoint, method)

	if outcome.statusCode != 0 {
		message = fmt.Sprintf("%s, http status: %d", message, outcome.statusCode)
	}

	if outcome.message != "" {
		message = fmt.Sprintf("%s, %s", message, outcome.message)
	}

	return message
}

// setStatus performs a status transition. A transition that changes the
// value emits exactly one status-changed event; setting the same value
// again is logged but does not re-emit. Log severity comes from the
// centralized per-status mapping.
func (c *Client) setStatus(status ConnectivityStatus, message string) {
	c.mu.Lock()
	previous := c.status
	changed := previous != status
	if changed {
		c.status = status
	}
	c.mu.Unlock()

	fields := []zap.Field{
		zap.Stringer("status", status),
		zap.String("email", c.cfg.Email),
	}

	if message != "" {
		fields = append(fields, zap.String("details", message))
	}

	if !changed {
		c.logger.Log(status.LogLevel(), "status unchanged", fields...)
		return
	}

	fields = append(fields, zap.Stringer("previous", previous))
	c.logger.Log(status.LogLevel(), "status update", fields...)

	c.callbacks.statusChanged(status)
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
