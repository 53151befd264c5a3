// Package broker provides broker integration implementations.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	apperrors "neo-dashboard/internal/errors"
	"neo-dashboard/internal/models"
	"neo-dashboard/internal/quotes"
	"neo-dashboard/internal/resilience"
	"neo-dashboard/internal/stream"
	"neo-dashboard/pkg/utils"
)

const (
	defaultBaseURL   = "https://gw-napi.kotaksecurities.com"
	defaultStreamURL = "wss://mlhsm.kotaksecurities.com"

	requestTimeout = 30 * time.Second
)

// NeoConfig holds configuration for the Kotak Neo broker.
type NeoConfig struct {
	ConsumerKey  string
	MobileNumber string
	UCC          string
	MPIN         string
	TOTPSecret   string
	BaseURL      string
	StreamURL    string
	SessionPath  string
}

// NeoBroker implements the Broker interface for the Kotak Neo API.
type NeoBroker struct {
	httpClient *http.Client
	baseURL    string
	streamURL  string

	consumerKey  string
	mobileNumber string
	ucc          string
	mpin         string
	totpSecret   string
	sessionPath  string

	viewToken     string
	editToken     string
	sid           string
	authenticated bool

	breaker *resilience.CircuitBreaker
	push    *stream.Client

	mu sync.RWMutex
}

var _ Broker = (*NeoBroker)(nil)

// NewNeoBroker creates a new Kotak Neo broker instance. Any previously
// persisted session is loaded automatically.
func NewNeoBroker(cfg NeoConfig) *NeoBroker {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	streamURL := cfg.StreamURL
	if streamURL == "" {
		streamURL = defaultStreamURL
	}
	sessionPath := cfg.SessionPath
	if sessionPath == "" {
		home, _ := os.UserHomeDir()
		sessionPath = filepath.Join(home, ".config", "neo-dashboard", "session.json")
	}

	nb := &NeoBroker{
		httpClient:   &http.Client{Timeout: requestTimeout},
		baseURL:      baseURL,
		streamURL:    streamURL,
		consumerKey:  cfg.ConsumerKey,
		mobileNumber: cfg.MobileNumber,
		ucc:          cfg.UCC,
		mpin:         cfg.MPIN,
		totpSecret:   cfg.TOTPSecret,
		sessionPath:  sessionPath,
		breaker:      resilience.NewCircuitBreaker("neo-gateway", resilience.DefaultCircuitBreakerConfig()),
	}

	_ = nb.loadSession()

	return nb
}

// sessionData represents persisted session data.
type sessionData struct {
	ViewToken string    `json:"view_token"`
	EditToken string    `json:"edit_token"`
	SID       string    `json:"sid"`
	UCC       string    `json:"ucc"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login performs the two-step TOTP login: authenticator code first,
// MPIN validation second. The TOTP code is generated from the
// configured secret; use LoginWithCode when only a one-time code is
// at hand.
func (n *NeoBroker) Login(ctx context.Context) error {
	if n.IsAuthenticated() {
		return nil
	}
	if n.totpSecret == "" {
		return fmt.Errorf("totp_secret not configured: %w", apperrors.ErrConfigInvalid)
	}

	code, err := totp.GenerateCode(n.totpSecret, time.Now())
	if err != nil {
		return fmt.Errorf("generating TOTP code: %w", err)
	}
	return n.LoginWithCode(ctx, code)
}

// LoginWithCode performs the TOTP login with an explicit one-time code
// followed by MPIN validation, then persists the session.
func (n *NeoBroker) LoginWithCode(ctx context.Context, code string) error {
	if n.mpin == "" {
		return fmt.Errorf("mpin not configured: %w", apperrors.ErrConfigInvalid)
	}

	resp, err := n.doRequest(ctx, http.MethodPost, "/login/v6/totp/login", map[string]string{
		"mobileNumber": n.mobileNumber,
		"ucc":          n.ucc,
		"totp":         code,
	})
	if err != nil {
		return apperrors.NewTransportError("totp_login", err)
	}
	viewToken, _ := extractToken(resp, "view_token", "token")
	if viewToken == "" {
		return fmt.Errorf("totp login returned no view token")
	}

	n.mu.Lock()
	n.viewToken = viewToken
	n.mu.Unlock()

	resp, err = n.doRequest(ctx, http.MethodPost, "/login/v6/totp/validate", map[string]string{
		"mpin": n.mpin,
	})
	if err != nil {
		return apperrors.NewTransportError("totp_validate", err)
	}
	editToken, sid := extractToken(resp, "edit_token", "session_token", "token")
	if editToken == "" {
		return fmt.Errorf("mpin validation returned no session token")
	}

	n.mu.Lock()
	n.editToken = editToken
	n.sid = sid
	n.authenticated = true
	n.mu.Unlock()

	if err := n.saveSession(); err != nil {
		// Session is valid in memory; persistence failure is not fatal.
		return nil
	}
	return nil
}

// extractToken digs the named token (and the session id, if present)
// out of a login response.
func extractToken(resp any, keys ...string) (string, string) {
	m, ok := resp.(map[string]any)
	if !ok {
		return "", ""
	}
	if data, ok := m["data"].(map[string]any); ok {
		m = data
	}
	var token string
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			token = v
			break
		}
	}
	sid, _ := m["sid"].(string)
	return token, sid
}

// Logout invalidates the session and removes the persisted copy.
func (n *NeoBroker) Logout(ctx context.Context) error {
	n.mu.Lock()
	n.viewToken = ""
	n.editToken = ""
	n.sid = ""
	n.authenticated = false
	push := n.push
	n.push = nil
	n.mu.Unlock()

	if push != nil {
		_ = push.Close()
	}

	if err := os.Remove(n.sessionPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// IsAuthenticated returns whether a trade session is active.
func (n *NeoBroker) IsAuthenticated() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.authenticated
}

func (n *NeoBroker) loadSession() error {
	data, err := os.ReadFile(n.sessionPath)
	if err != nil {
		return err
	}

	var session sessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return err
	}
	if time.Now().After(session.ExpiresAt) {
		return apperrors.ErrSessionExpired
	}

	n.mu.Lock()
	n.viewToken = session.ViewToken
	n.editToken = session.EditToken
	n.sid = session.SID
	n.authenticated = true
	n.mu.Unlock()

	return nil
}

func (n *NeoBroker) saveSession() error {
	dir := filepath.Dir(n.sessionPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	expiresAt := utils.SessionExpiry()

	n.mu.RLock()
	session := sessionData{
		ViewToken: n.viewToken,
		EditToken: n.editToken,
		SID:       n.sid,
		UCC:       n.ucc,
		ExpiresAt: expiresAt,
	}
	n.mu.RUnlock()

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return os.WriteFile(n.sessionPath, data, 0600)
}

// FetchInstrumentMaster retrieves the scrip master for a segment. The
// broker answers with either the URL of a delimited master file or the
// rows inline.
func (n *NeoBroker) FetchInstrumentMaster(ctx context.Context, segment models.ExchangeSegment) (*ScripMaster, error) {
	resp, err := n.doRequest(ctx, http.MethodGet, "/masterscrip/v1/file-paths/"+string(segment), nil)
	if err != nil {
		return nil, apperrors.NewTransportError("scrip_master", err)
	}

	payload := resp
	if m, ok := resp.(map[string]any); ok {
		if data, exists := m["data"]; exists {
			payload = data
		}
	}

	switch v := payload.(type) {
	case string:
		return &ScripMaster{URL: v}, nil
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if row, ok := item.(map[string]any); ok {
				rows = append(rows, row)
			}
		}
		return &ScripMaster{Rows: rows}, nil
	default:
		return nil, fmt.Errorf("unexpected scrip master response shape for %s", segment)
	}
}

// SearchInstruments performs server-side scrip search.
func (n *NeoBroker) SearchInstruments(ctx context.Context, segment models.ExchangeSegment, query string) ([]map[string]any, error) {
	path := fmt.Sprintf("/masterscrip/v1/search?exchange_segment=%s&symbol=%s",
		url.QueryEscape(string(segment)), url.QueryEscape(query))

	resp, err := n.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, apperrors.NewTransportError("search_scrip", err)
	}

	payload := resp
	if m, ok := resp.(map[string]any); ok {
		if data, exists := m["data"]; exists {
			payload = data
		}
	}

	list, ok := payload.([]any)
	if !ok {
		return nil, nil
	}
	rows := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// FetchQuotes fetches a batch of quotes for the given pairs. The raw
// decoded response is returned for downstream normalization.
func (n *NeoBroker) FetchQuotes(ctx context.Context, refs []models.InstrumentRef) (any, error) {
	if !n.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	resp, err := n.doRequest(ctx, http.MethodPost, "/quotes/v1/multi", map[string]any{
		"instrument_tokens": quotes.BuildRequest(refs),
	})
	if err != nil {
		return nil, apperrors.NewTransportError("quotes", err)
	}
	return resp, nil
}

// PlaceOrder places a new order.
func (n *NeoBroker) PlaceOrder(ctx context.Context, order *models.Order) (*OrderResult, error) {
	if !n.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	resp, err := n.doRequest(ctx, http.MethodPost, "/orders/v1/place", orderPayload(order))
	if err != nil {
		return nil, apperrors.NewTransportError("place_order", err)
	}
	return orderResult(resp), nil
}

// ModifyOrder modifies an existing order.
func (n *NeoBroker) ModifyOrder(ctx context.Context, orderID string, order *models.Order) (*OrderResult, error) {
	if !n.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	payload := orderPayload(order)
	payload["order_id"] = orderID
	if order.Token != "" {
		payload["instrument_token"] = order.Token
	}

	resp, err := n.doRequest(ctx, http.MethodPost, "/orders/v1/modify", payload)
	if err != nil {
		return nil, apperrors.NewTransportError("modify_order", err)
	}
	return orderResult(resp), nil
}

// CancelOrder cancels an order by ID.
func (n *NeoBroker) CancelOrder(ctx context.Context, orderID string) (*OrderResult, error) {
	if !n.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	resp, err := n.doRequest(ctx, http.MethodPost, "/orders/v1/cancel", map[string]string{
		"order_id": orderID,
		"amo":      "NO",
	})
	if err != nil {
		return nil, apperrors.NewTransportError("cancel_order", err)
	}
	return orderResult(resp), nil
}

// FetchOrders retrieves the order book.
func (n *NeoBroker) FetchOrders(ctx context.Context) (any, error) {
	if !n.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}
	resp, err := n.doRequest(ctx, http.MethodGet, "/orders/v1/report", nil)
	if err != nil {
		return nil, apperrors.NewTransportError("order_report", err)
	}
	return resp, nil
}

// FetchPositions retrieves the day's positions.
func (n *NeoBroker) FetchPositions(ctx context.Context) (any, error) {
	if !n.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}
	resp, err := n.doRequest(ctx, http.MethodGet, "/positions/v1/todays", nil)
	if err != nil {
		return nil, apperrors.NewTransportError("positions", err)
	}
	return resp, nil
}

// FetchLimits retrieves funds and margin limits.
func (n *NeoBroker) FetchLimits(ctx context.Context) (any, error) {
	if !n.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}
	resp, err := n.doRequest(ctx, http.MethodPost, "/limits/v1/check", map[string]string{
		"segment":  "ALL",
		"exchange": "ALL",
		"product":  "ALL",
	})
	if err != nil {
		return nil, apperrors.NewTransportError("limits", err)
	}
	return resp, nil
}

// Subscribe replaces the streaming subscription with the full desired
// set of instruments.
func (n *NeoBroker) Subscribe(ctx context.Context, refs []models.InstrumentRef) error {
	if !n.IsAuthenticated() {
		return apperrors.ErrNotAuthenticated
	}
	return n.pushClient().Subscribe(ctx, refs)
}

// Push returns the push-channel client for handler registration.
func (n *NeoBroker) Push() *stream.Client {
	return n.pushClient()
}

func (n *NeoBroker) pushClient() *stream.Client {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.push == nil {
		header := http.Header{}
		header.Set("Authorization", "Bearer "+n.editToken)
		if n.sid != "" {
			header.Set("Sid", n.sid)
		}
		n.push = stream.NewClient(stream.Config{
			URL:    n.streamURL,
			Header: header,
		})
	}
	return n.push
}

func orderPayload(order *models.Order) map[string]any {
	amo := "NO"
	if order.AMO {
		amo = "YES"
	}
	validity := order.Validity
	if validity == "" {
		validity = "DAY"
	}
	return map[string]any{
		"exchange_segment": string(order.Segment),
		"trading_symbol":   order.Symbol,
		"transaction_type": string(order.Side),
		"product":          string(order.Product),
		"order_type":       string(order.Type),
		"quantity":         strconv.Itoa(order.Quantity),
		"price":            strconv.FormatFloat(order.Price, 'f', -1, 64),
		"trigger_price":    strconv.FormatFloat(order.TriggerPrice, 'f', -1, 64),
		"validity":         validity,
		"amo":              amo,
	}
}

func orderResult(resp any) *OrderResult {
	result := &OrderResult{Status: "PLACED"}
	m, ok := resp.(map[string]any)
	if !ok {
		return result
	}
	if data, ok := m["data"].(map[string]any); ok {
		m = data
	}
	for _, key := range []string{"nOrdNo", "order_id", "id"} {
		if v, ok := m[key]; ok {
			result.OrderID = fmt.Sprint(v)
			break
		}
	}
	if v, ok := m["status"].(string); ok {
		result.Status = v
	}
	if v, ok := m["message"].(string); ok {
		result.Message = v
	}
	return result
}

// doRequest sends a request to the broker gateway. All calls pass
// through a shared circuit breaker so a failing gateway is backed off
// instead of hammered; idempotent GETs are additionally retried.
func (n *NeoBroker) doRequest(ctx context.Context, method, path string, body any) (any, error) {
	if method == http.MethodGet {
		return utils.RetryWithResult(ctx, utils.DefaultRetryConfig(), func() (any, error) {
			return resilience.ExecuteWithResult(n.breaker, func() (any, error) {
				return n.doOnce(ctx, method, path, body)
			})
		})
	}
	return resilience.ExecuteWithResult(n.breaker, func() (any, error) {
		return n.doOnce(ctx, method, path, body)
	})
}

// doOnce performs one HTTP round trip against the broker gateway and
// decodes the JSON response.
func (n *NeoBroker) doOnce(ctx context.Context, method, path string, body any) (any, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("neo-fin-key", "neotradeapi")
	if n.consumerKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.consumerKey)
	}

	n.mu.RLock()
	if n.editToken != "" {
		req.Header.Set("Auth", n.editToken)
	} else if n.viewToken != "" {
		req.Header.Set("Auth", n.viewToken)
	}
	if n.sid != "" {
		req.Header.Set("Sid", n.sid)
	}
	n.mu.RUnlock()

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(data, 200))
	}

	var decoded any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}
	return decoded, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
