package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/streamvault/streamvault/internal/pkg/env"
)

// CallTimeout bounds a single attempt against the panel API. The queue, not
// the client, owns the delay between attempts.
const CallTimeout = 60 * time.Second

const (
	actionNew          = "new"
	actionRenew        = "renew"
	actionDeviceStatus = "device_status"
	actionInfo         = "info"
)

// Client talks to the reseller panel API. Every call records the verbatim
// request and response for the provisioning audit trail.
type Client struct {
	APIKey  string
	BaseURL string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a panel client from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:  strings.TrimSpace(env.GetEnv("PANEL_API_KEY", "")),
		BaseURL: strings.TrimRight(env.GetEnv("PANEL_API_URL", ""), "/"),
		HTTPClient: &http.Client{
			Timeout: CallTimeout,
		},
	}
}

// CallRecord carries the verbatim request/response bodies of one panel call.
type CallRecord struct {
	RequestJSON  string
	ResponseJSON string
}

// AccountData is the panel's view of a provisioned account.
type AccountData struct {
	ExternalID string `json:"id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	ServerURL  string `json:"url"`
	ExpireDate string `json:"expire_date"`
}

// ExpiresAt parses the panel's expiry date, if present.
func (a *AccountData) ExpiresAt() (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, strings.TrimSpace(a.ExpireDate)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type panelResponse struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NewAccountParams configures an account creation call.
type NewAccountParams struct {
	PackageCode  string
	DurationDays int
	MaxDevices   int
	Note         string
}

// NewAccount provisions a fresh account on the panel.
func (c *Client) NewAccount(ctx context.Context, p NewAccountParams) (*AccountData, CallRecord, error) {
	form := url.Values{}
	form.Set("package", p.PackageCode)
	form.Set("duration_days", strconv.Itoa(p.DurationDays))
	if p.MaxDevices > 0 {
		form.Set("max_devices", strconv.Itoa(p.MaxDevices))
	}
	if p.Note != "" {
		form.Set("note", p.Note)
	}

	rec, data, err := c.call(ctx, actionNew, form)
	if err != nil {
		return nil, rec, err
	}
	var account AccountData
	if uerr := json.Unmarshal(data, &account); uerr != nil {
		return nil, rec, &TransientError{Op: actionNew, Err: fmt.Errorf("malformed panel response: %w", uerr)}
	}
	if account.Username == "" {
		return nil, rec, &TransientError{Op: actionNew, Err: errors.New("panel response missing username")}
	}
	return &account, rec, nil
}

// RenewAccount extends an existing account by durationDays.
func (c *Client) RenewAccount(ctx context.Context, username, packageCode string, durationDays int) (*AccountData, CallRecord, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("package", packageCode)
	form.Set("duration_days", strconv.Itoa(durationDays))

	rec, data, err := c.call(ctx, actionRenew, form)
	if err != nil {
		return nil, rec, err
	}
	var account AccountData
	if uerr := json.Unmarshal(data, &account); uerr != nil {
		return nil, rec, &TransientError{Op: actionRenew, Err: fmt.Errorf("malformed panel response: %w", uerr)}
	}
	return &account, rec, nil
}

// SetDeviceStatus enables or disables an account on the panel.
func (c *Client) SetDeviceStatus(ctx context.Context, username, status string) (CallRecord, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("status", status)

	rec, _, err := c.call(ctx, actionDeviceStatus, form)
	return rec, err
}

// GetBalance fetches the remaining prepaid reseller credit.
func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	_, data, err := c.call(ctx, actionInfo, url.Values{})
	if err != nil {
		return decimal.Zero, err
	}
	var info struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if uerr := json.Unmarshal(data, &info); uerr != nil {
		return decimal.Zero, &TransientError{Op: actionInfo, Err: fmt.Errorf("malformed panel response: %w", uerr)}
	}
	return info.Balance, nil
}

// call performs one panel request and classifies the outcome. Transport
// failures and 5xx responses are transient; 4xx and explicit error bodies are
// business rejections.
func (c *Client) call(ctx context.Context, action string, form url.Values) (CallRecord, json.RawMessage, error) {
	form.Set("api_key", c.APIKey)
	form.Set("action", action)

	rec := CallRecord{RequestJSON: requestJSON(action, form)}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1", strings.NewReader(form.Encode()))
	if err != nil {
		return rec, nil, &TransientError{Op: action, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return rec, nil, &TransientError{Op: action, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	rec.ResponseJSON = string(body)

	if resp.StatusCode >= 500 {
		return rec, nil, &TransientError{Op: action, StatusCode: resp.StatusCode, Err: fmt.Errorf("server error: %s", truncate(body, 200))}
	}

	var parsed panelResponse
	if uerr := json.Unmarshal(body, &parsed); uerr != nil {
		if resp.StatusCode >= 400 {
			return rec, nil, &BusinessError{Op: action, Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Message: truncate(body, 200)}
		}
		return rec, nil, &TransientError{Op: action, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed panel response: %w", uerr)}
	}

	if resp.StatusCode >= 400 || strings.EqualFold(parsed.Status, "error") {
		code := parsed.Code
		if code == "" {
			code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
		}
		return rec, nil, &BusinessError{Op: action, Code: code, Message: parsed.Message}
	}

	return rec, parsed.Data, nil
}

// requestJSON serializes the form for audit logging with the key redacted.
func requestJSON(action string, form url.Values) string {
	m := map[string]string{}
	for k := range form {
		if k == "api_key" {
			m[k] = "[redacted]"
			continue
		}
		m[k] = form.Get(k)
	}
	m["action"] = action
	out, _ := json.Marshal(m)
	return string(out)
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}
