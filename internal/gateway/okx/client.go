package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"okxagent/internal/logger"
	"okxagent/internal/pkg/text"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL    = "https://www.okx.com"
	defaultRetryCode  = "50001"
	defaultRetryDelay = 300 * time.Millisecond
	timestampLayout   = "2006-01-02T15:04:05.000Z"
)

// ErrNoCredentials is returned when a private endpoint is called without keys.
var ErrNoCredentials = errors.New("okx: api key, secret and passphrase are required")

// Config OKX REST 客户端参数。
type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Passphrase string
	Simulated  bool
	Proxy      string
	Timeout    time.Duration
	// Retries is the number of extra attempts after a RetryCode response.
	Retries    int
	RetryCode  string
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if strings.TrimSpace(c.RetryCode) == "" {
		c.RetryCode = defaultRetryCode
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	return c
}

// APIError is a non-zero business code from OKX, either the envelope code or
// the first failing per-item sCode.
type APIError struct {
	Path       string
	HTTPStatus int
	Code       string
	Msg        string
	SCode      string
	SMsg       string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "okx %s: code=%s", e.Path, e.Code)
	if e.Msg != "" {
		fmt.Fprintf(&b, " msg=%s", e.Msg)
	}
	if e.SCode != "" {
		fmt.Fprintf(&b, " sCode=%s sMsg=%s", e.SCode, e.SMsg)
	}
	if e.HTTPStatus >= 400 {
		fmt.Fprintf(&b, " http=%d", e.HTTPStatus)
	}
	return b.String()
}

// Client 是 OKX v5 REST 的轻量封装：签名、模拟盘头、业务码校验与 50001 重试。
type Client struct {
	cfg   Config
	http  *resty.Client
	nowFn func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if p := strings.TrimSpace(cfg.Proxy); p != "" {
		rc.SetProxy(p)
	}
	return &Client{cfg: cfg, http: rc, nowFn: time.Now, sleep: sleepContext}
}

// Simulated reports whether requests carry the demo-trading header.
func (c *Client) Simulated() bool { return c.cfg.Simulated }

func (c *Client) HasCredentials() bool {
	return c.cfg.APIKey != "" && c.cfg.APISecret != "" && c.cfg.Passphrase != ""
}

// Sign computes the OK-ACCESS-SIGN header value.
func Sign(secret, timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + strings.ToUpper(method) + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, private bool, out any) error {
	return c.do(ctx, "GET", path, query, nil, private, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, "POST", path, nil, body, true, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, private bool, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		err := c.doOnce(ctx, method, path, query, body, private, out)
		if err == nil {
			return nil
		}
		lastErr = err
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != c.cfg.RetryCode || attempt == c.cfg.Retries {
			return err
		}
		delay := c.cfg.RetryDelay * time.Duration(1<<attempt)
		logger.Warnf("okx %s %s 返回 %s，%s 后重试 (%d/%d)", method, path, apiErr.Code, delay, attempt+1, c.cfg.Retries)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body any, private bool, out any) error {
	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("okx %s: encode body: %w", path, err)
		}
	}
	req := c.http.R().SetContext(ctx)
	if c.cfg.Simulated {
		req.SetHeader("x-simulated-trading", "1")
	}
	if private {
		if !c.HasCredentials() {
			return ErrNoCredentials
		}
		ts := c.nowFn().UTC().Format(timestampLayout)
		req.SetHeader("OK-ACCESS-KEY", c.cfg.APIKey).
			SetHeader("OK-ACCESS-PASSPHRASE", c.cfg.Passphrase).
			SetHeader("OK-ACCESS-TIMESTAMP", ts).
			SetHeader("OK-ACCESS-SIGN", Sign(c.cfg.APISecret, ts, method, requestPath, string(payload)))
	}
	if payload != nil {
		req.SetBody(payload)
	}
	resp, err := req.Execute(method, requestPath)
	if err != nil {
		return fmt.Errorf("okx %s %s: %w", method, path, err)
	}
	raw := resp.Body()
	logger.Debugf("okx %s %s -> %d %s", method, requestPath, resp.StatusCode(), text.Truncate(string(raw), 512))

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.IsError() {
			return &APIError{Path: path, HTTPStatus: resp.StatusCode(), Code: fmt.Sprint(resp.StatusCode()), Msg: text.Truncate(string(raw), 200)}
		}
		return fmt.Errorf("okx %s: decode response: %w", path, err)
	}
	if env.Code != "0" {
		apiErr := &APIError{Path: path, HTTPStatus: resp.StatusCode(), Code: env.Code, Msg: env.Msg}
		apiErr.SCode, apiErr.SMsg = firstFailedItem(env.Data)
		return apiErr
	}
	if scode, smsg := firstFailedItem(env.Data); scode != "" {
		return &APIError{Path: path, HTTPStatus: resp.StatusCode(), Code: env.Code, SCode: scode, SMsg: smsg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("okx %s: decode data: %w", path, err)
	}
	return nil
}

// firstFailedItem scans data[].sCode and returns the first one that is not "0".
func firstFailedItem(data json.RawMessage) (string, string) {
	if len(data) == 0 {
		return "", ""
	}
	var scode, smsg string
	gjson.ParseBytes(data).ForEach(func(_, item gjson.Result) bool {
		sc := item.Get("sCode")
		if sc.Exists() && sc.String() != "" && sc.String() != "0" {
			scode, smsg = sc.String(), item.Get("sMsg").String()
			return false
		}
		return true
	})
	return scode, smsg
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
