package sms

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/playpool/snooker/internal/config"
	"github.com/playpool/snooker/internal/game"
	"github.com/redis/go-redis/v9"
)

// Client sends maximum-break notifications through the DMark SMS API. The
// access token is cached in redis when available, in process otherwise.
type Client struct {
	baseURL          string
	username         string
	password         string
	rdb              *redis.Client
	httpClient       *http.Client
	rateLimit        time.Duration
	tokenFallbackTTL time.Duration

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient returns nil when SMS is not configured.
func NewClient(cfg *config.Config, rdb *redis.Client) *Client {
	if cfg == nil || cfg.SMSBaseURL == "" || cfg.SMSUsername == "" || cfg.SMSPassword == "" {
		return nil
	}
	return &Client{
		baseURL:          strings.TrimRight(cfg.SMSBaseURL, "/"),
		username:         cfg.SMSUsername,
		password:         cfg.SMSPassword,
		rdb:              rdb,
		httpClient:       &http.Client{Timeout: 15 * time.Second},
		rateLimit:        time.Duration(cfg.SMSRateLimitSeconds) * time.Second,
		tokenFallbackTTL: time.Duration(cfg.SMSTokenFallbackSeconds) * time.Second,
	}
}

// Publish texts the player when their turn was a maximum break. Other
// events are ignored.
func (c *Client) Publish(ctx context.Context, ev game.Event) error {
	if c == nil || ev.Type != game.EventMaximumBreak {
		return nil
	}
	msg := fmt.Sprintf("Maximum break! You scored %d.", ev.Score)
	if ev.Reward != "" {
		msg += fmt.Sprintf(" Reward of %s is on its way.", ev.Reward)
	}
	_, err := c.Send(ctx, ev.Player, msg)
	return err
}

// Send delivers one SMS and returns the provider message id when one is
// reported. 5xx answers and transport errors are retried twice.
func (c *Client) Send(ctx context.Context, phone, message string) (string, error) {
	if c.rdb != nil && c.rateLimit > 0 {
		ok, err := c.rdb.SetNX(ctx, "sms_rate:"+phone, "1", c.rateLimit).Result()
		if err == nil && !ok {
			return "", fmt.Errorf("rate limited: %s", phone)
		}
	}

	body, _ := json.Marshal(map[string]interface{}{
		"msg":     message,
		"numbers": localNumber(phone),
		"dlr_url": "",
		"scan_ip": false,
	})

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(100+attempt*200) * time.Millisecond)
		}

		token, err := c.accessToken(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/api/send_sms/", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("authToken", token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			log.Printf("[SMS] Sent to %s", phone)
			return messageID(respBody), nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("sms provider error %d: %s", resp.StatusCode, respBody)
		default:
			return "", fmt.Errorf("sms send failed: %d %s", resp.StatusCode, respBody)
		}
	}
	return "", lastErr
}

func messageID(body []byte) string {
	var parsed map[string]interface{}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	for _, k := range []string{"msg_id", "message_id"} {
		if v, ok := parsed[k].(string); ok {
			return v
		}
	}
	return ""
}

func (c *Client) cacheKey() string {
	h := sha256.Sum256([]byte(c.username + ":" + c.password))
	return "sms_token:" + hex.EncodeToString(h[:])[:8]
}

// accessToken returns a cached token or logs in again.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.rdb != nil {
		if tok, err := c.rdb.Get(ctx, c.cacheKey()).Result(); err == nil {
			return tok, nil
		}
	} else {
		c.mu.Lock()
		tok, exp := c.token, c.tokenExpiry
		c.mu.Unlock()
		if tok != "" && time.Now().Before(exp) {
			return tok, nil
		}
	}

	creds, _ := json.Marshal(map[string]string{"username": c.username, "password": c.password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/get_token/", bytes.NewReader(creds))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", errors.New("token not present in response")
	}

	ttl := c.tokenTTL(parsed.AccessToken, time.Now())
	if c.rdb != nil {
		c.rdb.Set(ctx, c.cacheKey(), parsed.AccessToken, ttl)
	} else {
		c.mu.Lock()
		c.token, c.tokenExpiry = parsed.AccessToken, time.Now().Add(ttl)
		c.mu.Unlock()
	}
	return parsed.AccessToken, nil
}

// tokenTTL keeps a token for 90% of its remaining lifetime, or the fallback
// when the expiry cannot be read.
func (c *Client) tokenTTL(token string, now time.Time) time.Duration {
	exp, err := tokenExpiry(token)
	if err != nil {
		return c.tokenFallbackTTL
	}
	ttl := time.Duration(float64(exp.Sub(now)) * 0.9)
	if ttl <= 0 {
		return c.tokenFallbackTTL
	}
	return ttl
}

// tokenExpiry reads the exp claim of an unverified JWT.
func tokenExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return time.Time{}, errors.New("invalid token format")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}, err
	}
	var claims struct {
		Exp *float64 `json:"exp"`
	}
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.Exp == nil {
		return time.Time{}, errors.New("exp claim not found")
	}
	return time.Unix(int64(*claims.Exp), 0), nil
}

// localNumber converts 256XXXXXXXXX into the 0XXXXXXXXX form DMark expects.
func localNumber(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	clean := digits.String()
	switch {
	case strings.HasPrefix(clean, "256"):
		return "0" + clean[3:]
	case strings.HasPrefix(clean, "0"):
		return clean
	case len(clean) >= 9:
		return "0" + clean[len(clean)-9:]
	}
	return clean
}
