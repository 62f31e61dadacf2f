package sms

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playpool/snooker/internal/config"
	"github.com/playpool/snooker/internal/game"
)

func fakeToken(exp time.Time) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix())))
	return "eyJhbGciOiJIUzI1NiJ9." + payload + ".sig"
}

type dmarkServer struct {
	mu         sync.Mutex
	tokenCalls int
	sent       []map[string]interface{}
}

func (d *dmarkServer) handler(t *testing.T) http.Handler {
	token := fakeToken(time.Now().Add(time.Hour))
	mux := http.NewServeMux()
	mux.HandleFunc("/api/get_token/", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.tokenCalls++
		d.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"access_token": token})
	})
	mux.HandleFunc("/v3/api/send_sms/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("authToken") != token {
			t.Errorf("send without token")
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		d.mu.Lock()
		d.sent = append(d.sent, body)
		d.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"msg_id": "abc"})
	})
	return mux
}

func newTestClient(t *testing.T, d *dmarkServer) *Client {
	srv := httptest.NewServer(d.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(&config.Config{
		SMSBaseURL:              srv.URL + "/",
		SMSUsername:             "user",
		SMSPassword:             "pass",
		SMSTokenFallbackSeconds: 60,
	}, nil)
}

func TestNewClientUnconfigured(t *testing.T) {
	if NewClient(&config.Config{}, nil) != nil {
		t.Errorf("expected nil client without credentials")
	}
	var c *Client
	if err := c.Publish(context.Background(), game.Event{Type: game.EventMaximumBreak}); err != nil {
		t.Errorf("nil client Publish: %v", err)
	}
}

func TestPublishMaximumBreak(t *testing.T) {
	d := &dmarkServer{}
	c := newTestClient(t, d)
	ctx := context.Background()

	if err := c.Publish(ctx, game.Event{Type: game.EventPlayResult, Player: "256700000001", Score: 39}); err != nil {
		t.Fatal(err)
	}
	if len(d.sent) != 0 {
		t.Fatalf("play results must not be texted")
	}

	ev := game.Event{Type: game.EventMaximumBreak, Player: "256700000001", Score: 147, Reward: "50"}
	if err := c.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := c.Publish(ctx, ev); err != nil {
		t.Fatalf("second Publish: %v", err)
	}

	if len(d.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(d.sent))
	}
	if d.sent[0]["numbers"] != "0700000001" {
		t.Errorf("numbers = %v", d.sent[0]["numbers"])
	}
	if msg, _ := d.sent[0]["msg"].(string); !strings.Contains(msg, "147") || !strings.Contains(msg, "50") {
		t.Errorf("msg = %q", msg)
	}
	if d.tokenCalls != 1 {
		t.Errorf("token fetched %d times, want 1 (cached)", d.tokenCalls)
	}
}

func TestSendClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/api/get_token/") {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "opaque"})
			return
		}
		http.Error(w, "bad number", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(&config.Config{SMSBaseURL: srv.URL, SMSUsername: "u", SMSPassword: "p", SMSTokenFallbackSeconds: 60}, nil)
	if _, err := c.Send(context.Background(), "256700000001", "hi"); err == nil {
		t.Errorf("expected error on 400")
	}
}

func TestTokenTTL(t *testing.T) {
	c := &Client{tokenFallbackTTL: time.Minute}
	now := time.Unix(1700000000, 0)

	if got := c.tokenTTL(fakeToken(now.Add(1000*time.Second)), now); got != 900*time.Second {
		t.Errorf("ttl = %s, want 15m0s", got)
	}
	if got := c.tokenTTL(fakeToken(now.Add(-time.Second)), now); got != time.Minute {
		t.Errorf("expired token ttl = %s, want fallback", got)
	}
	if got := c.tokenTTL("opaque", now); got != time.Minute {
		t.Errorf("opaque token ttl = %s, want fallback", got)
	}
}

func TestLocalNumber(t *testing.T) {
	tests := map[string]string{
		"256700123456":  "0700123456",
		"+256700123456": "0700123456",
		"0700123456":    "0700123456",
		"700123456":     "0700123456",
	}
	for in, want := range tests {
		if got := localNumber(in); got != want {
			t.Errorf("localNumber(%q) = %q, want %q", in, got, want)
		}
	}
}
