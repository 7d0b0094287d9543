package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inkdeck/inkdeck/internal/config"
	"github.com/inkdeck/inkdeck/internal/content"
	"github.com/inkdeck/inkdeck/internal/session"
)

type staticTokens struct {
	ses session.Session
	err error
}

func (s staticTokens) Current() (session.Session, error) {
	return s.ses, s.err
}

func testConfig(services map[string]config.ServiceConfig) *config.Config {
	return &config.Config{
		File: config.FileConfig{
			Version:    1,
			Services:   services,
			Generation: config.GenerationConfig{TimeoutSeconds: 5},
		},
	}
}

func authedClient(cfg *config.Config, opts ...Option) *Client {
	tokens := staticTokens{ses: session.Session{AccessToken: "tok", UserID: "owner-1"}}
	return NewClient(cfg, tokens, opts...)
}

func TestGenerateBlogSendsResearchAndDecodesArtifact(t *testing.T) {
	var gotAuth string
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing request id header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "a1",
			"title":   "Go Schedulers",
			"content": "<p>body</p>",
			"status":  "draft",
		})
	}))
	t.Cleanup(server.Close)

	cfg := testConfig(map[string]config.ServiceConfig{
		"blog": {Endpoint: server.URL},
	})
	artifact, err := authedClient(cfg).GenerateBlog(context.Background(), "notes about schedulers")
	if err != nil {
		t.Fatalf("generate blog: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("bearer not attached: %q", gotAuth)
	}
	if captured["research"] != "notes about schedulers" {
		t.Fatalf("unexpected request payload: %v", captured)
	}
	if artifact.ID != "a1" || artifact.Title != "Go Schedulers" || artifact.Body != "<p>body</p>" {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}
	if artifact.Status != content.StatusDraft {
		t.Fatalf("expected draft status, got %q", artifact.Status)
	}
}

func TestGenerateTweetValidatesBeforeNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(server.Close)
	cfg := testConfig(map[string]config.ServiceConfig{
		"tweet": {Endpoint: server.URL},
	})
	client := authedClient(cfg)

	cases := []TweetInput{
		{Topic: "", Length: 280},
		{Topic: "go", Length: 40},
		{Topic: "go", Length: 300},
	}
	for _, in := range cases {
		if _, err := client.GenerateTweet(context.Background(), in); err == nil {
			t.Fatalf("expected validation error for %+v", in)
		}
	}
	if called {
		t.Fatalf("invalid input must not reach the service")
	}
}

func TestGenerateTweetSendsStyleAndCountsCharacters(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tweet":           "goroutines are cheap",
			"character_count": 20,
		})
	}))
	t.Cleanup(server.Close)
	cfg := testConfig(map[string]config.ServiceConfig{
		"tweet": {Endpoint: server.URL},
	})
	artifact, err := authedClient(cfg).GenerateTweet(context.Background(), TweetInput{
		Topic:  "goroutines",
		Length: 120,
		Style:  "casual",
	})
	if err != nil {
		t.Fatalf("generate tweet: %v", err)
	}
	if captured["topic"] != "goroutines" || captured["style"] != "casual" {
		t.Fatalf("unexpected payload: %v", captured)
	}
	if length, ok := captured["length"].(float64); !ok || int(length) != 120 {
		t.Fatalf("unexpected length: %v", captured["length"])
	}
	if artifact.Body != "goroutines are cheap" || artifact.CharacterCount != 20 {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}
}

func TestShareSendsTheEditedText(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	cfg := testConfig(map[string]config.ServiceConfig{
		"linkedin": {Endpoint: server.URL, ShareEndpoint: server.URL + "/share"},
	})
	edited := "my actual edited post"
	if err := authedClient(cfg).Share(context.Background(), edited); err != nil {
		t.Fatalf("share: %v", err)
	}
	if captured["text"] != edited {
		t.Fatalf("share must send the current edited text, got %v", captured)
	}
}

func TestServiceErrorDetailSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "style not recognized"})
	}))
	t.Cleanup(server.Close)
	cfg := testConfig(map[string]config.ServiceConfig{
		"tweet": {Endpoint: server.URL},
	})
	_, err := authedClient(cfg).GenerateTweet(context.Background(), TweetInput{Topic: "go", Length: 120})
	var srv *content.ServerError
	if !errors.As(err, &srv) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if srv.Message != "style not recognized" {
		t.Fatalf("unexpected message: %q", srv.Message)
	}
}

func TestGenerationTimeoutIsDistinct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(server.Close)
	cfg := testConfig(map[string]config.ServiceConfig{
		"blog": {Endpoint: server.URL},
	})
	client := authedClient(cfg, WithTimeout(20*time.Millisecond))
	_, err := client.GenerateBlog(context.Background(), "research")
	if !errors.Is(err, content.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestMissingSessionFailsBeforeNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(server.Close)
	cfg := testConfig(map[string]config.ServiceConfig{
		"blog": {Endpoint: server.URL},
	})
	client := NewClient(cfg, staticTokens{err: content.ErrUnauthenticated})
	if _, err := client.GenerateBlog(context.Background(), "research"); !errors.Is(err, content.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if called {
		t.Fatalf("request must not be issued without a session")
	}
}

func TestTweetStylesWorksWithoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("styles fetch must not require a session")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"styles": []string{"casual", "formal"}})
	}))
	t.Cleanup(server.Close)
	cfg := testConfig(map[string]config.ServiceConfig{
		"tweet": {Endpoint: server.URL, StylesEndpoint: server.URL + "/styles"},
	})
	client := NewClient(cfg, staticTokens{err: content.ErrUnauthenticated})
	styles, err := client.TweetStyles(context.Background())
	if err != nil {
		t.Fatalf("tweet styles: %v", err)
	}
	if len(styles) != 2 || styles[0] != "casual" {
		t.Fatalf("unexpected styles: %v", styles)
	}
}

func TestDefaultStyleCarriesBearer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("preferences fetch must carry the bearer")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"default_style": "formal"})
	}))
	t.Cleanup(server.Close)
	cfg := testConfig(map[string]config.ServiceConfig{
		"tweet": {Endpoint: server.URL, PreferencesEndpoint: server.URL + "/preferences"},
	})
	style, err := authedClient(cfg).DefaultStyle(context.Background())
	if err != nil {
		t.Fatalf("default style: %v", err)
	}
	if style != "formal" {
		t.Fatalf("unexpected style: %q", style)
	}
}
