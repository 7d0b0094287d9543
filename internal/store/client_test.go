package store

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

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.StoreConfig{
		URL:         server.URL,
		APIKey:      "anon",
		Table:       "blog_posts",
		BodyColumns: []string{"content", "html_content"},
	}
	tokens := staticTokens{ses: session.Session{AccessToken: "tok", UserID: "owner-1"}}
	return NewClient(cfg, tokens), server
}

func TestListByOwnerBuildsQueryAndDecodes(t *testing.T) {
	var gotPath, gotAuth, gotKey string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		if got := r.URL.Query().Get("user_id"); got != "eq.owner-1" {
			t.Errorf("unexpected owner filter %q", got)
		}
		if got := r.URL.Query().Get("order"); got != "created_at.desc" {
			t.Errorf("unexpected order %q", got)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "a1", "title": "First", "status": "draft", "views": 3, "user_id": "owner-1"},
			{"id": "a2", "title": "Second", "status": "published", "views": 0, "user_id": "owner-1"},
		})
	})
	items, err := client.ListByOwner(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if gotPath != "/blog_posts" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer tok" || gotKey != "anon" {
		t.Fatalf("credentials not attached: auth=%q apikey=%q", gotAuth, gotKey)
	}
	if len(items) != 2 || items[0].ID != "a1" || items[0].ViewCount != 3 {
		t.Fatalf("unexpected items: %+v", items)
	}
	if items[1].Status != content.StatusPublished {
		t.Fatalf("expected published status, got %q", items[1].Status)
	}
}

func TestReadBodyCoalescesHistoricalColumns(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("select"); got != "content,html_content" {
			t.Errorf("unexpected select %q", got)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"content": nil, "html_content": "<p>legacy</p>"},
		})
	})
	body, err := client.ReadBody(context.Background(), "a1")
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if body != "<p>legacy</p>" {
		t.Fatalf("expected legacy column value, got %q", body)
	}
}

func TestReadBodyMissingRowIsNotFound(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})
	if _, err := client.ReadBody(context.Background(), "gone"); !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateWritesNamedBodyColumn(t *testing.T) {
	var captured map[string]any
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if got := r.Header.Get("Prefer"); got != "return=representation" {
			t.Errorf("missing representation preference, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "a1", "title": "Edited", "status": "draft", "views": 7},
		})
	})
	title := "Edited"
	body := "<p>x</p>"
	item, err := client.Update(context.Background(), "a1", UpdateRequest{
		Title:      &title,
		Body:       &body,
		BodyColumn: "html_content",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if captured["html_content"] != "<p>x</p>" {
		t.Fatalf("body written under wrong column: %v", captured)
	}
	if _, ok := captured["content"]; ok {
		t.Fatalf("primary column must not appear in fallback shape: %v", captured)
	}
	if item.Title != "Edited" || item.ViewCount != 7 {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestUpdateUnknownColumnIsSchemaMismatch(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "PGRST204",
			"message": "Could not find the 'content' column of 'blog_posts' in the schema cache",
		})
	})
	body := "<p>x</p>"
	_, err := client.Update(context.Background(), "a1", UpdateRequest{Body: &body, BodyColumn: "content"})
	if !errors.Is(err, content.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"JWT expired"}`, content.ErrUnauthenticated},
		{"forbidden", http.StatusForbidden, `{"message":"permission denied"}`, content.ErrUnauthenticated},
		{"missing", http.StatusNotFound, `{"message":"relation does not exist"}`, content.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.ListByOwner(context.Background(), "owner-1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestServerErrorCarriesMessage(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "db on fire"})
	})
	_, err := client.ListByOwner(context.Background(), "owner-1")
	var srv *content.ServerError
	if !errors.As(err, &srv) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if srv.Message != "db on fire" || srv.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected server error: %+v", srv)
	}
}

func TestMissingSessionFailsBeforeNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(server.Close)
	cfg := config.StoreConfig{URL: server.URL, Table: "blog_posts", BodyColumns: []string{"content"}}
	client := NewClient(cfg, staticTokens{err: content.ErrUnauthenticated})
	if _, err := client.ListByOwner(context.Background(), "owner-1"); !errors.Is(err, content.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if called {
		t.Fatalf("request must not be issued without a session")
	}
}

func TestDeadlineIsReportedAsTimeout(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.ListByOwner(ctx, "owner-1")
	if !errors.Is(err, content.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
