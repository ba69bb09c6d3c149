package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/finia/backend/internal/models"
	"github.com/finia/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.AccessToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: map[string]*models.AccessToken{}}
}

func (m *memTokenStore) Create(_ context.Context, t *models.AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.CreatedAt = time.Now()
	m.tokens[t.TokenHash] = t
	return nil
}

func (m *memTokenStore) Consume(_ context.Context, hash string, at time.Time) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok || t.ConsumedAt != nil || !t.ExpiresAt.After(at) {
		return uuid.Nil, repository.ErrNotFound
	}
	t.ConsumedAt = &at
	return t.AccountID, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T) (*service, *memTokenStore, *clock) {
	t.Helper()
	store := newMemTokenStore()
	c := &clock{t: time.Date(2026, 10, 19, 18, 30, 0, 0, time.UTC)}
	svc, err := NewService(store, Config{
		Secret:      []byte("test-secret"),
		LinkBaseURL: "https://app.finia.app/",
	}, c.now, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, c
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	const prefix = "https://app.finia.app/acesso/"
	if !strings.HasPrefix(link, prefix) {
		t.Fatalf("unexpected link %q", link)
	}
	return strings.TrimPrefix(link, prefix)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewService_RequiresSecret(t *testing.T) {
	if _, err := NewService(newMemTokenStore(), Config{}, nil, nil); err != ErrNoSecret {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestAccessLink_SingleUse(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	accountID := uuid.New()

	link, err := svc.IssueAccessLink(ctx, accountID)
	if err != nil {
		t.Fatalf("IssueAccessLink: %v", err)
	}
	token := tokenFromLink(t, link)
	if _, stored := store.tokens[token]; stored {
		t.Fatal("raw token must not be stored")
	}

	session, got, err := svc.Exchange(ctx, token)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if got != accountID {
		t.Errorf("account = %s, want %s", got, accountID)
	}
	id, err := svc.ValidateToken(ctx, session)
	if err != nil || id != accountID {
		t.Fatalf("ValidateToken = %s, %v", id, err)
	}

	if _, _, err := svc.Exchange(ctx, token); err != ErrInvalidLink {
		t.Fatalf("second exchange: expected ErrInvalidLink, got %v", err)
	}
}

func TestAccessLink_Expires(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()

	link, err := svc.IssueAccessLink(ctx, uuid.New())
	if err != nil {
		t.Fatalf("IssueAccessLink: %v", err)
	}
	c.t = c.t.Add(DefaultLinkTTL + time.Second)
	if _, _, err := svc.Exchange(ctx, tokenFromLink(t, link)); err != ErrInvalidLink {
		t.Fatalf("expected ErrInvalidLink, got %v", err)
	}
	if _, _, err := svc.Exchange(ctx, "nope"); err != ErrInvalidLink {
		t.Fatalf("unknown token: expected ErrInvalidLink, got %v", err)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()
	session, err := svc.issueToken(uuid.New())
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	other, _ := NewService(newMemTokenStore(), Config{Secret: []byte("other")}, c.now, nil)
	if _, err := other.ValidateToken(ctx, session); err != ErrInvalidToken {
		t.Errorf("foreign secret: expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.ValidateToken(ctx, "garbage"); err != ErrInvalidToken {
		t.Errorf("garbage: expected ErrInvalidToken, got %v", err)
	}
	c.t = c.t.Add(DefaultSessionTTL + time.Minute)
	if _, err := svc.ValidateToken(ctx, session); err != ErrInvalidToken {
		t.Errorf("expired: expected ErrInvalidToken, got %v", err)
	}
}

func TestHandler_Exchange(t *testing.T) {
	svc, _, _ := newTestService(t)
	accountID := uuid.New()
	link, err := svc.IssueAccessLink(context.Background(), accountID)
	if err != nil {
		t.Fatalf("IssueAccessLink: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /acesso/{token}", NewHandler(svc, nil).Exchange)

	req := httptest.NewRequest(http.MethodGet, "/acesso/"+tokenFromLink(t, link), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccountID != accountID.String() || resp.Token == "" {
		t.Errorf("unexpected response %+v", resp)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("reused link: expected 401, got %d", rec.Code)
	}
}
