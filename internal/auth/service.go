// Package auth issues single-use dashboard links and the JWT sessions they
// are exchanged for.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/finia/backend/internal/models"
	"github.com/finia/backend/internal/repository"
)

const (
	DefaultLinkTTL    = 30 * time.Minute
	DefaultSessionTTL = 24 * time.Hour

	issuer = "finia"
)

var (
	// ErrInvalidLink is returned for unknown, expired and already used links.
	ErrInvalidLink  = errors.New("invalid or expired access link")
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("jwt secret is required")
)

// TokenStore persists access link digests.
type TokenStore interface {
	Create(ctx context.Context, t *models.AccessToken) error
	Consume(ctx context.Context, tokenHash string, at time.Time) (uuid.UUID, error)
}

type Service interface {
	IssueAccessLink(ctx context.Context, accountID uuid.UUID) (string, error)
	Exchange(ctx context.Context, token string) (string, uuid.UUID, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

type Config struct {
	Secret      []byte
	LinkBaseURL string
	LinkTTL     time.Duration
	SessionTTL  time.Duration
}

type service struct {
	store  TokenStore
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewService returns the link and session service. A nil clock means
// time.Now.
func NewService(store TokenStore, cfg Config, clock func() time.Time, logger *slog.Logger) (*service, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = DefaultLinkTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	cfg.LinkBaseURL = strings.TrimRight(cfg.LinkBaseURL, "/")
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{store: store, cfg: cfg, now: clock, logger: logger}, nil
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

// IssueAccessLink stores a digest of a fresh random token and returns the
// link carrying the token itself.
func (s *service) IssueAccessLink(ctx context.Context, accountID uuid.UUID) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	t := &models.AccessToken{
		ID:        uuid.New(),
		AccountID: accountID,
		TokenHash: s.digest(token),
		ExpiresAt: s.now().Add(s.cfg.LinkTTL),
	}
	if err := s.store.Create(ctx, t); err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}
	s.logger.Info("access link issued", "account_id", accountID, "expires_at", t.ExpiresAt)
	return s.cfg.LinkBaseURL + "/acesso/" + token, nil
}

// Exchange burns an access link token and returns a session token for its
// account.
func (s *service) Exchange(ctx context.Context, token string) (string, uuid.UUID, error) {
	if token == "" {
		return "", uuid.Nil, ErrInvalidLink
	}
	accountID, err := s.store.Consume(ctx, s.digest(token), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return "", uuid.Nil, ErrInvalidLink
	}
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("consume access token: %w", err)
	}
	session, err := s.issueToken(accountID)
	if err != nil {
		return "", uuid.Nil, err
	}
	return session, accountID, nil
}

func (s *service) issueToken(accountID uuid.UUID) (string, error) {
	now := s.now()
	c := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   accountID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SessionTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.cfg.Secret)
}

func (s *service) ValidateToken(_ context.Context, token string) (uuid.UUID, error) {
	var c jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// digest is BLAKE2b-256 keyed with the session secret.
func (s *service) digest(token string) string {
	key := s.cfg.Secret
	if len(key) > blake2b.Size {
		k := blake2b.Sum256(key)
		key = k[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}
