package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/mftcargo/tracker/internal/shared"
)

// DefaultTTL is the lifetime of a session token.
const DefaultTTL = 2 * time.Hour

// Revoker remembers logged-out session ids until their tokens expire.
type Revoker interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	Revoked(ctx context.Context, id string) (bool, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	revoker Revoker
	secret  []byte
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a new Service. A nil revoker disables logout
// revocation; tokens then stay valid until they expire.
func NewService(repo Repository, revoker Revoker, secret string, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, revoker: revoker, secret: []byte(secret), ttl: ttl, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TTL reports the session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a session token.
func (s *Service) Login(ctx context.Context, username, password, ip, ua string) (*Token, *User, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}
	token, err := s.Issue(user)
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.CreateSession(ctx, token.ID, user.ID, token.ExpiresAt, ip, ua); err != nil {
		s.logger.Warn("register session", slog.Any("error", err))
	}
	s.logger.Info("admin logged in", slog.Int64("user_id", user.ID), slog.String("session_id", token.ID))
	return token, user, nil
}

// Issue signs a new HS256 session token for user.
func (s *Service) Issue(user *User) (*Token, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UserID:   user.ID,
		Username: user.Username,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{Value: signed, ID: claims.ID, ExpiresAt: expires}, nil
}

func (s *Service) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify checks a token and returns the principal it carries.
func (s *Service) Verify(ctx context.Context, raw string) (*shared.Principal, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.Revoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}
	return &shared.Principal{UserID: claims.UserID, Username: claims.Username, SessionID: claims.ID}, nil
}

// Logout revokes the token's session. Invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, raw string) error {
	claims, err := s.parse(raw)
	if err != nil {
		return nil
	}
	if s.revoker != nil {
		if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Sub(s.now())); err != nil {
			return err
		}
	}
	if err := s.repo.DeleteSession(ctx, claims.ID); err != nil {
		s.logger.Warn("remove session", slog.Any("error", err))
	}
	return nil
}

const revokedPrefix = "auth:revoked:"

// RedisRevoker keeps revoked session ids in Redis until expiry.
type RedisRevoker struct {
	client *redis.Client
}

// NewRedisRevoker constructs a RedisRevoker.
func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

// Revoke marks id as logged out for ttl.
func (r *RedisRevoker) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedPrefix+id, 1, ttl).Err(); err != nil {
		return fmt.Errorf("auth: revoke session: %w", err)
	}
	return nil
}

// Revoked reports whether id was logged out.
func (r *RedisRevoker) Revoked(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("auth: check session: %w", err)
	}
	return n > 0, nil
}

var _ Revoker = (*RedisRevoker)(nil)
