package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/metrics"
	"fincas-assistant/internal/infra/security"
)

// Compile-time check
var _ AuthUseCase = (*authUC)(nil)

type AuthUseCase interface {
	CreateAccessToken(claims model.AccessClaims, ttl time.Duration) (string, error)
	VerifyToken(token string) (*model.AccessClaims, error)
	UserFromToken(ctx context.Context, token string) (*model.User, error)
	RequireRole(ctx context.Context, token string, roles ...string) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (string, *model.User, error)
	AuthenticateByPhone(ctx context.Context, phone string) (string, *model.User, error)
	TokenTTL() time.Duration
}

type AuthConfig struct {
	SecretKey string
	Algorithm string // HS256 | HS384 | HS512
	TTL       time.Duration
}

type tokenClaims struct {
	Role string `json:"rol,omitempty"`
	jwt.RegisteredClaims
}

type authUC struct {
	users  repository.UserRepository
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	log    *zerolog.Logger
	now    func() time.Time
}

func NewAuthUseCase(users repository.UserRepository, cfg AuthConfig, logger *zerolog.Logger) (*authUC, error) {
	method := jwt.GetSigningMethod(strings.ToUpper(cfg.Algorithm))
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", cfg.Algorithm)
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("jwt secret key is empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 60 * time.Minute
	}
	return &authUC{
		users:  users,
		secret: []byte(cfg.SecretKey),
		method: method,
		ttl:    cfg.TTL,
		log:    logger,
		now:    time.Now,
	}, nil
}

func (a *authUC) TokenTTL() time.Duration { return a.ttl }

func (a *authUC) CreateAccessToken(claims model.AccessClaims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = a.ttl
	}
	now := a.now()
	tc := tokenClaims{
		Role: claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(a.method, tc).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (a *authUC) VerifyToken(token string) (*model.AccessClaims, error) {
	tc := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, tc, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{a.method.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		a.log.Debug().Err(err).Msg("token rejected")
		return nil, domain.ErrInvalidToken
	}
	out := &model.AccessClaims{Subject: tc.Subject, Role: tc.Role}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}
	return out, nil
}

func (a *authUC) UserFromToken(ctx context.Context, token string) (*model.User, error) {
	claims, err := a.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, domain.ErrInvalidToken
	}
	u, err := a.users.FindByID(ctx, nil, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.log.Warn().Str("user_id", claims.Subject).Msg("token subject no longer exists")
		}
		return nil, err
	}
	return u, nil
}

func (a *authUC) RequireRole(ctx context.Context, token string, roles ...string) (*model.User, error) {
	u, err := a.UserFromToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !u.HasRole(roles...) {
		a.log.Warn().Str("user_id", u.ID).Str("role", u.EffectiveRole()).Strs("required", roles).Msg("access denied")
		return nil, domain.ErrForbidden
	}
	return u, nil
}

func (a *authUC) issue(u *model.User) (string, error) {
	return a.CreateAccessToken(model.AccessClaims{Subject: u.ID, Role: u.EffectiveRole()}, 0)
}

func (a *authUC) Authenticate(ctx context.Context, username, password string) (string, *model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		metrics.IncAuthentication("password", "invalid")
		return "", nil, domain.ErrInvalidCredentials
	}
	u, err := a.users.FindByUsername(ctx, nil, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncAuthentication("password", "invalid")
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("find user: %w", err)
	}
	if !security.CheckPassword(u.PasswordHash, password) {
		metrics.IncAuthentication("password", "invalid")
		return "", nil, domain.ErrInvalidCredentials
	}
	tok, err := a.issue(u)
	if err != nil {
		return "", nil, err
	}
	metrics.IncAuthentication("password", "ok")
	a.log.Info().Str("user_id", u.ID).Msg("user authenticated with credentials")
	return tok, u, nil
}

func (a *authUC) AuthenticateByPhone(ctx context.Context, phone string) (string, *model.User, error) {
	u, err := findByPhone(ctx, a.users, phone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidArgument) {
			metrics.IncAuthentication("phone", "invalid")
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("find user by phone: %w", err)
	}
	tok, err := a.issue(u)
	if err != nil {
		return "", nil, err
	}
	metrics.IncAuthentication("phone", "ok")
	a.log.Info().Str("user_id", u.ID).Msg("user authenticated by phone")
	return tok, u, nil
}
