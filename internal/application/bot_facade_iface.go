package application

import (
	"context"
	"time"

	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/usecase"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----

type AuthUseCaseIface interface {
	VerifyToken(token string) (*model.AccessClaims, error)
	RequireRole(ctx context.Context, token string, roles ...string) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (string, *model.User, error)
	AuthenticateByPhone(ctx context.Context, phone string) (string, *model.User, error)
	TokenTTL() time.Duration
}

type AssistantUseCaseIface interface {
	Answer(ctx context.Context, question, userID string) (string, error)
}

type IndexerUseCaseIface interface {
	Run(ctx context.Context) (*usecase.IndexReport, error)
}

// Translator resolves user-facing messages.
type Translator interface {
	T(key string, args ...interface{}) string
	Help() string
}
