package usecase

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes user lookups used by the bot and the CLI.
type UserUseCase interface {
	IdentifyByPhone(ctx context.Context, phone string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, logger *zerolog.Logger) *userUC {
	return &userUC{users: users, log: logger}
}

// NormalizePhone keeps digits and a leading '+', which is how Telegram shares contacts.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		if unicode.IsDigit(r) || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// phoneCandidates lists the spellings tried against telefono_movil: as given,
// normalized, and with the leading '+' toggled (Telegram contacts omit it).
func phoneCandidates(phone string) []string {
	raw := strings.TrimSpace(phone)
	norm := NormalizePhone(raw)
	if norm == "" {
		return nil
	}
	out := []string{}
	seen := map[string]bool{}
	for _, c := range []string{raw, norm, strings.TrimPrefix(norm, "+"), "+" + strings.TrimPrefix(norm, "+")} {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// findByPhone returns the first user matching any candidate spelling.
func findByPhone(ctx context.Context, users repository.UserRepository, phone string) (*model.User, error) {
	cands := phoneCandidates(phone)
	if len(cands) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	for _, c := range cands {
		usr, err := users.FindByPhone(ctx, nil, c)
		if err == nil {
			return usr, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, domain.ErrNotFound
}

func (u *userUC) IdentifyByPhone(ctx context.Context, phone string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.IdentifyByPhone")()
	usr, err := findByPhone(ctx, u.users, phone)
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", usr.ID).Msg("user identified by phone")
	return usr, nil
}

func (u *userUC) GetByID(ctx context.Context, id string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.users.FindByID(ctx, nil, id)
}
