package repository

import (
	"context"

	"fincas-assistant/internal/domain/model"
)

// -----------------------------
// Users (usuarios)
// -----------------------------

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByUsername(ctx context.Context, tx Tx, username string) (*model.User, error)
	FindByPhone(ctx context.Context, tx Tx, phone string) (*model.User, error)
}
