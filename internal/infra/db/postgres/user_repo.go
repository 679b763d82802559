package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/metrics"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo reads the usuarios table. Writes are owned by the back office.
type UserRepo struct {
	pool  *pgxpool.Pool
	table string
}

func NewUserRepo(pool *pgxpool.Pool, tableName string) *UserRepo {
	if tableName == "" {
		tableName = "usuarios"
	}
	return &UserRepo{pool: pool, table: table(tableName)}
}

func (r *UserRepo) selectBy(column string) string {
	return fmt.Sprintf(`
SELECT id::text, COALESCE(nombre,''), COALESCE(nombre_usuario,''), COALESCE(telefono_movil,''),
       COALESCE(rol,'user'), COALESCE(password_hash,'')
  FROM %s WHERE %s=$1 LIMIT 1;`, r.table, column)
}

func (r *UserRepo) findOne(ctx context.Context, tx repository.Tx, column, value string) (*model.User, error) {
	defer metrics.ObserveQuery("user_by_"+column, time.Now())
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var u model.User
	err = ex.QueryRow(ctx, r.selectBy(column), value).
		Scan(&u.ID, &u.Name, &u.Username, &u.Phone, &u.Role, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return r.findOne(ctx, tx, "id", id)
}

func (r *UserRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.User, error) {
	return r.findOne(ctx, tx, "nombre_usuario", username)
}

func (r *UserRepo) FindByPhone(ctx context.Context, tx repository.Tx, phone string) (*model.User, error) {
	return r.findOne(ctx, tx, "telefono_movil", phone)
}
