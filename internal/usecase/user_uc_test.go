package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+34600111222", NormalizePhone(" +34 600-111-222 "))
	assert.Equal(t, "600111222", NormalizePhone("(600) 111 222"))
	assert.Equal(t, "34600", NormalizePhone("34+600"))
	assert.Empty(t, NormalizePhone("abc"))
}

func TestPhoneCandidates(t *testing.T) {
	assert.Equal(t, []string{"+34 600", "+34600", "34600"}, phoneCandidates("+34 600"))
	assert.Equal(t, []string{"34600", "+34600"}, phoneCandidates("34600"))
	assert.Nil(t, phoneCandidates(" - "))
}

func TestIdentifyByPhone(t *testing.T) {
	users := newMemUserRepo(&model.User{ID: "u-1", Phone: "600111222"})
	uc := NewUserUseCase(users, newTestLogger())

	u, err := uc.IdentifyByPhone(context.Background(), "+600111222")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, []string{"+600111222", "600111222"}, users.calls, "stops at the first match")

	_, err = uc.IdentifyByPhone(context.Background(), "700")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = uc.IdentifyByPhone(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestGetByID(t *testing.T) {
	uc := NewUserUseCase(newMemUserRepo(&model.User{ID: "u-1", Name: "Ana"}), newTestLogger())

	u, err := uc.GetByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.DisplayName())

	_, err = uc.GetByID(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = uc.GetByID(context.Background(), "u-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
