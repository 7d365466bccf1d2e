package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestUpperTR(t *testing.T) {
	assert.Equal(t, "İSTANBUL", UpperTR("  istanbul "))
	assert.Equal(t, "IĞDIR", UpperTR("ığdır"))
	assert.Equal(t, "ışık", LowerTR("IŞIK"))
	assert.Nil(t, UpperTRPtr(nil))
	city := "izmir"
	assert.Equal(t, "İZMİR", *UpperTRPtr(&city))
}

func TestPersistenceWrapping(t *testing.T) {
	assert.NoError(t, Persistence("op", nil))
	assert.Equal(t, ErrNotFound, Persistence("load", ErrNotFound))

	driver := errors.New("connection reset")
	err := Persistence("save shipment", driver)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, driver)
	assert.Contains(t, err.Error(), "save shipment")
}

func TestValidationf(t *testing.T) {
	err := Validationf("quantity must be at least %d", 1)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "quantity must be at least 1")
}

func TestPgErrorClassification(t *testing.T) {
	unique := Persistence("insert", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}
	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsForeignKeyViolation(unique))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}

func TestValidateFoldsFieldErrors(t *testing.T) {
	type input struct {
		Name     string `validate:"required"`
		Quantity int    `validate:"min=1"`
	}
	err := Validate(input{Quantity: 0})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Name is required")
	assert.Contains(t, err.Error(), "Quantity must satisfy min=1")
	assert.NoError(t, Validate(input{Name: "x", Quantity: 2}))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 41)
	assert.Equal(t, Pagination{Page: 1, PerPage: 20, Total: 41, TotalPages: 3}, p)
	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, 40, NewPagination(3, 20, 41).Offset())
}

func TestPrincipalGuards(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, Authorize(ctx), ErrUnauthorized)
	assert.Equal(t, "jobs:manifest:stage_resync:lock", JobLockKey("manifest:stage_resync"))

	ctx = ContextWithPrincipal(ctx, &Principal{UserID: 9, Username: "ops"})
	assert.NoError(t, Authorize(ctx))
	assert.Equal(t, int64(9), ActorID(ctx))
}
