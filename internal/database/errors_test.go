package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/taleroom/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	other := errors.New("boom")
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, models.ErrNotFound},
		{"character", &pgconn.PgError{Code: "23505", ConstraintName: constraintCharacter}, models.ErrCharacterTaken},
		{"room code", &pgconn.PgError{Code: "23505", ConstraintName: constraintRoomCode}, models.ErrRoomCodeTaken},
		{"waiting", &pgconn.PgError{Code: "23505", ConstraintName: constraintWaiting}, models.ErrWaitingSessionExists},
		{"foreign key", &pgconn.PgError{Code: "23503"}, models.ErrNotFound},
		{"undefined column", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "42703"}), models.ErrUnsupported},
		{"passthrough", other, other},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tc.in), tc.want)
		})
	}
	assert.NoError(t, translate(nil))

	unknown := &pgconn.PgError{Code: "23505", ConstraintName: "something_else"}
	assert.Same(t, unknown, translate(unknown))
}
