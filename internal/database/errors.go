package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/taleroom/internal/models"
)

const (
	constraintRoomCode  = "sessions_room_code_key"
	constraintWaiting   = "sessions_one_waiting_per_game"
	constraintCharacter = "players_session_character_key"
)

// translate maps driver errors onto the models sentinels. Anything else passes through.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique violation
		switch pgErr.ConstraintName {
		case constraintCharacter:
			return fmt.Errorf("%w: %s", models.ErrCharacterTaken, pgErr.Detail)
		case constraintRoomCode:
			return fmt.Errorf("%w: %s", models.ErrRoomCodeTaken, pgErr.Detail)
		case constraintWaiting:
			return fmt.Errorf("%w: %s", models.ErrWaitingSessionExists, pgErr.Detail)
		}
	case "23503": // foreign key: the session is gone
		return fmt.Errorf("%w: %s", models.ErrNotFound, pgErr.Detail)
	case "42703": // undefined column
		return fmt.Errorf("%w: %s", models.ErrUnsupported, pgErr.Message)
	}
	return err
}
