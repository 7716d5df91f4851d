package db

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/sahayak/sahayak/internal/platform/apperr"
)

// Translate maps a driver error onto the apperr taxonomy: no rows becomes
// NotFound, a unique violation Conflict, anything else Upstream.
func Translate(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.NotFound(resource, id)
	case IsUniqueViolation(err):
		return apperr.Conflict(resource + " already exists")
	default:
		return apperr.Upstream("postgres", err)
	}
}
