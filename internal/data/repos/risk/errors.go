package risk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/yungbote/custrisk-backend/internal/domain"
)

// mapWriteError folds driver constraint failures into domain sentinels.
// Anything unrecognised is returned unchanged.
func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s: duplicate key", types.ErrInvalidState, op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return fmt.Errorf("%w: %s: %s", types.ErrInvalidState, op, pgErr.Detail) // unique_violation
		case "23503":
			return fmt.Errorf("%w: %s: %s", types.ErrNotFound, op, pgErr.Detail) // foreign_key_violation
		case "23502", "23514", "22P02":
			return fmt.Errorf("%w: %s: %s", types.ErrInvalidValue, op, pgErr.Message) // not_null/check/invalid_text
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed") {
		return fmt.Errorf("%w: %s: duplicate key", types.ErrInvalidState, op)
	}
	return err
}
