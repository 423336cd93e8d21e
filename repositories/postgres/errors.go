package postgres

import (
	"errors"

	"github.com/lib/pq"
	"github.com/upb/andon-board/repositories"
)

const uniqueViolation = "23505"

// constraintFields maps unique constraints to the request field they guard.
var constraintFields = map[string]string{
	"tenants_slug_key":           "slug",
	"users_email_key":            "email",
	"machines_tenant_code_key":   "code",
	"calls_one_open_per_machine": "machine_id",
	"calls_tenant_number_key":    "number",
}

// mapWriteError turns unique violations into repositories.ConflictError.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &repositories.ConflictError{
			Constraint: pqErr.Constraint,
			Field:      constraintFields[pqErr.Constraint],
			Err:        err,
		}
	}
	return err
}
