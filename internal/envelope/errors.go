package envelope

import "errors"

// ErrSchemaViolation marks a parse/validation failure as terminal for the
// outbox consumer: the row is parked, never retried.
var ErrSchemaViolation = errors.New("schema_violation")
