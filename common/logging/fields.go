package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldService  = "service"
	FieldUserID   = "user_id"
	FieldEvent    = "event"
	FieldCount    = "count"
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
	FieldError    = "error"
	FieldTestID   = "test_id"
	FieldCohortID = "cohort_id"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// UserID returns a slog attribute for the user ID.
func UserID(id string) slog.Attr {
	return slog.String(FieldUserID, id)
}

// Event returns a slog attribute for an event name.
func Event(name string) slog.Attr {
	return slog.String(FieldEvent, name)
}

// Count returns a slog attribute for a count of items.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// TestID returns a slog attribute for an A/B test ID.
func TestID(id string) slog.Attr {
	return slog.String(FieldTestID, id)
}

// CohortID returns a slog attribute for a cohort ID.
func CohortID(id string) slog.Attr {
	return slog.String(FieldCohortID, id)
}
