package observability

import (
	"errors"
	"fmt"

	"github.com/danielCarlosRodriguez/utilesApp/errs"
)

// AggregateErrors joins the non-nil errors of a multi-part operation, logs one entry
// naming each failure and its code, and returns the joined error (nil when all succeeded).
func AggregateErrors(operation string, failures []error, fields ...Field) error {
	filtered := make([]error, 0, len(failures))
	messages := make([]string, 0, len(failures))
	codes := make([]string, 0, len(failures))
	for _, err := range failures {
		if err == nil {
			continue
		}
		filtered = append(filtered, err)
		messages = append(messages, err.Error())
		if code := errs.CodeOf(err); code != "" {
			codes = append(codes, string(code))
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	logFields := make([]Field, 0, len(fields)+4)
	logFields = append(logFields, fields...)
	logFields = append(logFields,
		F("operation", operation),
		F("error_count", len(filtered)),
		F("errors", messages),
	)
	if len(codes) > 0 {
		logFields = append(logFields, F("codes", codes))
	}
	Log().Error("operation errors", logFields...)
	return fmt.Errorf("%s failed: %w", operation, errors.Join(filtered...))
}
