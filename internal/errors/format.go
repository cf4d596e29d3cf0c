package errors

import (
	"fmt"
	"log/slog"
	"strings"
)

// FormatForCLI renders err for terminal output with its hint and code.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ie, ok := as(err)
	if !ok {
		ie = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ie.Message)
	if ie.Cause != nil && ie.Cause.Error() != ie.Message {
		fmt.Fprintf(&sb, "  Cause: %v\n", ie.Cause)
	}
	if ie.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ie.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ie.Code)
	return sb.String()
}

// LogAttrs returns slog attributes describing err, for job outcome lines.
func LogAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}
	ie, ok := as(err)
	if !ok {
		return []slog.Attr{slog.String("error", err.Error())}
	}
	attrs := []slog.Attr{
		slog.String("error", ie.Error()),
		slog.String("code", ie.Code),
		slog.String("category", string(ie.Category)),
	}
	if ie.Retryable {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	return attrs
}
