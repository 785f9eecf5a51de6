package combine

import (
	"errors"
	"fmt"
)

// ErrCodeConfigInvalid marks errors detected while building a combiner.
const ErrCodeConfigInvalid = "CONFIG_INVALID"

// ConfigError reports an unusable combiner configuration: an unknown rule
// identifier, a malformed range, or a bad budget. It is fatal at setup.
type ConfigError struct {
	Code    string
	Entry   string // offending filter entry, if any
	Message string
}

func (e *ConfigError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("%s: %s (entry %q)", e.Code, e.Message, e.Entry)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err contains a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func configErrorf(entry, format string, args ...any) *ConfigError {
	return &ConfigError{Code: ErrCodeConfigInvalid, Entry: entry, Message: fmt.Sprintf(format, args...)}
}
