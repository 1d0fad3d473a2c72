package model

import (
	"errors"
	"fmt"
	"log/slog"
)

var ErrInvalidConfig = errors.New("invalid config")

// ConfigError points to the offending place of a compose file.
type ConfigError struct {
	Line    int    // 1-based, 0 when unknown
	Path    string // services.web.environment.PORT
	Message string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Path, e.Message)
	case e.Path != "":
		return e.Path + ": " + e.Message
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	default:
		return e.Message
	}
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func (e *ConfigError) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("path", e.Path),
		slog.Int("line", e.Line),
		slog.String("message", e.Message),
	)
}
