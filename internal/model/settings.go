package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Settings are the command line options shared by all commands. They come
// from flags or AC_* environment variables.
type Settings struct {
	File        string        `mapstructure:"file"`
	Color       string        `mapstructure:"color"`
	Verbose     bool          `mapstructure:"verbose"`
	LogFormat   string        `mapstructure:"log-format"`
	StopTimeout time.Duration `mapstructure:"stop-timeout"`
}

func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.File) == "" {
		errs = append(errs, errors.New("file: must not be empty"))
	}
	if !slices.Contains([]string{"auto", "always", "never"}, strings.ToLower(s.Color)) {
		errs = append(errs, fmt.Errorf("color: unsupported value %q", s.Color))
	}
	if !slices.Contains([]string{"json", "text"}, strings.ToLower(s.LogFormat)) {
		errs = append(errs, fmt.Errorf("log-format: unsupported value %q", s.LogFormat))
	}
	if s.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stop-timeout: must be positive, got %s", s.StopTimeout))
	}
	return errors.Join(errs...)
}
