package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
)

// Validate checks the configuration and canonicalizes builder kinds in place.
func Validate(cfg *Config) error {
	var problems []error

	if len(cfg.Builders) == 0 {
		problems = append(problems, errors.New("at least one builder must be configured"))
	}
	for i := range cfg.Builders {
		b := &cfg.Builders[i]
		if b.Pattern == "" || !doublestar.ValidatePattern(b.Pattern) {
			problems = append(problems, fmt.Errorf("builders[%d]: invalid pattern %q", i, b.Pattern))
		}
		kind, err := NormalizeBuilderKind(string(b.Kind))
		if err != nil || kind == "" {
			problems = append(problems, fmt.Errorf("builders[%d]: unknown kind %q (valid: %s)", i, b.Kind, strings.Join(BuilderKinds(), ", ")))
			continue
		}
		b.Kind = kind
	}

	for _, pattern := range cfg.Watch.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			problems = append(problems, fmt.Errorf("watch.ignore: invalid pattern %q", pattern))
		}
	}

	if cfg.Schedule.Cron != "" && !validCronFields(cfg.Schedule.Cron) {
		problems = append(problems, fmt.Errorf("schedule.cron: expected 5 fields, got %q", cfg.Schedule.Cron))
	}

	if len(problems) == 0 {
		return nil
	}
	return ferrors.ValidationError("invalid configuration").
		WithCause(errors.Join(problems...)).
		Build()
}

func validCronFields(expr string) bool {
	if strings.HasPrefix(expr, "@") {
		return true
	}
	return len(strings.Fields(expr)) == 5
}
