package git

import (
	"git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
)

// ClassifyGitError translates go-git errors into ClassifiedErrors.
func ClassifyGitError(err error, op, path string) error {
	if err == nil {
		return nil
	}

	// Already classified
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	return errors.GitError("git operation failed").
		WithCause(err).
		WithContext("op", op).
		WithContext("path", path).
		Build()
}
