package history

import (
	"git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
)

var (
	// ErrRunNotFound indicates no run is indexed under the requested token.
	ErrRunNotFound = errors.NewError(errors.CategoryNotFound, "run not found in history").Build()

	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.NewError(errors.CategoryFileSystem, "could not open history database").Fatal().Build()
)
