package build

import "errors"

// ErrBuildFailed is wrapped into the error returned for a run whose report
// contains failed files.
var ErrBuildFailed = errors.New("build finished with errors")
