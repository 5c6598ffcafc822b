// Package errors provides the classified error primitives shared by every cranebuilder
// package.
//
// Packages wrap low-level failures with fmt.Errorf internally and return a
// ClassifiedError at their boundary so the CLI can choose an exit code:
//
//	return errors.ManifestError("write manifest").
//		WithCause(err).
//		WithContext("path", path).
//		Build()
package errors
