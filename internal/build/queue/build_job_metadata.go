package queue

import "git.home.luguber.info/inful/cranebuilder/internal/build"

// BuildJobMetadata holds the run inputs and, once settled, its result.
type BuildJobMetadata struct {
	// Paths requested for the run. Empty means a full rebuild.
	Paths []string `json:"paths,omitempty"`

	// Result is populated after the last attempt.
	Result *build.BuildResult `json:"-"`
}

// EnsureTypedMeta returns job.TypedMeta, initializing it if nil.
func EnsureTypedMeta(job *BuildJob) *BuildJobMetadata {
	if job.TypedMeta == nil {
		job.TypedMeta = &BuildJobMetadata{}
	}
	return job.TypedMeta
}
