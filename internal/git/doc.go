// Package git reads the working tree of the repository that holds the source
// root, so a build can be limited to files with uncommitted changes.
package git
