// Package kernel defines the operations a compiled function can invoke and
// the registry the engine resolves kernel names against when an artifact is
// opened.
package kernel
