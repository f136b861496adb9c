// Package buildinfo carries the version stamp injected at link time.
package buildinfo

// Version is overridden via -ldflags "-X stagewatch/internal/buildinfo.Version=...".
var Version = "dev"
