// Package logging configures structured slog output for amanvis.
//
// Logs are JSON lines written to ~/.amanvis/logs/amanvis.log with
// size-based rotation. With --debug the level drops to debug and records
// are mirrored to stderr.
package logging
