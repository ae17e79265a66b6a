// Package logging provides slog-based structured logging with console and
// JSON handlers, shared attribute helpers, and context propagation of
// pipeline stage names and run correlation IDs.
package logging
