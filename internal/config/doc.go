// Package config loads, normalizes, and validates the TOML configuration
// that drives the meditation audio pipeline: output directories, LLM and
// speech synthesis provider settings, chunking ceilings, and mixing defaults.
//
// Configuration is resolved from an explicit path, then
// ~/.config/stillpoint/config.toml, then ./stillpoint.toml, falling back to
// built-in defaults when no file exists.
package config
