// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp stage names and run correlation IDs for
//     structured logging
//   - Sentinel error markers (ErrExternalTool, ErrValidation, ErrNotFound, ...)
//     and the Wrap helper that tags stage errors for later classification
//
// Subpackages wrap the external services the pipeline depends on: the
// generative text collaborator (llm) and the speech synthesis provider
// (polly).
package services
