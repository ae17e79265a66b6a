// Package llm provides an OpenRouter chat client for the generative pipeline
// stages.
//
// This package is used by:
//   - Script stage: generate the narration script and its section analysis
//   - Prosody stages: produce the prosody analysis and profile as JSON
//   - Markup stages: generate and review SSML
//
// # Configuration
//
// Requires api_key, model, and optionally base_url, referer, title, timeout.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive free-form text.
// Client.CompleteJSON: send system/user prompts, receive a JSON payload.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
//
// # Fallback
//
// If the LLM is unavailable or returns unparseable output, callers fall back
// to deterministic defaults rather than failing the run; DecodeLLMJSON
// tolerates code fences and stray prose around the payload first.
package llm
