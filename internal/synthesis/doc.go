// Package synthesis turns SSML markup into a single narration audio file.
//
// Markup longer than the provider's per-request budget is split into
// self-contained fragments: consecutive paragraph elements are packed under
// the ceiling, and text without paragraph structure is stripped of tags and
// repacked sentence by sentence. Fragments are synthesized strictly in order
// and joined with a lossless stream-copy concat; a failure at any point
// removes every intermediate file.
package synthesis
