// Package pipeline defines the shared state record, the fixed stage order,
// and the engine that drives registered stage handlers across a range of
// stages while persisting a snapshot after each one.
package pipeline
