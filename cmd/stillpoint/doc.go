// Package main hosts the stillpoint CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the meditation pipeline end to end
// (generate), re-runs slices of it against saved snapshots (resume), and
// exposes the snapshot store, the run ledger, and configuration scaffolding
// for inspection. Configuration resolution and logger setup are centralized
// here so the internal packages stay wiring-free.
package main
