// Package statestore persists pipeline records as append-only JSON snapshots
// named state_<stage>_<timestamp>.json, where the fixed-width UTC timestamp
// makes lexical order equal time order.
package statestore
