// Package mixing layers narration audio over an ambient soundscape.
//
// The background track is matched to the narration length: trimmed from a
// random offset when it is longer, whole-loop repeated when shorter. Only the
// background is volume-scaled, and the mixed result lasts exactly as long as
// the narration. The package also selects soundscape files by tag and can
// extract a short stream-copied preview of the mix.
package mixing
