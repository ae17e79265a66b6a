// Package deps verifies the external binaries the audio stages shell out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"stillpoint/internal/config"
)

// Requirement defines an external tool the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig returns the tool requirements implied by the configuration.
// ffmpeg is needed twice over (fragment concatenation and mixing) but the
// binaries may be configured independently.
func ForConfig(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "ffmpeg (synthesis)",
			Command:     cfg.Synthesis.FFmpegBinary,
			Description: "Concatenates narration fragments",
		},
		{
			Name:        "ffprobe",
			Command:     cfg.Mixing.FFprobeBinary,
			Description: "Measures track durations for mixing",
		},
	}
	if cfg.Mixing.FFmpegBinary != cfg.Synthesis.FFmpegBinary {
		reqs = append(reqs, Requirement{
			Name:        "ffmpeg (mixing)",
			Command:     cfg.Mixing.FFmpegBinary,
			Description: "Mixes narration with background soundscapes",
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing filters statuses down to unavailable required tools.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

// Verify runs the configured checks and returns an error naming every
// missing required binary.
func Verify(cfg *config.Config) error {
	missing := Missing(CheckBinaries(ForConfig(cfg)))
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, status := range missing {
		names = append(names, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(names, ", "))
}
