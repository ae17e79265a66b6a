package mixing

import (
	"os"
	"path/filepath"
	"strings"

	"stillpoint/internal/services"
)

var soundscapeExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".flac": true,
}

// FindBackground picks a background track from dir. A non-empty tag is
// matched case-insensitively against candidate file names; when nothing
// matches, or the tag is empty, a uniform random candidate is used instead.
// An empty directory is a distinct not-found condition, never a mix failure.
func (m *Mixer) FindBackground(dir, tag string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "", "find soundscape", dir, err)
	}
	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if soundscapeExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			candidates = append(candidates, entry.Name())
		}
	}
	if len(candidates) == 0 {
		return "", services.Wrap(services.ErrNotFound, "", "find soundscape", "no soundscape candidates in "+dir, nil)
	}

	pool := candidates
	if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
		var matches []string
		for _, name := range candidates {
			if strings.Contains(strings.ToLower(name), tag) {
				matches = append(matches, name)
			}
		}
		if len(matches) > 0 {
			pool = matches
		}
	}
	return filepath.Join(dir, pool[m.rng.IntN(len(pool))]), nil
}
