package espanso

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ResolveMatchDir locates the Espanso match directory. An explicit override
// is returned as-is; otherwise the platform-conventional config roots are
// probed in priority order and the first existing match directory wins.
// Returns ErrConfigNotFound when nothing exists and no override was given.
func ResolveMatchDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	for _, dir := range matchDirCandidates() {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: use --match-dir to point at your espanso match directory", ErrConfigNotFound)
}

// matchDirCandidates lists the match directories Espanso itself would use,
// most specific first.
func matchDirCandidates() []string {
	var roots []string
	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			roots = append(roots, filepath.Join(appData, "espanso"))
		}
	case "darwin":
		if home != "" {
			roots = append(roots,
				filepath.Join(home, "Library", "Application Support", "espanso"),
				filepath.Join(home, "Library", "Preferences", "espanso"),
				filepath.Join(home, ".config", "espanso"),
			)
		}
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			roots = append(roots, filepath.Join(xdg, "espanso"))
		}
		if home != "" {
			roots = append(roots, filepath.Join(home, ".config", "espanso"))
		}
	}

	dirs := make([]string, 0, len(roots))
	for _, r := range roots {
		dirs = append(dirs, filepath.Join(r, "match"))
	}
	return dirs
}
