package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// host is the environment DefaultDataDir inspects.
type host struct {
	goos   string
	home   string
	euid   int
	getenv func(string) string
	isDir  func(string) bool
}

func currentHost() host {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return host{
		goos:   runtime.GOOS,
		home:   home,
		euid:   os.Geteuid(),
		getenv: os.Getenv,
		isDir:  isDir,
	}
}

// DefaultDataDir returns where spool keeps its rows when no dataDir is
// configured. XDG_DATA_HOME wins when set; otherwise the host's per-user
// application data directory is used, or /var/lib/spool for root on Unix.
// Without a home directory it falls back to ./data.
func DefaultDataDir() string {
	return currentHost().dataDir()
}

func (h host) dataDir() string {
	if h.home == "" {
		return "./data"
	}

	if xdg := h.getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "spool")
	}

	switch h.goos {
	case "darwin":
		return filepath.Join(h.home, "Library", "Application Support", "Spool")
	case "windows":
		if local := h.getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "Spool")
		}
		return filepath.Join(h.home, "AppData", "Local", "Spool")
	}

	if h.euid == 0 && h.isDir("/var/lib") {
		return "/var/lib/spool"
	}
	return filepath.Join(h.home, ".local", "share", "spool")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
