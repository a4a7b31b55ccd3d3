package config

import (
	"path/filepath"
	"testing"
)

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDataDirForHost(t *testing.T) {
	always := func(string) bool { return true }
	never := func(string) bool { return false }
	home := filepath.FromSlash("/home/ana")

	tests := []struct {
		name string
		h    host
		want string
	}{
		{
			name: "no home falls back to ./data",
			h:    host{goos: "linux", home: "", euid: 1000, getenv: envOf(map[string]string{"XDG_DATA_HOME": "/x"}), isDir: always},
			want: "./data",
		},
		{
			name: "XDG_DATA_HOME wins on any OS",
			h:    host{goos: "darwin", home: home, euid: 501, getenv: envOf(map[string]string{"XDG_DATA_HOME": "/custom/data"}), isDir: always},
			want: filepath.Join("/custom/data", "spool"),
		},
		{
			name: "linux user default",
			h:    host{goos: "linux", home: home, euid: 1000, getenv: envOf(nil), isDir: always},
			want: filepath.Join(home, ".local", "share", "spool"),
		},
		{
			name: "linux root uses /var/lib",
			h:    host{goos: "linux", home: "/root", euid: 0, getenv: envOf(nil), isDir: always},
			want: "/var/lib/spool",
		},
		{
			name: "root without /var/lib keeps the home default",
			h:    host{goos: "freebsd", home: "/root", euid: 0, getenv: envOf(nil), isDir: never},
			want: filepath.Join("/root", ".local", "share", "spool"),
		},
		{
			name: "darwin application support",
			h:    host{goos: "darwin", home: home, euid: 501, getenv: envOf(nil), isDir: always},
			want: filepath.Join(home, "Library", "Application Support", "Spool"),
		},
		{
			name: "windows LOCALAPPDATA",
			h:    host{goos: "windows", home: home, euid: -1, getenv: envOf(map[string]string{"LOCALAPPDATA": "/appdata/local"}), isDir: never},
			want: filepath.Join("/appdata/local", "Spool"),
		},
		{
			name: "windows without LOCALAPPDATA",
			h:    host{goos: "windows", home: home, euid: -1, getenv: envOf(nil), isDir: never},
			want: filepath.Join(home, "AppData", "Local", "Spool"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.h.dataDir(); got != tt.want {
				t.Fatalf("dataDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultDataDirHonorsXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)
	t.Setenv("HOME", t.TempDir())
	if got, want := DefaultDataDir(), filepath.Join(xdg, "spool"); got != want {
		t.Fatalf("DefaultDataDir() = %q, want %q", got, want)
	}
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	if !isDir(dir) {
		t.Fatalf("isDir(%q) = false", dir)
	}
	if isDir(filepath.Join(dir, "missing")) {
		t.Fatalf("isDir on a missing path = true")
	}
}
