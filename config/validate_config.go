package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// ValidateConfig checks the loaded config and returns a single error describing all issues.
func ValidateConfig(cfg *ConfigData) error {
	var errs multiErr

	// ---- top-level checks ----
	if cfg == nil {
		return errors.New("config is nil")
	}
	if !isValidLogLevel(cfg.LogLevel) {
		errs.addf("invalid loglevel %q (allowed: debug, info, warn, error)", cfg.LogLevel)
	}
	if strings.TrimSpace(cfg.Database) == "" {
		errs.addf("database is required")
	}
	if !isValidWindow(cfg.Debounce) {
		errs.addf("debounce %q must be a positive duration such as 2s or 500ms", cfg.Debounce)
	}
	if !isValidWindow(cfg.Throttle) {
		errs.addf("throttle %q must be a positive duration such as 2s or 500ms", cfg.Throttle)
	}
	if _, err := glob.Compile(cfg.HiddenPattern); err != nil {
		errs.addf("hidden_pattern %q is not a valid glob: %v", cfg.HiddenPattern, err)
	}
	if cfg.Workers != nil && *cfg.Workers < 1 {
		errs.addf("workers must be at least 1, got %d", *cfg.Workers)
	}
	if cfg.QueueSize != nil && *cfg.QueueSize < 1 {
		errs.addf("queue_size must be at least 1, got %d", *cfg.QueueSize)
	}

	// ---- seeded watch directories ----
	seenDirs := map[string]struct{}{}
	for i := range cfg.Watch {
		prefix := fmt.Sprintf("watch[%d]", i)
		dir := strings.TrimSpace(cfg.Watch[i])
		if dir == "" {
			errs.addf("%s: path is required", prefix)
			continue
		}
		if !isDir(dir) {
			errs.addf("%s: %q does not exist or is not a directory", prefix, dir)
		}
		// Watched roots are keyed by absolute path.
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		if _, dup := seenDirs[dir]; dup {
			errs.addf("%s: duplicate directory %q", prefix, dir)
		}
		seenDirs[dir] = struct{}{}
		cfg.Watch[i] = dir
	}

	// ---- per-remote checks ----
	seenNames := map[string]struct{}{}
	for i := range cfg.Remotes {
		r := &cfg.Remotes[i]
		prefix := fmt.Sprintf("remote[%d]", i)
		if strings.TrimSpace(r.Name) == "" {
			errs.addf("%s: name is required", prefix)
		} else {
			if _, dup := seenNames[r.Name]; dup {
				errs.addf("%s: duplicate name %q", prefix, r.Name)
			}
			seenNames[r.Name] = struct{}{}
		}

		if strings.TrimSpace(r.Username) == "" {
			errs.addf("%s: username is required for SFTP", prefix)
		}
		if strings.TrimSpace(r.Server) == "" {
			errs.addf("%s: server is required for SFTP", prefix)
		}
		if !isValidPort(r.Port) {
			errs.addf("%s: port %q must be an integer 1-65535 for SFTP", prefix, r.Port)
		}
		// Auth: require at least one of PrivateKey or Password
		if strings.TrimSpace(r.PrivateKey) == "" && strings.TrimSpace(r.Password) == "" {
			errs.addf("%s: either privatekey or password must be provided for SFTP", prefix)
		}
		if strings.TrimSpace(r.PrivateKey) != "" && !isFile(r.PrivateKey) {
			errs.addf("%s: privatekey file %q not found or unreadable", prefix, r.PrivateKey)
		}
		if strings.TrimSpace(r.KnownHosts) != "" && !isFile(r.KnownHosts) {
			errs.addf("%s: knownhosts file %q not found or unreadable", prefix, r.KnownHosts)
		}
	}

	if errs.len() > 0 {
		return errs.err()
	}
	return nil
}

// ---- helpers ----

type multiErr struct {
	list []string
}

func (m *multiErr) addf(format string, a ...any) {
	m.list = append(m.list, fmt.Sprintf(format, a...))
}
func (m *multiErr) len() int { return len(m.list) }
func (m *multiErr) err() error {
	return errors.New(strings.Join(m.list, "; "))
}

func isValidLogLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "warning", "error", "":
		return true
	default:
		return false
	}
}

func isValidWindow(s string) bool {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	return err == nil && d > 0
}

func isValidPort(p string) bool {
	if strings.TrimSpace(p) == "" {
		return false
	}
	n, err := strconv.Atoi(p)
	if err != nil || n < 1 || n > 65535 {
		return false
	}
	return true
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
