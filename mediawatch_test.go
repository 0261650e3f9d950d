package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig creates a minimal valid config whose database lives in a
// temp dir.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	yaml := `
loglevel: "info"
logtoconsole: true
database: "` + filepath.ToSlash(filepath.Join(dir, "mediawatch.db")) + `"
debounce: 1s
throttle: 1s
` + extra
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommand_Prints(t *testing.T) {
	cfgPath := writeTestConfig(t, `
remotes:
  - name: "nas"
    server: "nas.local"
    username: "media"
    password: "secret"
`)

	out, err := execute(t, "config", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config command failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "nas.local") {
		t.Fatalf("expected printed YAML config, got:\n%s", out)
	}
	if strings.Contains(out, "secret") {
		t.Fatalf("password should be masked, got:\n%s", out)
	}
}

func TestConfigCommand_InvalidConfig(t *testing.T) {
	cfgPath := writeTestConfig(t, `
watch:
  - "/definitely/not/here"
`)

	_, err := execute(t, "config", "--config", cfgPath)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("expected validation failure message, got %v", err)
	}
}

func TestConfigCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "config", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRootsCommands(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	media := t.TempDir()

	out, err := execute(t, "roots", "add", media, "--config", cfgPath)
	if err != nil {
		t.Fatalf("roots add: %v\n%s", err, out)
	}

	if _, err := execute(t, "roots", "add", media, "--config", cfgPath); err == nil {
		t.Fatal("expected duplicate add to fail")
	}

	out, err = execute(t, "roots", "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("roots list: %v", err)
	}
	if !strings.Contains(out, media) || !strings.Contains(out, "never") {
		t.Fatalf("expected %s with no activity in:\n%s", media, out)
	}

	if _, err := execute(t, "roots", "remove", media, "--config", cfgPath); err != nil {
		t.Fatalf("roots remove: %v", err)
	}
	if _, err := execute(t, "roots", "remove", media, "--config", cfgPath); err == nil {
		t.Fatal("expected removing an unknown root to fail")
	}

	out, err = execute(t, "roots", "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("roots list: %v", err)
	}
	if strings.Contains(out, media) {
		t.Fatalf("expected %s to be gone:\n%s", media, out)
	}
}

func TestRootsAdd_NotADirectory(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := execute(t, "roots", "add", file, "--config", cfgPath); err == nil {
		t.Fatal("expected error adding a file")
	}
}

func TestWalkCommand_Local(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"tv", "films", ".cache"} {
		if err := os.Mkdir(filepath.Join(root, d), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	out, err := execute(t, "walk", root)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}

	want := filepath.Join(root, "films") + "\n" + filepath.Join(root, "tv") + "\n"
	if out != want {
		t.Fatalf("walk output = %q, want %q", out, want)
	}
}

func TestWalkCommand_UnknownRemote(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	_, err := execute(t, "walk", "/srv", "--remote", "nas", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "no remote named nas") {
		t.Fatalf("expected unknown remote error, got %v", err)
	}
}
