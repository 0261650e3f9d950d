package logdata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpenLogFile_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")

	path, f, err := OpenLogFile(dir)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	defer f.Close()

	if filepath.Dir(path) != dir {
		t.Errorf("Expected log file in %s, got %s", dir, path)
	}
	if !strings.HasPrefix(filepath.Base(path), time.Now().Format("20060102")+"_") {
		t.Errorf("Expected dated file name, got %s", filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Log file not created: %v", err)
	}
}

func TestOpenLogFile_UniqueNames(t *testing.T) {
	dir := t.TempDir()

	p1, f1, err := OpenLogFile(dir)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	defer f1.Close()
	p2, f2, err := OpenLogFile(dir)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	defer f2.Close()

	if p1 == p2 {
		t.Errorf("Expected distinct log files, both were %s", p1)
	}
}

func TestOpenLogFile_DestinationIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := OpenLogFile(file); err == nil {
		t.Fatal("Expected error when destination is a file")
	}
}
