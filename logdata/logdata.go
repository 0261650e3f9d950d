// logdata/logdata.go
package logdata

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// OpenLogFile makes sure dir exists and is a directory, then creates a new
// log file in it named after today's date plus a random suffix so restarts
// on the same day never clobber each other.
func OpenLogFile(dir string) (string, *os.File, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("could not get absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(absPath, 0755); err != nil {
				return "", nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		} else {
			return "", nil, fmt.Errorf("error accessing path: %w", err)
		}
	} else if !info.IsDir() {
		return "", nil, fmt.Errorf("log destination exists but is not a directory: %s", absPath)
	}

	timestamp := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s_%s.log", timestamp, generateRandomHex(3))

	logFile := filepath.Join(absPath, filename)
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create log file: %w", err)
	}

	return logFile, f, nil
}

func generateRandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "randerr"
	}
	return hex.EncodeToString(b)
}
