package workcache

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"lukechampine.com/blake3"
)

// Kind classifies a tracked entry.
type Kind string

const (
	KindFile   Kind = "file"
	KindBinary Kind = "binary"
	// KindSetting is a non-file input such as a destination or compiler flags.
	KindSetting Kind = "setting"
)

// Method names how an entry's fingerprint is computed.
type Method string

const (
	MethodDate         Method = "date"
	MethodFileWithDate Method = "file+date"
	// MethodValue entries carry their value as the fingerprint.
	MethodValue Method = "value"
)

// Entry is one tracked input or output.
type Entry struct {
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"`
	Method      Method `json:"method"`
	Fingerprint string `json:"fingerprint"`
}

// DigestOnlyDate fingerprints path by modification time.
func DigestOnlyDate(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return formatTime(fi.ModTime()), nil
}

// DigestFileWithDate fingerprints path by blake3 content hash and modification time.
func DigestFileWithDate(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is a tracked build input
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return "", err
	}
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)) + "@" + formatTime(fi.ModTime()), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
