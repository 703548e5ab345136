// Package sessionid generates and caches the client-facing session
// identifier a daemon client attaches to every Query/CloseSession call, so
// the SessionManager can route a keystroke stream to the right Engine.
package sessionid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionIDLength is the length of generated session IDs in hex characters.
	SessionIDLength = 32
)

// sessionFilePathFunc is the function used to resolve session file paths.
// It can be overridden in tests.
var sessionFilePathFunc = defaultSessionFilePath

// GetSessionID returns a session ID for the current client process, reusing
// one already on disk for this pid if present, else generating and
// persisting a new one.
func GetSessionID() (string, error) {
	pid := os.Getpid()

	if sessionID, err := readSessionFile(pid); err == nil && sessionID != "" {
		return sessionID, nil
	}

	sessionID := generateLocalSessionID()

	// Ignore write error - session file is optional, we still have a valid id.
	_ = writeSessionFile(pid, sessionID)

	return sessionID, nil
}

// generateLocalSessionID derives a session ID from hostname + PID + timestamp
// + a uuid + container fingerprint, then hashes it down to SessionIDLength
// hex characters so every strategy (file, daemon debug output, logs) sees a
// fixed-width id regardless of which inputs were available.
func generateLocalSessionID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}

	pid := os.Getpid()
	timestamp := time.Now().UnixNano()
	random := uuid.New()
	containerFP := containerFingerprint()

	input := fmt.Sprintf("%s|%d|%d|%s|%s", hostname, pid, timestamp, random.String(), containerFP)

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:SessionIDLength/2])
}

// containerFingerprint returns a string identifying the container environment,
// or an empty string if not running in a container. This helps disambiguate
// session IDs when hostname and PID may collide across containers.
func containerFingerprint() string {
	if fp, ok := dockerFingerprint(); ok {
		return fp
	}
	if fp, ok := kubernetesFingerprint(); ok {
		return fp
	}
	return genericContainerFingerprint()
}

func dockerFingerprint() (string, bool) {
	if _, err := os.Stat("/.dockerenv"); err != nil {
		return "", false
	}
	if data, err := os.ReadFile("/proc/self/cgroup"); err == nil {
		if id := extractContainerIDFromCgroup(string(data)); id != "" {
			return "docker:" + id, true
		}
	}
	return "docker:unknown", true
}

func extractContainerIDFromCgroup(cgroup string) string {
	lines := strings.Split(cgroup, "\n")
	for _, line := range lines {
		if idx := strings.LastIndex(line, "/"); idx >= 0 {
			id := line[idx+1:]
			if len(id) >= 12 {
				return id[:12]
			}
		}
	}
	return ""
}

func kubernetesFingerprint() (string, bool) {
	if os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
		return "", false
	}
	podName := os.Getenv("HOSTNAME")
	if podName == "" {
		podName = "unknown"
	}
	return "k8s:" + podName, true
}

func genericContainerFingerprint() string {
	if val := os.Getenv("container"); val != "" {
		return "container:" + val
	}
	return ""
}

// GenerateLocalSessionIDWithInputs generates a session ID from specific inputs.
// This is exposed for testing to allow deterministic generation.
func GenerateLocalSessionIDWithInputs(hostname string, pid int, timestamp int64, random []byte) string {
	input := fmt.Sprintf("%s|%d|%d|%s", hostname, pid, timestamp, hex.EncodeToString(random))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:SessionIDLength/2])
}

// SessionFilePath returns the path to the session file for the given PID:
//   - $XDG_RUNTIME_DIR/suggestengine/session.$PID (preferred)
//   - /tmp/suggestengine-$UID/session.$PID (fallback)
func SessionFilePath(pid int) string {
	return sessionFilePathFunc(pid)
}

// defaultSessionFilePath is the default implementation of session file path resolution.
func defaultSessionFilePath(pid int) string {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "suggestengine", fmt.Sprintf("session.%d", pid))
	}

	uid := strconv.Itoa(os.Getuid())
	return filepath.Join("/tmp", "suggestengine-"+uid, fmt.Sprintf("session.%d", pid))
}

// readSessionFile reads the session ID from the session file for the given PID.
// Returns empty string and nil error if file doesn't exist.
// Returns error only for actual read failures.
func readSessionFile(pid int) (string, error) {
	path := SessionFilePath(pid)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read session file: %w", err)
	}

	sessionID := string(data)
	if sessionID == "" {
		return "", nil
	}

	return sessionID, nil
}

// writeSessionFile writes the session ID to the session file for the given PID.
// Creates the parent directory with 0700 permissions if it doesn't exist.
func writeSessionFile(pid int, sessionID string) error {
	path := SessionFilePath(pid)

	// Ensure parent directory exists with secure permissions (0700)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	// Write session file with secure permissions (0600)
	if err := os.WriteFile(path, []byte(sessionID), 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// CleanupSessionFile removes the session file for the given PID.
// This should be called when the shell session ends.
func CleanupSessionFile(pid int) error {
	path := SessionFilePath(pid)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}

	return nil
}
