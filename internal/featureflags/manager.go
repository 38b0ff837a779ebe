// Package featureflags evaluates runtime toggles from FEATURE_FLAGS.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Known flags.
const (
	// ParallelUploads uploads a request's images concurrently, bounded by UPLOAD_CONCURRENCY.
	ParallelUploads = "parallel_uploads"
	// AdminSignup allows POST /api/auth/register.
	AdminSignup = "admin_signup"
)

// defaults apply when a flag is not configured.
var defaults = map[string]string{
	ParallelUploads: "off",
	AdminSignup:     "on",
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "parallel_uploads=on,admin_signup=off"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := normalize(parts[0])
		value := normalize(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a given admin.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic rollout by admin id, e.g. 25%)
func (m *Manager) Enabled(name string, adminID uint) bool {
	if m == nil {
		return defaults[normalize(name)] == "on"
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if strings.HasSuffix(value, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if adminID == 0 {
			return false
		}
		return rolloutBucket(name, adminID) < pct
	}

	return false
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return NewManager("").Raw()
	}
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one admin.
func (m *Manager) Snapshot(adminID uint) map[string]bool {
	if m == nil {
		return NewManager("").Snapshot(adminID)
	}
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, adminID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, adminID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), adminID)))
	return int(h.Sum32() % 100)
}
