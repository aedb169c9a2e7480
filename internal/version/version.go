// Package version provides build-time metadata for the invoice gateway.
// The package variables are populated via -ldflags at build time.
package version

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
)

var (
	// Version is the semantic version or git commit hash.
	// Set via: -ldflags "-X requestinvoice/internal/version.Version=..."
	Version = "unknown"

	// BuildDate is the ISO 8601 UTC timestamp when the binary was built.
	BuildDate = "unknown"

	// GitCommit is the git commit SHA of the source code.
	GitCommit = "unknown"
)

// Info holds build metadata and per-process identity.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns build metadata. Instance ID and hostname are computed on
// first call and cached for the lifetime of the process.
func GetInfo() Info {
	once.Do(func() {
		info = Info{
			Version:    Version,
			GitCommit:  GitCommit,
			BuildDate:  BuildDate,
			InstanceID: uuid.New().String(),
			Hostname:   hostname(),
		}
	})
	return info
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("requestinvoice version %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
}

// Attrs returns the fields attached to every log record.
func (i Info) Attrs() []any {
	return []any{
		slog.String("version", i.Version),
		slog.String("git_commit", i.GitCommit),
		slog.String("instance_id", i.InstanceID),
	}
}
