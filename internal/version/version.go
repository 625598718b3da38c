// Package version identifies the running govuk-mcp build. The same Info is
// reported to MCP clients during initialization, on the health endpoint, in
// every log record and as the OpenTelemetry service version.
//
// Release builds stamp the variables below with -ldflags, for example
//
//	-X govukmcp/internal/version.Version=v1.4.0
package version

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Name is the server name advertised to MCP clients.
const Name = "govuk-mcp"

var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

type Info struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"` // distinguishes replicas in logs and traces
	Hostname   string `json:"hostname"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns the build metadata of this process. The instance id is
// generated once per process.
func GetInfo() Info {
	once.Do(func() {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		info = Info{
			Name:       Name,
			Version:    Version,
			GitCommit:  GitCommit,
			BuildDate:  BuildDate,
			InstanceID: uuid.New().String(),
			Hostname:   hostname,
		}
	})
	return info
}

// UserAgent is the product token sent to the government APIs when no user
// agent is configured, e.g. "govuk-mcp/v1.4.0".
func (i Info) UserAgent() string {
	return Name + "/" + i.Version
}

// String is the -version output.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", Name, i.Version, i.GitCommit, i.BuildDate)
}
