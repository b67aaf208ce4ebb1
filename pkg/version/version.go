// Package version carries build information stamped in at link time.
package version

import "strings"

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/newtron-network/omnigate/pkg/version.Version=v1.0.0 \
//	  -X github.com/newtron-network/omnigate/pkg/version.GitCommit=abc1234 \
//	  -X github.com/newtron-network/omnigate/pkg/version.BuildDate=2026-01-01T00:00:00Z"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a formatted version string for display.
func Info() string {
	return Version + " (" + GitCommit + ") built " + BuildDate
}

// SSHClientVersion is the identification string sent in the SSH handshake.
// RFC 4253 forbids spaces and '-' in the software version field.
func SSHClientVersion() string {
	v := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r < 0x21 || r > 0x7e {
			return '_'
		}
		return r
	}, Version)
	return "SSH-2.0-omnigate_" + v
}
