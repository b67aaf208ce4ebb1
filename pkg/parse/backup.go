package parse

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/newtron-network/omnigate/pkg/util"
)

// Backup is a captured running configuration
type Backup struct {
	Config            string   `json:"config"`
	SizeBytes         int      `json:"size_bytes"`
	Lines             int      `json:"lines"`
	SHA256            string   `json:"sha256"`
	SuggestedFilename string   `json:"suggested_filename"`
	Issues            []string `json:"issues"`
}

// ParseBackup wraps write terminal output with a digest and a file name
// built from host and the capture time.
func ParseBackup(host, text string, at time.Time) *Backup {
	sum := sha256.Sum256([]byte(text))
	b := &Backup{
		Config:            text,
		SizeBytes:         len(text),
		SHA256:            hex.EncodeToString(sum[:]),
		SuggestedFilename: fmt.Sprintf("%s_%s.cfg", util.SanitizeName(host), at.UTC().Format("20060102T150405Z")),
		Issues:            []string{},
	}
	if text != "" {
		b.Lines = strings.Count(strings.TrimRight(text, "\n"), "\n") + 1
	}
	if blank(text) {
		b.Issues = append(b.Issues, "configuration output is empty")
	}
	return b
}

// Raw is the record returned for an ad-hoc show command
type Raw struct {
	Command    string   `json:"command"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr,omitempty"`
	ExitStatus int      `json:"exit_status"`
	Issues     []string `json:"issues"`
}

// ParseRaw wraps command output unchanged. A non-zero exit status or an AOS
// "ERROR:" line is reported as an issue.
func ParseRaw(command, stdout, stderr string, exit int) *Raw {
	r := &Raw{Command: command, Stdout: stdout, Stderr: stderr, ExitStatus: exit, Issues: []string{}}
	if exit != 0 {
		r.Issues = append(r.Issues, fmt.Sprintf("command exited with status %d", exit))
	}
	for _, l := range lines(stdout + "\n" + stderr) {
		if strings.HasPrefix(strings.TrimSpace(l), "ERROR:") {
			r.Issues = append(r.Issues, strings.TrimSpace(l))
			break
		}
	}
	return r
}
