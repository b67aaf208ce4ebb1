// Package hostkeys maintains an OpenSSH known_hosts file.
//
// Edits preserve every unrelated line byte-for-byte, including comments,
// blank lines, marker lines and entries this package cannot parse. Writers
// serialise on a mutex and an advisory flock on <path>.lock, and replace the
// file atomically so concurrent readers never observe a partial write.
package hostkeys

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/sys/unix"

	"github.com/newtron-network/omnigate/pkg/util"
)

// Status is the outcome of checking a presented key
type Status int

const (
	Unknown Status = iota
	Trusted
	Mismatch
)

func (s Status) String() string {
	switch s {
	case Trusted:
		return "trusted"
	case Mismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Record is one parsed known_hosts entry
type Record struct {
	Marker  string        `json:"marker,omitempty"`
	Hosts   []string      `json:"hosts"`
	Key     ssh.PublicKey `json:"-"`
	Comment string        `json:"comment,omitempty"`
	Line    int           `json:"line"`
}

// Fingerprint returns the SHA256 fingerprint of the record's key
func (r Record) Fingerprint() string {
	return ssh.FingerprintSHA256(r.Key)
}

// Store is a known_hosts file
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a store backed by path, creating the parent directory if
// needed. A missing file is an empty store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, util.NewConfigError("ssh.known_hosts_file", "path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create known_hosts directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the file backing the store
func (s *Store) Path() string {
	return s.path
}

// Verify checks key against the entries for host ("host" or "host:port")
func (s *Store) Verify(host string, key ssh.PublicKey) (Status, error) {
	lines, err := s.read()
	if err != nil {
		return Unknown, err
	}
	name := knownhosts.Normalize(host)
	want := key.Marshal()

	status := Unknown
	for _, l := range lines {
		if !l.parsed() || !l.names(name) {
			continue
		}
		same := bytes.Equal(l.key.Marshal(), want)
		switch l.marker {
		case "":
			if same {
				return Trusted, nil
			}
			status = Mismatch
		case "@revoked":
			if same {
				return Mismatch, nil
			}
		}
	}
	return status, nil
}

// Records returns every parseable entry in file order
func (s *Store) Records() ([]Record, error) {
	lines, err := s.read()
	if err != nil {
		return nil, err
	}
	var out []Record
	for i, l := range lines {
		if !l.parsed() {
			continue
		}
		out = append(out, Record{
			Marker:  l.marker,
			Hosts:   append([]string(nil), l.hosts...),
			Key:     l.key,
			Comment: l.comment,
			Line:    i + 1,
		})
	}
	return out, nil
}

// Upsert records key as the only trusted key for host. The first line naming
// the host is rewritten in place, later mentions of the host are removed, and
// a new line is appended for a host not yet in the file.
func (s *Store) Upsert(host string, key ssh.PublicKey) error {
	entry := knownhosts.Line([]string{host}, key)
	_, err := s.rewrite(knownhosts.Normalize(host), entry)
	return err
}

// Remove deletes every entry for host and reports whether any existed
func (s *Store) Remove(host string) (bool, error) {
	return s.rewrite(knownhosts.Normalize(host), "")
}

func (s *Store) rewrite(name, entry string) (bool, error) {
	unlock, err := s.lock()
	if err != nil {
		return false, err
	}
	defer unlock()

	lines, err := s.read()
	if err != nil {
		return false, err
	}

	var buf bytes.Buffer
	found := false
	for _, l := range lines {
		if !l.parsed() || l.marker != "" || !l.names(name) {
			buf.WriteString(l.raw)
			continue
		}
		rest := l.without(name)
		if rest != "" {
			buf.WriteString(rest)
		}
		if !found && entry != "" {
			buf.WriteString(entry)
			buf.WriteString(l.eol())
		}
		found = true
	}
	if !found && entry != "" {
		if buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
		buf.WriteString(entry)
		buf.WriteByte('\n')
	}
	if !found && entry == "" {
		return false, nil
	}
	return found, s.replace(buf.Bytes())
}

func (s *Store) read() ([]line, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read known_hosts: %w", err)
	}
	return splitLines(data), nil
}

// lock takes the in-process mutex and the cross-process flock
func (s *Store) lock() (func(), error) {
	s.mu.Lock()
	f, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("open known_hosts lock: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		s.mu.Unlock()
		return nil, fmt.Errorf("lock known_hosts: %w", err)
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		s.mu.Unlock()
	}, nil
}

// replace writes data to a temp file in the same directory, fsyncs it and
// renames it over the store.
func (s *Store) replace(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp known_hosts: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write known_hosts: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod known_hosts: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync known_hosts: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close known_hosts: %w", err)
	}
	if err := os.Rename(name, s.path); err != nil {
		return fmt.Errorf("replace known_hosts: %w", err)
	}
	return nil
}

// HashHost returns the hashed form of host as written by ssh-keygen -H
func HashHost(host string) string {
	return knownhosts.HashHostname(knownhosts.Normalize(host))
}

// IsHashed reports whether a host field entry is hashed
func IsHashed(entry string) bool {
	return strings.HasPrefix(entry, "|1|")
}
