package hostkeys

import (
	"fmt"
	"net"

	"golang.org/x/crypto/ssh"

	"github.com/newtron-network/omnigate/pkg/util"
)

// KeyError is returned by a strict callback for an unknown or changed key
type KeyError struct {
	Host        string
	Status      Status
	Fingerprint string
}

func (e *KeyError) Error() string {
	if e.Status == Mismatch {
		return fmt.Sprintf("host key for %s does not match known_hosts (presented %s)", e.Host, e.Fingerprint)
	}
	return fmt.Sprintf("host key for %s is not in known_hosts (presented %s)", e.Host, e.Fingerprint)
}

// Callback returns an ssh.HostKeyCallback backed by the store. In strict
// mode unknown and changed keys are rejected with a *KeyError; otherwise
// they are recorded and logged.
func (s *Store) Callback(strict bool) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		status, err := s.Verify(hostname, key)
		if err != nil {
			return err
		}
		if status == Trusted {
			return nil
		}

		fp := ssh.FingerprintSHA256(key)
		if strict {
			return &KeyError{Host: hostname, Status: status, Fingerprint: fp}
		}

		if err := s.Upsert(hostname, key); err != nil {
			return fmt.Errorf("record host key for %s: %w", hostname, err)
		}
		entry := util.WithTarget(hostname).WithFields(map[string]interface{}{
			"fingerprint": fp,
			"type":        key.Type(),
		})
		if status == Mismatch {
			entry.Warn("Host key changed, replaced known_hosts entry")
		} else {
			entry.Info("Recorded new host key")
		}
		return nil
	}
}
