package hostkeys

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/ssh"
)

// line is one physical line of the file, with its terminator
type line struct {
	raw string

	// Set only when the line holds a parseable entry.
	marker  string
	hosts   []string
	key     ssh.PublicKey
	comment string

	// Byte offsets of the host field within raw.
	hostStart, hostEnd int
}

func splitLines(data []byte) []line {
	var out []line
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		var raw []byte
		if i < 0 {
			raw, data = data, nil
		} else {
			raw, data = data[:i+1], data[i+1:]
		}
		out = append(out, parseLine(string(raw)))
	}
	return out
}

func parseLine(raw string) line {
	l := line{raw: raw}
	body := strings.TrimRight(raw, "\r\n")
	trimmed := strings.TrimLeft(body, " \t")
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return l
	}

	marker, _, key, comment, _, err := ssh.ParseKnownHosts([]byte(body))
	if err != nil {
		return l
	}

	pos := len(body) - len(trimmed)
	if strings.HasPrefix(trimmed, "@") {
		end := strings.IndexAny(trimmed, " \t")
		if end < 0 {
			return l
		}
		rest := strings.TrimLeft(trimmed[end:], " \t")
		pos += len(trimmed) - len(rest)
		trimmed = rest
	}
	end := strings.IndexAny(trimmed, " \t")
	if end < 0 {
		return l
	}

	if marker != "" {
		marker = "@" + marker
	}
	l.marker = marker
	l.hosts = strings.Split(trimmed[:end], ",")
	l.key = key
	l.comment = comment
	l.hostStart, l.hostEnd = pos, pos+end
	return l
}

func (l line) parsed() bool {
	return l.key != nil
}

func (l line) eol() string {
	if strings.HasSuffix(l.raw, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// names reports whether any host field entry matches the normalised host
func (l line) names(name string) bool {
	for _, h := range l.hosts {
		if matchEntry(h, name) {
			return true
		}
	}
	return false
}

// without returns raw with name removed from the host field, or "" when no
// hosts would remain.
func (l line) without(name string) string {
	var keep []string
	for _, h := range l.hosts {
		if !matchEntry(h, name) {
			keep = append(keep, h)
		}
	}
	if len(keep) == 0 {
		return ""
	}
	return l.raw[:l.hostStart] + strings.Join(keep, ",") + l.raw[l.hostEnd:]
}

func matchEntry(entry, name string) bool {
	if IsHashed(entry) {
		return matchHashed(entry, name)
	}
	return entry == name
}

// matchHashed checks a |1|salt|hash entry the way OpenSSH does
func matchHashed(entry, name string) bool {
	parts := strings.Split(entry, "|")
	if len(parts) != 4 || parts[1] != "1" {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	mac := hmac.New(sha1.New, salt)
	mac.Write([]byte(name))
	return hmac.Equal(mac.Sum(nil), want)
}
