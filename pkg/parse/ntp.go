package parse

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var (
	ntpNotSynced = regexp.MustCompile(`(?i)not\s+synchroni[sz]ed|unsynchroni[sz]ed|sync\w*\s*[:=]?\s*no\b`)
	ntpSynced    = regexp.MustCompile(`(?i)synchroni[sz]ed|sync\w*\s*[:=]?\s*yes\b`)
	// 10.1.0.200  synchronized  2  2.5  255  *
	ntpServerRow = regexp.MustCompile(`(?i)^\s*(\*)?\s*(\d{1,3}(?:\.\d{1,3}){3})\s+(synchronized|reachable|unreachable|inactive|candidate|rejected)\s+(\d+)\s+([\d.]+)\s+(\d+)(?:\s+(\*))?`)
)

// NTPStatus is show ntp status
type NTPStatus struct {
	Synchronized     bool    `json:"synchronized"`
	Mode             string  `json:"mode,omitempty"`
	Stratum          int     `json:"stratum"`
	Reference        string  `json:"reference,omitempty"`
	OffsetMS         float64 `json:"offset_ms"`
	RootDelayMS      float64 `json:"root_delay_ms"`
	RootDispersionMS float64 `json:"root_dispersion_ms"`
	Recognised       bool    `json:"-"`
}

// NTPServer is one configured server
type NTPServer struct {
	Address   string  `json:"ip"`
	Status    string  `json:"status"`
	Stratum   int     `json:"stratum"`
	DelayMS   float64 `json:"delay_ms"`
	Reach     int     `json:"reachability"`
	Preferred bool    `json:"preferred"`
}

// NTPAudit is the combined NTP report
type NTPAudit struct {
	Status  NTPStatus   `json:"status"`
	Servers []NTPServer `json:"servers,omitempty"`
	Issues  []string    `json:"issues"`
}

// ParseNTPStatus parses show ntp status. Labels vary between releases
// ("Stratum:" vs "Stratum = "), so both separators are accepted.
func ParseNTPStatus(text string) NTPStatus {
	kv := keyValues(text, colonKV)
	for k, v := range keyValues(text, equalsKV) {
		if _, ok := kv[k]; !ok {
			kv[k] = v
		}
	}

	s := NTPStatus{}
	for _, l := range lines(text) {
		if ntpNotSynced.MatchString(l) {
			s.Synchronized = false
			s.Recognised = true
			break
		}
		if ntpSynced.MatchString(l) {
			s.Synchronized = true
			s.Recognised = true
		}
	}
	s.Mode = strings.ToLower(lookup(kv, "mode", "client mode"))
	if n, ok := leadingInt(kv["stratum"]); ok {
		s.Stratum = n
		s.Recognised = true
	}
	s.Reference = lookup(kv, "reference", "server reference", "reference id", "reference ip", "peer")
	s.OffsetMS, _ = leadingFloat(lookup(kv, "offset", "clock offset"))
	s.RootDelayMS, _ = leadingFloat(kv["root delay"])
	s.RootDispersionMS, _ = leadingFloat(kv["root dispersion"])
	return s
}

// ParseNTPServers parses show ntp client server-list. A leading or trailing
// asterisk marks the preferred server.
func ParseNTPServers(text string) []NTPServer {
	out := []NTPServer{}
	for _, l := range lines(text) {
		m := ntpServerRow.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		out = append(out, NTPServer{
			Address:   m[2],
			Status:    strings.ToLower(m[3]),
			Stratum:   atoi(m[4]),
			DelayMS:   atof(m[5]),
			Reach:     atoi(m[6]),
			Preferred: m[1] == "*" || m[7] == "*",
		})
	}
	return out
}

// AuditNTP combines the status and, when given, the server list
func AuditNTP(status, servers string) *NTPAudit {
	a := &NTPAudit{Status: ParseNTPStatus(status), Issues: []string{}}
	s := a.Status

	if !s.Recognised && !blank(status) {
		a.Issues = append(a.Issues, unrecognised("NTP status output", firstLine(status)))
	} else {
		if !s.Synchronized {
			a.Issues = append(a.Issues, "NTP is not synchronized")
		}
		if s.Stratum >= 16 {
			a.Issues = append(a.Issues, fmt.Sprintf("NTP stratum %d is unsynchronised (16 or more)", s.Stratum))
		}
		if math.Abs(s.OffsetMS) > 100 {
			a.Issues = append(a.Issues, fmt.Sprintf("NTP offset %.1f ms exceeds 100 ms", s.OffsetMS))
		}
	}

	if !blank(servers) {
		a.Servers = ParseNTPServers(servers)
		if len(a.Servers) == 0 {
			a.Issues = append(a.Issues, "no NTP servers configured")
		}
		for _, srv := range a.Servers {
			switch {
			case srv.Status == "unreachable":
				a.Issues = append(a.Issues, fmt.Sprintf("NTP server %s is unreachable", srv.Address))
			case srv.Reach < 128:
				a.Issues = append(a.Issues, fmt.Sprintf("NTP server %s has poor reachability (%d)", srv.Address, srv.Reach))
			}
			if srv.DelayMS > 100 {
				a.Issues = append(a.Issues, fmt.Sprintf("NTP server %s delay %.1f ms exceeds 100 ms", srv.Address, srv.DelayMS))
			}
		}
	}
	return a
}
