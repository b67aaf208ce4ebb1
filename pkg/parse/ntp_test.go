package parse

import (
	"reflect"
	"testing"
)

const showNTPStatus = `
Current time:                   FRI, OCT 17 2026 10:00:00.123 (UTC),
Last NTP update:                FRI, OCT 17 2026 09:59:00.000 (UTC),
Synchronization status:         synchronized,
Server reference:               10.1.0.200,
Client mode:                    enabled,
Stratum:                        3,
Offset:                         0.512 ms,
Root delay:                     2.100 ms,
Root dispersion:                5.250 ms
`

const showNTPServers = `
Server IP         Status         Stratum  Delay(ms)  Reachability  Preferred
---------------+--------------+--------+----------+-------------+----------
10.1.0.200        synchronized   2        2.5        255           *
10.1.0.201        reachable      3        150.0      64
10.1.0.202        unreachable    16       0.0        0
`

func TestParseNTPStatus(t *testing.T) {
	s := ParseNTPStatus(showNTPStatus)
	want := NTPStatus{
		Synchronized:     true,
		Mode:             "enabled",
		Stratum:          3,
		Reference:        "10.1.0.200",
		OffsetMS:         0.512,
		RootDelayMS:      2.1,
		RootDispersionMS: 5.25,
		Recognised:       true,
	}
	if s != want {
		t.Errorf("ParseNTPStatus = %+v, want %+v", s, want)
	}
}

func TestAuditNTP(t *testing.T) {
	a := AuditNTP(showNTPStatus, showNTPServers)

	if len(a.Servers) != 3 || !a.Servers[0].Preferred || a.Servers[1].Preferred {
		t.Errorf("Servers = %+v", a.Servers)
	}
	want := []string{
		"NTP server 10.1.0.201 has poor reachability (64)",
		"NTP server 10.1.0.201 delay 150.0 ms exceeds 100 ms",
		"NTP server 10.1.0.202 is unreachable",
	}
	if !reflect.DeepEqual(a.Issues, want) {
		t.Errorf("Issues = %q, want %q", a.Issues, want)
	}
}

func TestAuditNTPNotSynchronized(t *testing.T) {
	status := `
Synchronization status:  not synchronized,
Stratum:                 16,
Offset:                  -250.000 ms
`
	a := AuditNTP(status, "")
	want := []string{
		"NTP is not synchronized",
		"NTP stratum 16 is unsynchronised (16 or more)",
		"NTP offset -250.0 ms exceeds 100 ms",
	}
	if !reflect.DeepEqual(a.Issues, want) {
		t.Errorf("Issues = %q, want %q", a.Issues, want)
	}
	if a.Servers != nil {
		t.Errorf("Servers = %+v, want nil without a server list", a.Servers)
	}
}

func TestAuditNTPNoServers(t *testing.T) {
	a := AuditNTP(showNTPStatus, "No NTP servers configured\n")
	want := []string{"no NTP servers configured"}
	if !reflect.DeepEqual(a.Issues, want) {
		t.Errorf("Issues = %q, want %q", a.Issues, want)
	}
}
