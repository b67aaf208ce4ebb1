package parse

import "testing"

const showSystemAOS8 = `
System:
  Description:  Alcatel-Lucent Enterprise OS6860E-P24 8.7.354.R02 GA, December 06, 2021.,
  Object ID:    1.3.6.1.4.1.6486.801.1.1.2.1.11.1.7,
  Up Time:      12 days 3 hours 5 minutes and 30 seconds,
  Contact:      noc@example.com,
  Name:         sw-core-01,
  Location:     DC1 rack 4,
  Services:     78,
  Date & Time:  FRI OCT 17 2026 10:00:00 (CEST)
`

const showChassisAOS8 = `
Local Chassis ID 1 (Master)
  Model Name:                    OS6860E-P24,
  Module Type:                   0x6062202,
  Description:                   Chassis,
  Part Number:                   903740-90,
  Hardware Revision:             11,
  Serial Number:                 T2391234,
  Manufacture Date:              Jan 12 2020,
  Admin Status:                  POWER ON,
  Operational Status:            UP,
  MAC Address:                   2C:FA:A2:01:02:03
`

func TestParseFactsAOS8(t *testing.T) {
	f := ParseFacts(showSystemAOS8, showChassisAOS8, "")

	checks := []struct {
		field, got, want string
	}{
		{"Hostname", f.Hostname, "sw-core-01"},
		{"Model", f.Model, "OS6860E-P24"},
		{"Version", f.Version, "8.7.354.R02"},
		{"Serial", f.Serial, "T2391234"},
		{"PartNumber", f.PartNumber, "903740-90"},
		{"HardwareRevision", f.HardwareRevision, "11"},
		{"BaseMAC", f.BaseMAC, "2c:fa:a2:01:02:03"},
		{"Location", f.Location, "DC1 rack 4"},
		{"Contact", f.Contact, "noc@example.com"},
		{"ObjectID", f.ObjectID, "1.3.6.1.4.1.6486.801.1.1.2.1.11.1.7"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if f.UptimeSeconds != 1047930 {
		t.Errorf("UptimeSeconds = %d, want 1047930", f.UptimeSeconds)
	}
	if len(f.Issues) != 0 {
		t.Errorf("Issues = %v, want none", f.Issues)
	}
}

func TestParseFactsAOS6(t *testing.T) {
	system := `
System:
  Description:  Alcatel-Lucent OS6450-P24 6.7.2.R05 GA, January 10, 2019.,
  Up Time:      45d 02h 10m 05s,
  Name:         sw-edge-07,
`
	chassis := `
Chassis 1
  Module Type:                   OS6450-P24,
  Serial #:                      X123456,
  MAC Address:                   00:E0:B1:AA:BB:CC,
`
	f := ParseFacts(system, chassis, "")
	if f.Model != "OS6450-P24" {
		t.Errorf("Model = %q", f.Model)
	}
	if f.Serial != "X123456" {
		t.Errorf("Serial = %q", f.Serial)
	}
	if f.Version != "6.7.2.R05" {
		t.Errorf("Version = %q", f.Version)
	}
	if f.UptimeSeconds != 3895805 {
		t.Errorf("UptimeSeconds = %d, want 3895805", f.UptimeSeconds)
	}
}

func TestParseFactsIssues(t *testing.T) {
	system := `
  Description:  OmniSwitch engineering build,
  Up Time:      a long while,
`
	f := ParseFacts(system, "", "")
	if len(f.Issues) != 2 {
		t.Fatalf("Issues = %q, want uptime and version issues", f.Issues)
	}
}

func TestUptimeSeconds(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"12 days 3 hours 5 minutes and 30 seconds", 1047930, true},
		{"45d 02h 10m 05s", 3895805, true},
		{"1 day, 02:00:10", 93610, true},
		{"00:01:10", 70, true},
		{"5m", 300, true},
		{"3 hours", 10800, true},
		{"", 0, false},
		{"garbage", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := UptimeSeconds(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("UptimeSeconds(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
