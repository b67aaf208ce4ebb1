package parse

import (
	"reflect"
	"testing"
)

const showLinkAggOS6860 = `
Number  Aggregate     SNMP Id   Size Admin State  Oper State     Att/Sel Ports
-------+-------------+---------+----+------------+--------------+-------------
 1      Dynamic       40000001     8  ENABLED      UP              2   2
 2      Static        40000002     8  ENABLED      DOWN            0   0
 3      Dynamic       40000003     4  ENABLED      UP              3   2
`

func TestAuditLACP(t *testing.T) {
	lacp := `
System ID: 2c:fa:a2:01:02:03
System Priority: 32768
`
	a := AuditLACP(showLinkAggOS6860, lacp)

	if a.Total != 3 {
		t.Fatalf("Total = %d, want 3", a.Total)
	}
	if a.LAGs[0].Type != "lacp" || a.LAGs[1].Type != "static" {
		t.Errorf("types = %q/%q", a.LAGs[0].Type, a.LAGs[1].Type)
	}
	if a.LACP == nil || a.LACP.SystemID != "2c:fa:a2:01:02:03" || a.LACP.SystemPriority != 32768 {
		t.Errorf("LACP = %+v", a.LACP)
	}
	want := []string{
		"LAG 2 (Static): administratively enabled but operationally down",
		"LAG 3 (Dynamic): 1 port(s) attached but not selected",
		"LACP LAGs configured but LACP protocol not enabled",
	}
	if !reflect.DeepEqual(a.Issues, want) {
		t.Errorf("Issues = %q, want %q", a.Issues, want)
	}
}

func TestAuditLACPMembers(t *testing.T) {
	lacp := `
LACP Enabled
System ID: 2c:fa:a2:01:02:03
Agg  Port    Partner System      Partner Port
1    1/1/1   00:e0:b1:aa:bb:cc   1/1/49
1    1/1/2   00:e0:b1:aa:bb:cc   1/1/50
`
	a := AuditLACP(showLinkAggOS6860, lacp)
	if !a.LACP.Enabled {
		t.Error("LACP should be enabled")
	}
	want := []LACPPort{
		{AggID: 1, Port: "1/1/1", PartnerSystem: "00:e0:b1:aa:bb:cc", PartnerPort: "1/1/49"},
		{AggID: 1, Port: "1/1/2", PartnerSystem: "00:e0:b1:aa:bb:cc", PartnerPort: "1/1/50"},
	}
	if !reflect.DeepEqual(a.LAGs[0].Members, want) {
		t.Errorf("LAG 1 members = %+v, want %+v", a.LAGs[0].Members, want)
	}
	for _, issue := range a.Issues {
		if issue == "LACP LAGs configured but LACP protocol not enabled" {
			t.Error("unexpected LACP protocol issue")
		}
	}
}

func TestParseLinkAggLegacy(t *testing.T) {
	text := " 1    uplink-core  2     enabled     up         lacp      src-dst-mac\n"
	got := ParseLinkAgg(text)
	want := []LAG{{ID: 1, Name: "uplink-core", Size: 2, AdminState: "enabled", OperState: "up", Type: "lacp", Hash: "src-dst-mac"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseLinkAgg = %+v, want %+v", got, want)
	}
}

func TestAuditLACPUnrecognised(t *testing.T) {
	a := AuditLACP("link bundles: none reported\n", "")
	if len(a.Issues) != 1 {
		t.Errorf("Issues = %q, want one", a.Issues)
	}
}
