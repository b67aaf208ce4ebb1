package parse

import (
	"regexp"
	"strings"
)

var (
	// VLAN  1098  70:4c:a5:50:45:ce  dynamic  bridging  1/1/24
	macRowDomain = regexp.MustCompile(`(?i)VLAN\s+(\d+)\s+([0-9a-f]{2}(?::[0-9a-f]{2}){5})\s+(dynamic|static)\s+\w+\s+(\S+)`)
	// 70:4c:a5:50:45:ce  1098  1/1/24  dynamic
	macRowLegacy = regexp.MustCompile(`(?i)([0-9a-f]{2}(?::[0-9a-f]{2}){5})\s+(\d+)\s+(\S+)\s+(dynamic|static)`)
	// 10.1.0.20  70:4c:a5:50:45:ce  1098  1/1/24
	arpRow = regexp.MustCompile(`(?i)(\d{1,3}(?:\.\d{1,3}){3})\s+([0-9a-f]{2}(?::[0-9a-f]{2}){5})\s+(\d+)\s+(\S+)`)
)

// MACEntry is one learned address
type MACEntry struct {
	MAC  string `json:"mac_address"`
	IP   string `json:"ip_address,omitempty"`
	VLAN int    `json:"vlan"`
	Port string `json:"port"`
	Type string `json:"type"`
}

// MACTable is a filtered, limited view of the forwarding or ARP table
type MACTable struct {
	Entries   []MACEntry `json:"entries"`
	Total     int        `json:"total_found"`
	Truncated bool       `json:"truncated"`
	Issues    []string   `json:"issues"`
}

func (t *MACTable) add(e MACEntry, vlan, limit int) {
	if vlan > 0 && e.VLAN != vlan {
		return
	}
	t.Total++
	if limit > 0 && len(t.Entries) >= limit {
		t.Truncated = true
		return
	}
	t.Entries = append(t.Entries, e)
}

// ParseMACTable parses show mac-learning output in the OS6860 domain layout
// and the older mac-first layout. vlan filters when non-zero; limit caps the
// returned entries when non-zero.
func ParseMACTable(text string, vlan, limit int) MACTable {
	t := MACTable{Entries: []MACEntry{}, Issues: []string{}}
	rows := 0
	for _, l := range lines(text) {
		if m := macRowDomain.FindStringSubmatch(l); m != nil {
			t.add(MACEntry{MAC: strings.ToLower(m[2]), VLAN: atoi(m[1]), Port: m[4], Type: strings.ToLower(m[3])}, vlan, limit)
		} else if m := macRowLegacy.FindStringSubmatch(l); m != nil {
			t.add(MACEntry{MAC: strings.ToLower(m[1]), VLAN: atoi(m[2]), Port: m[3], Type: strings.ToLower(m[4])}, vlan, limit)
		} else {
			continue
		}
		rows++
	}
	if unreadable(text, rows, "mac", "address", "type") {
		t.Issues = append(t.Issues, unrecognised("mac-learning table", firstLine(text)))
	}
	return t
}

// ParseARP parses show arp
func ParseARP(text string, limit int) MACTable {
	t := MACTable{Entries: []MACEntry{}, Issues: []string{}}
	for _, l := range lines(text) {
		if m := arpRow.FindStringSubmatch(l); m != nil {
			t.add(MACEntry{IP: m[1], MAC: strings.ToLower(m[2]), VLAN: atoi(m[3]), Port: m[4], Type: "arp"}, 0, limit)
		}
	}
	if unreadable(text, t.Total, "hardware", "addr") {
		t.Issues = append(t.Issues, unrecognised("ARP table", firstLine(text)))
	}
	return t
}
