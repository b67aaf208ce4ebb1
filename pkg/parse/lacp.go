package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// 5  Dynamic  40000005  2  ENABLED  UP  2  2
	lagRowOS6860 = regexp.MustCompile(`^\s*(\d+)\s+(\S+)\s+\d+\s+(\d+)\s+(ENABLED|DISABLED)\s+(UP|DOWN)\s+(\d+)\s+(\d+)`)
	// 1  uplink-core  2  enabled  up  lacp  src-dst-mac
	lagRowLegacy = regexp.MustCompile(`(?i)^\s*(\d+)\s+(\S+)\s+(\d+)\s+(enabled|disabled)\s+(up|down)\s+(lacp|static)\s+(\S+)`)

	lacpSystemID = regexp.MustCompile(`(?i)System\s+(?:ID|MAC)\s*:\s*([0-9a-f]{2}(?::[0-9a-f]{2}){5})`)
	lacpPriority = regexp.MustCompile(`(?i)System\s+Priority\s*:\s*(\d+)`)
	lacpEnabled  = regexp.MustCompile(`(?i)LACP\s+(Enabled|Active)`)
	// 1  1/1/1  00:e0:b1:aa:bb:cc  1/1/49
	lacpPortRow = regexp.MustCompile(`(?i)^\s*(\d+)\s+(\d+/\d+(?:/\d+)?)\s+([0-9a-f]{2}(?::[0-9a-f]{2}){5})\s+(\S+)`)
)

// LAG is one link aggregate
type LAG struct {
	ID            int        `json:"agg_id"`
	Name          string     `json:"name"`
	Size          int        `json:"size"`
	AdminState    string     `json:"admin_state"`
	OperState     string     `json:"oper_state"`
	Type          string     `json:"type"`
	Hash          string     `json:"hash_algorithm,omitempty"`
	AttachedPorts int        `json:"attached_ports"`
	SelectedPorts int        `json:"selected_ports"`
	Members       []LACPPort `json:"members,omitempty"`
}

// LACPPort is a LACP member with its partner
type LACPPort struct {
	AggID         int    `json:"agg_id"`
	Port          string `json:"port"`
	PartnerSystem string `json:"partner_system"`
	PartnerPort   string `json:"partner_port"`
}

// LACPState is show lacp
type LACPState struct {
	Enabled        bool       `json:"lacp_enabled"`
	SystemID       string     `json:"system_id,omitempty"`
	SystemPriority int        `json:"system_priority,omitempty"`
	Ports          []LACPPort `json:"ports"`
}

// LACPAudit is the combined link aggregation report
type LACPAudit struct {
	LAGs   []LAG      `json:"lags"`
	Total  int        `json:"total_lags"`
	LACP   *LACPState `json:"lacp,omitempty"`
	Issues []string   `json:"issues"`
}

// ParseLinkAgg parses show linkagg in the OS6860 and the older layout
func ParseLinkAgg(text string) []LAG {
	out := []LAG{}
	for _, l := range lines(text) {
		if m := lagRowOS6860.FindStringSubmatch(l); m != nil {
			lag := LAG{
				ID:            atoi(m[1]),
				Name:          m[2],
				Size:          atoi(m[3]),
				AdminState:    strings.ToLower(m[4]),
				OperState:     strings.ToLower(m[5]),
				Type:          "static",
				AttachedPorts: atoi(m[6]),
				SelectedPorts: atoi(m[7]),
			}
			if strings.Contains(strings.ToLower(lag.Name), "dynamic") {
				lag.Type = "lacp"
			}
			out = append(out, lag.named())
			continue
		}
		if m := lagRowLegacy.FindStringSubmatch(l); m != nil {
			out = append(out, LAG{
				ID:         atoi(m[1]),
				Name:       m[2],
				Size:       atoi(m[3]),
				AdminState: strings.ToLower(m[4]),
				OperState:  strings.ToLower(m[5]),
				Type:       strings.ToLower(m[6]),
				Hash:       m[7],
			}.named())
		}
	}
	return out
}

func (l LAG) named() LAG {
	if l.Name == "" || l.Name == "---" {
		l.Name = fmt.Sprintf("agg%d", l.ID)
	}
	return l
}

// ParseLACP parses show lacp
func ParseLACP(text string) *LACPState {
	s := &LACPState{Ports: []LACPPort{}}
	for _, l := range lines(text) {
		if m := lacpSystemID.FindStringSubmatch(l); m != nil {
			s.SystemID = strings.ToLower(m[1])
		}
		if m := lacpPriority.FindStringSubmatch(l); m != nil {
			s.SystemPriority = atoi(m[1])
		}
		if lacpEnabled.MatchString(l) {
			s.Enabled = true
		}
		if m := lacpPortRow.FindStringSubmatch(l); m != nil {
			s.Ports = append(s.Ports, LACPPort{
				AggID:         atoi(m[1]),
				Port:          m[2],
				PartnerSystem: strings.ToLower(m[3]),
				PartnerPort:   m[4],
			})
		}
	}
	return s
}

// AuditLACP combines show linkagg with the optional show lacp output
func AuditLACP(linkagg, lacp string) *LACPAudit {
	a := &LACPAudit{LAGs: ParseLinkAgg(linkagg), Issues: []string{}}
	a.Total = len(a.LAGs)

	if !blank(lacp) {
		a.LACP = ParseLACP(lacp)
		byAgg := make(map[int][]LACPPort)
		for _, p := range a.LACP.Ports {
			byAgg[p.AggID] = append(byAgg[p.AggID], p)
		}
		for i := range a.LAGs {
			a.LAGs[i].Members = byAgg[a.LAGs[i].ID]
		}
	}

	lacpLAGs := 0
	for _, lag := range a.LAGs {
		label := fmt.Sprintf("LAG %d (%s)", lag.ID, lag.Name)
		if lag.Type == "lacp" {
			lacpLAGs++
		}
		if lag.AdminState == "enabled" && lag.OperState == "down" {
			a.Issues = append(a.Issues, label+": administratively enabled but operationally down")
		}
		if lag.AttachedPorts > lag.SelectedPorts {
			a.Issues = append(a.Issues, fmt.Sprintf("%s: %d port(s) attached but not selected", label, lag.AttachedPorts-lag.SelectedPorts))
		}
	}
	if a.LACP != nil && lacpLAGs > 0 && !a.LACP.Enabled && len(a.LACP.Ports) == 0 {
		a.Issues = append(a.Issues, "LACP LAGs configured but LACP protocol not enabled")
	}
	if a.Total == 0 && !blank(linkagg) && !strings.Contains(strings.ToLower(linkagg), "agg") {
		a.Issues = append(a.Issues, unrecognised("linkagg table", firstLine(linkagg)))
	}
	return a
}
