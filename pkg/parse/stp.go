package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// 0  1/1/1  FORW  4  ROOT  DIS
	stpPortRow = regexp.MustCompile(`^\s*(\d+)\s+(\d+/\d+(?:/\d+)?|0/\d+)\s+([A-Za-z]+)\s+(\d+)\s+([A-Za-z]+)(?:\s+([A-Za-z]+))?`)
	// 10  ON  RSTP  32768 (0x8000)
	stpVLANRow = regexp.MustCompile(`(?i)^\s*(\d+)\s+(ON|OFF)\s+(\S+)\s+(\d+)`)
)

// STPMode is show spantree mode
type STPMode struct {
	RunningMode  string `json:"running_mode,omitempty"`
	Protocol     string `json:"protocol,omitempty"`
	PathCostMode string `json:"path_cost_mode,omitempty"`
	AutoVLANCont string `json:"auto_vlan_containment,omitempty"`
}

// STPBridge is the CIST (or per-VLAN instance) bridge view
type STPBridge struct {
	Enabled         bool   `json:"enabled"`
	Status          string `json:"status,omitempty"`
	Protocol        string `json:"protocol,omitempty"`
	Mode            string `json:"mode,omitempty"`
	Priority        int    `json:"priority,omitempty"`
	BridgeID        string `json:"bridge_id,omitempty"`
	DesignatedRoot  string `json:"designated_root,omitempty"`
	RootCost        int    `json:"root_cost"`
	RootPort        string `json:"root_port,omitempty"`
	IsRoot          bool   `json:"is_root"`
	TopologyChanges int    `json:"topology_changes"`
	TopologyAge     string `json:"topology_age,omitempty"`
	TopologyAgeSec  int64  `json:"topology_age_seconds"`
	LastTCPort      string `json:"last_tc_port,omitempty"`
	LastTCBridge    string `json:"last_tc_bridge,omitempty"`
	MaxAge          int    `json:"max_age,omitempty"`
	ForwardDelay    int    `json:"forward_delay,omitempty"`
	HelloTime       int    `json:"hello_time,omitempty"`
}

// STPPort is one port of the spanning tree port table
type STPPort struct {
	Instance  int    `json:"instance"`
	Port      string `json:"port"`
	OperState string `json:"oper_state"`
	PathCost  int    `json:"path_cost"`
	Role      string `json:"role"`
	LoopGuard string `json:"loop_guard,omitempty"`
}

// STPVLAN is one row of show spantree vlan
type STPVLAN struct {
	VLAN     int    `json:"vlan"`
	Enabled  bool   `json:"enabled"`
	Protocol string `json:"protocol"`
	Priority int    `json:"priority"`
}

// STPAudit is the combined spanning tree report
type STPAudit struct {
	Mode         *STPMode  `json:"mode,omitempty"`
	Bridge       STPBridge `json:"cist"`
	InstanceKind string    `json:"instance_kind"`
	Ports        []STPPort `json:"ports"`
	Issues       []string  `json:"issues"`
}

// ParseSTPMode parses show spantree mode
func ParseSTPMode(text string) *STPMode {
	kv := keyValues(text, colonKV)
	m := &STPMode{
		RunningMode:  kv["current running mode"],
		Protocol:     kv["current protocol"],
		PathCostMode: kv["path cost mode"],
		AutoVLANCont: kv["auto vlan containment"],
	}
	if *m == (STPMode{}) {
		return nil
	}
	return m
}

// ParseSTPCist parses show spantree cist (and show spantree vlan N, which
// uses the same labels). Timer lines may use ":" or "=".
func ParseSTPCist(text string) STPBridge {
	kv := keyValues(text, colonKV)
	for k, v := range keyValues(text, equalsKV) {
		if _, ok := kv[k]; !ok {
			kv[k] = v
		}
	}

	b := STPBridge{
		Status:         kv["spanning tree status"],
		Protocol:       kv["protocol"],
		Mode:           kv["mode"],
		BridgeID:       kv["bridge id"],
		DesignatedRoot: lookup(kv, "designated root", "cst designated root"),
		RootPort:       kv["root port"],
		TopologyAge:    kv["topology age"],
		LastTCPort:     kv["last tc rcvd port"],
		LastTCBridge:   kv["last tc rcvd bridge"],
		TopologyAgeSec: -1,
	}
	b.Enabled = enabled(b.Status)
	b.Priority, _ = leadingInt(kv["priority"])
	b.RootCost, _ = leadingInt(lookup(kv, "cost to root bridge", "cost to cst root"))
	b.TopologyChanges, _ = leadingInt(kv["topology changes"])
	b.MaxAge, _ = leadingInt(kv["max age"])
	b.ForwardDelay, _ = leadingInt(kv["forward delay"])
	b.HelloTime, _ = leadingInt(kv["hello time"])
	if b.TopologyAge != "" {
		if secs, ok := UptimeSeconds(b.TopologyAge); ok {
			b.TopologyAgeSec = secs
		}
	}
	b.IsRoot = b.BridgeID != "" && strings.EqualFold(b.BridgeID, b.DesignatedRoot)
	return b
}

// ParseSTPPorts parses show spantree cist ports and show spantree ports.
// The first column is an MSTI or a VLAN, as named by the header.
func ParseSTPPorts(text string) (kind string, ports []STPPort) {
	kind = "msti"
	ports = []STPPort{}
	for _, l := range lines(text) {
		if m := stpPortRow.FindStringSubmatch(l); m != nil {
			ports = append(ports, STPPort{
				Instance:  atoi(m[1]),
				Port:      m[2],
				OperState: strings.ToUpper(m[3]),
				PathCost:  atoi(m[4]),
				Role:      strings.ToUpper(m[5]),
				LoopGuard: m[6],
			})
			continue
		}
		tok := headerTokens(l)
		if tok["port"] && tok["vlan"] {
			kind = "vlan"
		}
	}
	return kind, ports
}

// ParseSTPVLANs parses show spantree vlan
func ParseSTPVLANs(text string) []STPVLAN {
	out := []STPVLAN{}
	for _, l := range lines(text) {
		m := stpVLANRow.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		out = append(out, STPVLAN{
			VLAN:     atoi(m[1]),
			Enabled:  strings.EqualFold(m[2], "ON"),
			Protocol: m[3],
			Priority: atoi(m[4]),
		})
	}
	return out
}

// AuditSTP combines the mode, bridge and port views. A port still in
// listening or learning after twice the forward delay is reported, as is any
// transitional port when the topology age is unknown.
func AuditSTP(mode, cist, ports string) *STPAudit {
	a := &STPAudit{Mode: ParseSTPMode(mode), Bridge: ParseSTPCist(cist), Issues: []string{}}
	a.InstanceKind, a.Ports = ParseSTPPorts(ports)
	if unreadable(ports, len(a.Ports), "port", "role") {
		a.Issues = append(a.Issues, unrecognised("spanning tree port table", firstLine(ports)))
	}

	if a.Bridge.Status == "" && !blank(cist) {
		a.Issues = append(a.Issues, unrecognised("spanning tree bridge output", firstLine(cist)))
	} else if a.Bridge.Status != "" && !a.Bridge.Enabled {
		a.Issues = append(a.Issues, "Spanning tree is disabled")
	}

	fwd := a.Bridge.ForwardDelay
	if fwd == 0 {
		fwd = 15
	}
	for _, p := range a.Ports {
		if p.OperState != "LIS" && p.OperState != "LRN" {
			continue
		}
		switch age := a.Bridge.TopologyAgeSec; {
		case age < 0:
			a.Issues = append(a.Issues, fmt.Sprintf("port %s is in %s and the topology age is unknown", p.Port, p.OperState))
		case age > int64(2*fwd):
			a.Issues = append(a.Issues, fmt.Sprintf("port %s stuck in %s: topology age %ds exceeds twice the forward delay (%ds)", p.Port, p.OperState, age, fwd))
		}
	}
	return a
}
