package parse

import (
	"regexp"
	"strings"
)

var (
	// AOS 6: "Remote LLDP Agents on Local Slot/Port: 2/47,"
	// AOS 8: "Remote LLDP nearest-bridge Agents on Local Port 1/1/25:"
	lldpPortHeader = regexp.MustCompile(`^\s*Remote LLDP(?:\s+\S+)*\s+Agents on Local\s+(?:Slot/Port:\s*|Port\s+)([0-9]+(?:/[0-9]+)+)\s*[:,]?\s*$`)
	// AOS 8: "Chassis 78:24:af:01:02:03, Port 1016:"
	lldpChassisPort = regexp.MustCompile(`^\s*Chassis\s+([^,]+),\s*Port\s+(.+?):\s*$`)
	ipv4Anywhere    = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// LLDPNeighbor is one remote agent seen on a local port
type LLDPNeighbor struct {
	LocalPort         string `json:"local_port"`
	ChassisID         string `json:"chassis_id,omitempty"`
	PortID            string `json:"port_id,omitempty"`
	PortDescription   string `json:"port_description,omitempty"`
	SystemName        string `json:"system_name,omitempty"`
	SystemDescription string `json:"system_description,omitempty"`
	ManagementIP      string `json:"management_ip,omitempty"`
	Capabilities      string `json:"capabilities,omitempty"`
}

// LLDPNeighbors is the parsed show lldp remote-system view
type LLDPNeighbors struct {
	Neighbors []LLDPNeighbor `json:"neighbors"`
	Total     int            `json:"total"`
	Issues    []string       `json:"issues"`
}

// ParseLLDP parses show lldp remote-system [port P]. Each block opens with
// a local-port header; key = value lines fill in the remote agent.
func ParseLLDP(text string) *LLDPNeighbors {
	out := &LLDPNeighbors{Neighbors: []LLDPNeighbor{}, Issues: []string{}}
	var cur *LLDPNeighbor
	flush := func() {
		if cur != nil {
			out.Neighbors = append(out.Neighbors, *cur)
			cur = nil
		}
	}

	for _, l := range lines(text) {
		if m := lldpPortHeader.FindStringSubmatch(l); m != nil {
			flush()
			cur = &LLDPNeighbor{LocalPort: m[1]}
			continue
		}
		if cur == nil {
			continue
		}
		if m := lldpChassisPort.FindStringSubmatch(l); m != nil {
			// a second remote agent on the same local port starts a new record
			if cur.ChassisID != "" {
				local := cur.LocalPort
				flush()
				cur = &LLDPNeighbor{LocalPort: local}
			}
			cur.ChassisID = strings.TrimSpace(m[1])
			cur.PortID = strings.TrimSpace(m[2])
			continue
		}
		m := equalsKV.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		key := normKey(m[1])
		val := strings.Trim(strings.TrimSpace(m[2]), `"`)
		if val == "(null)" {
			val = ""
		}
		switch {
		case strings.HasPrefix(key, "chassis id") && !strings.Contains(key, "subtype"):
			cur.ChassisID = val
		case strings.HasPrefix(key, "port id") && !strings.Contains(key, "subtype"):
			cur.PortID = val
		case strings.HasPrefix(key, "port description"):
			cur.PortDescription = val
		case strings.HasPrefix(key, "system name"):
			cur.SystemName = val
		case strings.HasPrefix(key, "system description"):
			cur.SystemDescription = val
		case strings.Contains(key, "management ip address"), strings.Contains(key, "management address"):
			if ip := ipv4Anywhere.FindString(val); ip != "" {
				cur.ManagementIP = ip
			}
		case strings.HasPrefix(key, "capabilities enabled"), strings.HasPrefix(key, "capabilites enabled"):
			cur.Capabilities = val
		}
	}
	flush()

	out.Total = len(out.Neighbors)
	if out.Total == 0 && !blank(text) && strings.Contains(text, "=") {
		out.Issues = append(out.Issues, unrecognised("LLDP remote-system output", firstLine(text)))
	}
	return out
}
