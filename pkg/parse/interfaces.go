package parse

import (
	"regexp"
	"strings"
)

var (
	// 1/1/4  en  en  1000  Full  -  DIS  Auto  Auto  -  AUTO  en  dis
	ifStatusRow = regexp.MustCompile(`^\s*(\d+/\d+(?:/\d+)?[A-Z]?)\s+(en|dis|enable|disable)\s+(\S+)\s+(\S+)\s+(\S+)`)
	// "Rx :" / "Tx :" section markers in show interfaces port
	ifDirection = regexp.MustCompile(`(?i)^\s*(Rx|Tx)\s*:?\s*$`)
	ifCounter   = regexp.MustCompile(`(?i)(Bytes\s+Received|Bytes\s+Xmitted|CRC\s+Error\s+Frames|Unicast\s+Frames|Broadcast\s+Frames|M-cast\s+Frames|Error\s+Frames|Lost\s+Frames|Collided\s+Frames)\s*:\s*(\d+)`)
	ifDuplex    = regexp.MustCompile(`(?i)Duplex\s*:\s*(\w+)`)
)

// InterfaceStatus is one row of show interfaces status
type InterfaceStatus struct {
	Port       string `json:"port_id"`
	AdminState string `json:"admin_state"`
	AutoNeg    bool   `json:"auto_neg"`
	Speed      string `json:"speed,omitempty"`
	Duplex     string `json:"duplex,omitempty"`
	OperState  string `json:"oper_state"`
}

// InterfaceList is the parsed show interfaces status table
type InterfaceList struct {
	Interfaces []InterfaceStatus `json:"interfaces"`
	Total      int               `json:"total"`
	Up         int               `json:"up"`
	Down       int               `json:"down"`
	Disabled   int               `json:"admin_disabled"`
	Issues     []string          `json:"issues"`
}

// InterfaceDetail is show interfaces port P
type InterfaceDetail struct {
	Port       string         `json:"port_id"`
	Type       string         `json:"interface_type,omitempty"`
	SFP        string         `json:"sfp,omitempty"`
	MAC        string         `json:"mac_address,omitempty"`
	AdminState string         `json:"admin_state"`
	OperState  string         `json:"oper_state"`
	Speed      string         `json:"speed,omitempty"`
	Duplex     string         `json:"duplex,omitempty"`
	Rx         map[string]int `json:"rx,omitempty"`
	Tx         map[string]int `json:"tx,omitempty"`
	Issues     []string       `json:"issues"`
}

// ParseInterfaceStatus parses show interfaces status. A speed of "-" means
// the link is down.
func ParseInterfaceStatus(text string, includeInactive bool) *InterfaceList {
	out := &InterfaceList{Interfaces: []InterfaceStatus{}, Issues: []string{}}
	for _, l := range lines(text) {
		m := ifStatusRow.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		st := InterfaceStatus{
			Port:       m[1],
			AdminState: adminWord(m[2]),
			AutoNeg:    enabled(m[3]),
			OperState:  "up",
		}
		if m[4] == "-" {
			st.OperState = "down"
		} else if strings.Trim(m[4], "0123456789") == "" {
			st.Speed = m[4] + "Mbps"
		} else {
			st.Speed = m[4]
		}
		if m[5] != "-" {
			st.Duplex = m[5]
		}

		out.Total++
		if st.AdminState == "disabled" {
			out.Disabled++
		}
		if st.OperState == "up" {
			out.Up++
		} else {
			out.Down++
			if !includeInactive {
				continue
			}
		}
		out.Interfaces = append(out.Interfaces, st)
	}
	if out.Total == 0 && !blank(text) {
		out.Issues = append(out.Issues, unrecognised("interface status table", firstLine(text)))
	}
	return out
}

// ParseInterfaceDetail parses show interfaces port P. Counters are split
// into the Rx and Tx sections they appear under.
func ParseInterfaceDetail(port, text string) *InterfaceDetail {
	d := &InterfaceDetail{Port: port, AdminState: "unknown", OperState: "unknown", Issues: []string{}}
	kv := keyValues(text, colonKV)

	d.Type = lookup(kv, "interface type", "type")
	d.SFP = lookup(kv, "sfp/xfp", "sfp")
	d.MAC = strings.ToLower(kv["mac address"])
	if s := lookup(kv, "admin state", "admin status"); s != "" {
		d.AdminState = adminWord(s)
	}
	if s := lookup(kv, "operational status", "link state", "oper status"); s != "" {
		d.OperState = operWord(s)
	}
	if s := lookup(kv, "bandwidth (megabits)", "speed"); s != "" {
		d.Speed = strings.TrimRight(strings.Fields(s)[0], ",")
	}
	if m := ifDuplex.FindStringSubmatch(text); m != nil {
		d.Duplex = m[1]
	}

	section := ""
	for _, l := range lines(text) {
		if m := ifDirection.FindStringSubmatch(l); m != nil {
			section = strings.ToLower(m[1])
			continue
		}
		for _, m := range ifCounter.FindAllStringSubmatch(l, -1) {
			name := normKey(m[1])
			dir := section
			switch name {
			case "bytes received":
				dir, name = "rx", "bytes"
			case "bytes xmitted":
				dir, name = "tx", "bytes"
			}
			name = strings.ReplaceAll(strings.TrimSuffix(name, " frames"), "-", "")
			switch dir {
			case "rx":
				if d.Rx == nil {
					d.Rx = map[string]int{}
				}
				d.Rx[name] = atoi(m[2])
			case "tx":
				if d.Tx == nil {
					d.Tx = map[string]int{}
				}
				d.Tx[name] = atoi(m[2])
			}
		}
	}

	if d.Rx["error"] > 0 || d.Tx["error"] > 0 {
		d.Issues = append(d.Issues, "error frames counted on port "+port)
	}
	if d.AdminState == "unknown" && d.OperState == "unknown" && !blank(text) {
		d.Issues = append(d.Issues, unrecognised("interface detail output", firstLine(text)))
	}
	return d
}
