package parse

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// VLAN table dialects
const (
	DialectAOS8    = "aos8"
	DialectAOS6    = "aos6"
	DialectUnknown = "unknown"
)

var (
	// 10  std  Ena  Ena  Dis  1500  users
	vlanRowAOS8 = regexp.MustCompile(`^\s*(\d+)\s+(\w+)\s+(Ena|Dis)\s+(Ena|Dis)\s+(Ena|Dis)\s+(\d+)\s*(.*?)\s*$`)
	// 10  std  on  off  on  on  off  on  off  off  on  users
	vlanRowAOS6 = regexp.MustCompile(`^\s*(\d+)\s+(\w+)((?:\s+(?:on|off|ON|OFF)){2,})\s*(.*?)\s*$`)
	vlanRowAny  = regexp.MustCompile(`^\s*(\d{1,4})\s+(.*?)\s*$`)

	// vlan  port  type  status; the port column is absent in "show vlan port P"
	vlanMemberRow = regexp.MustCompile(`^\s*(\d+)\s+(?:(\d+/\d+(?:/\d+)?)\s+)?([A-Za-z][\w-]*)\s+([A-Za-z][\w-]*)\s*$`)
)

// AOS 6 on/off column order after vlan and type
var aos6Columns = []string{"admin", "oper", "1x1", "flat", "auth", "ip", "ipx", "tag", "lrn"}

var suspiciousVLANNames = []string{"test", "temp", "old", "unused", "ne pas", "poubelle", "toto"}

// VLANMember is a port's membership in a VLAN
type VLANMember struct {
	VLAN   int    `json:"vlan"`
	Port   string `json:"port"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// VLAN is one row of the VLAN table, enriched with membership and STP state
type VLAN struct {
	ID         int          `json:"vlan_id"`
	Name       string       `json:"name"`
	Type       string       `json:"type,omitempty"`
	AdminState string       `json:"admin_state,omitempty"`
	OperState  string       `json:"oper_state,omitempty"`
	IPRouting  bool         `json:"ip_routing"`
	MTU        int          `json:"mtu,omitempty"`
	Members    []VLANMember `json:"members,omitempty"`
	STPEnabled *bool        `json:"stp_enabled,omitempty"`
}

// VLANList is the parsed show vlan table
type VLANList struct {
	Dialect string   `json:"dialect"`
	VLANs   []VLAN   `json:"vlans"`
	Issues  []string `json:"issues"`
}

// VLANDetail is the show vlan N view
type VLANDetail struct {
	Name         string `json:"name,omitempty"`
	Type         string `json:"type,omitempty"`
	AdminState   string `json:"admin_state,omitempty"`
	OperState    string `json:"oper_state,omitempty"`
	IPRouting    bool   `json:"ip_routing"`
	MTU          int    `json:"mtu,omitempty"`
	MACTunneling bool   `json:"mac_tunneling"`
}

// VLANSummary counts VLANs by state and type
type VLANSummary struct {
	Total         int `json:"total"`
	Enabled       int `json:"enabled"`
	Disabled      int `json:"disabled"`
	Operational   int `json:"operational"`
	Down          int `json:"down"`
	WithIPRouting int `json:"with_ip_routing"`
	Std           int `json:"std"`
	VCM           int `json:"vcm"`
}

// VLANAudit is the combined VLAN report
type VLANAudit struct {
	Dialect string      `json:"dialect"`
	VLANs   []VLAN      `json:"vlans"`
	Summary VLANSummary `json:"summary"`
	Detail  *VLANDetail `json:"detail,omitempty"`
	Issues  []string    `json:"issues"`
}

func adminWord(s string) string {
	if enabled(s) {
		return "enabled"
	}
	return "disabled"
}

func operWord(s string) string {
	if enabled(s) {
		return "up"
	}
	return "down"
}

// ParseVLANs parses show vlan. The dialect is chosen from the header line;
// rows under an unrecognised header are read leniently and one issue names
// the header.
func ParseVLANs(text string) *VLANList {
	v := &VLANList{Dialect: DialectUnknown, VLANs: []VLAN{}, Issues: []string{}}
	header := ""

	for _, l := range lines(text) {
		if blank(l) || isRule(l) {
			continue
		}
		if !vlanRowAny.MatchString(l) {
			tok := headerTokens(l)
			switch {
			case hasAll(tok, "vlan", "type", "admin", "oper", "ip", "mtu", "name"):
				v.Dialect = DialectAOS8
			case hasAll(tok, "vlan", "1x1", "flat"), hasAll(tok, "vlan", "stree"):
				v.Dialect = DialectAOS6
			case tok["vlan"] || header == "":
				if header == "" {
					header = l
				}
			}
			continue
		}

		var (
			vlan VLAN
			ok   bool
		)
		switch v.Dialect {
		case DialectAOS8:
			vlan, ok = vlanFromAOS8(l)
		case DialectAOS6:
			vlan, ok = vlanFromAOS6(l)
		default:
			vlan, ok = vlanLenient(l)
		}
		if !ok {
			vlan, ok = vlanLenient(l)
		}
		if ok {
			v.VLANs = append(v.VLANs, vlan)
		}
	}

	if v.Dialect == DialectUnknown && !blank(text) {
		if header == "" {
			header = firstLine(text)
		}
		v.Issues = append(v.Issues, fmt.Sprintf("%s; %d rows parsed leniently", unrecognised("VLAN table header", header), len(v.VLANs)))
	}
	return v
}

func vlanFromAOS8(l string) (VLAN, bool) {
	m := vlanRowAOS8.FindStringSubmatch(l)
	if m == nil {
		return VLAN{}, false
	}
	return VLAN{
		ID:         atoi(m[1]),
		Type:       strings.ToLower(m[2]),
		AdminState: adminWord(m[3]),
		OperState:  operWord(m[4]),
		IPRouting:  enabled(m[5]),
		MTU:        atoi(m[6]),
		Name:       m[7],
	}, true
}

func vlanFromAOS6(l string) (VLAN, bool) {
	m := vlanRowAOS6.FindStringSubmatch(l)
	if m == nil {
		return VLAN{}, false
	}
	states := strings.Fields(m[3])
	col := make(map[string]string, len(states))
	for i, s := range states {
		if i < len(aos6Columns) {
			col[aos6Columns[i]] = s
		}
	}
	vlan := VLAN{
		ID:         atoi(m[1]),
		Type:       strings.ToLower(m[2]),
		AdminState: adminWord(col["admin"]),
		OperState:  operWord(col["oper"]),
		IPRouting:  enabled(col["ip"]),
		Name:       m[4],
	}
	if s1, sf := col["1x1"], col["flat"]; s1 != "" || sf != "" {
		on := enabled(s1) || enabled(sf)
		vlan.STPEnabled = &on
	}
	return vlan, true
}

// vlanLenient takes the id, the first word as type, the first two state
// words as admin and oper, and what follows the last state or number as
// the name.
func vlanLenient(l string) (VLAN, bool) {
	m := vlanRowAny.FindStringSubmatch(l)
	if m == nil {
		return VLAN{}, false
	}
	vlan := VLAN{ID: atoi(m[1])}
	fields := strings.Fields(m[2])
	var states []string
	nameFrom := 0
	for i, f := range fields {
		lf := strings.ToLower(f)
		switch {
		case lf == "ena" || lf == "dis" || lf == "on" || lf == "off" || lf == "enabled" || lf == "disabled" || lf == "up" || lf == "down":
			states = append(states, f)
			nameFrom = i + 1
		case firstInt.FindString(f) == f:
			if vlan.MTU == 0 && atoi(f) >= 576 {
				vlan.MTU = atoi(f)
			}
			nameFrom = i + 1
		case i == 0:
			vlan.Type = lf
			nameFrom = 1
		}
	}
	if len(states) > 0 {
		vlan.AdminState = adminWord(states[0])
	}
	if len(states) > 1 {
		vlan.OperState = operWord(states[1])
	}
	if nameFrom < len(fields) {
		vlan.Name = strings.Join(fields[nameFrom:], " ")
	}
	return vlan, true
}

// ParseVLANMembers parses show vlan members and show vlan port P. For the
// latter, which has no port column, defaultPort fills it in.
func ParseVLANMembers(text, defaultPort string) []VLANMember {
	out := []VLANMember{}
	for _, l := range lines(text) {
		m := vlanMemberRow.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		port := m[2]
		if port == "" {
			port = defaultPort
		}
		out = append(out, VLANMember{
			VLAN:   atoi(m[1]),
			Port:   port,
			Type:   strings.ToLower(m[3]),
			Status: strings.ToLower(m[4]),
		})
	}
	return out
}

// ParseVLANDetail parses show vlan N
func ParseVLANDetail(text string) *VLANDetail {
	kv := keyValues(text, colonKV)
	if len(kv) == 0 {
		return nil
	}
	d := &VLANDetail{
		Name:         kv["name"],
		Type:         kv["type"],
		IPRouting:    enabled(kv["ip routing"]),
		MACTunneling: enabled(kv["mac tunneling"]),
	}
	if s := lookup(kv, "administrative state", "admin state"); s != "" {
		d.AdminState = adminWord(s)
	}
	if s := lookup(kv, "operational state", "oper state"); s != "" {
		d.OperState = operWord(s)
	}
	if n, ok := leadingInt(lookup(kv, "ip mtu", "mtu")); ok {
		d.MTU = n
	}
	return d
}

// AuditVLANs combines the VLAN table with membership, per-VLAN spanning
// tree state and an optional single-VLAN detail. Members and spantree may be
// empty, in which case the checks that need them are skipped.
func AuditVLANs(vlans, members, spantree, detail string) *VLANAudit {
	list := ParseVLANs(vlans)
	a := &VLANAudit{Dialect: list.Dialect, VLANs: list.VLANs, Issues: list.Issues}

	haveMembers := !blank(members)
	byVLAN := make(map[int][]VLANMember)
	for _, m := range ParseVLANMembers(members, "") {
		byVLAN[m.VLAN] = append(byVLAN[m.VLAN], m)
	}

	haveSTP := !blank(spantree)
	stp := make(map[int]bool)
	for _, s := range ParseSTPVLANs(spantree) {
		stp[s.VLAN] = s.Enabled
	}

	for i := range a.VLANs {
		v := &a.VLANs[i]
		if haveMembers {
			v.Members = byVLAN[v.ID]
		}
		if on, ok := stp[v.ID]; ok {
			v.STPEnabled = &on
		}
	}
	sort.SliceStable(a.VLANs, func(i, j int) bool { return a.VLANs[i].ID < a.VLANs[j].ID })

	s := &a.Summary
	for _, v := range a.VLANs {
		s.Total++
		switch v.AdminState {
		case "enabled":
			s.Enabled++
		case "disabled":
			s.Disabled++
		}
		switch v.OperState {
		case "up":
			s.Operational++
		case "down":
			s.Down++
		}
		if v.IPRouting {
			s.WithIPRouting++
		}
		switch v.Type {
		case "std":
			s.Std++
		case "vcm":
			s.VCM++
		}

		label := fmt.Sprintf("VLAN %d (%s)", v.ID, v.Name)
		if v.AdminState == "enabled" && v.OperState == "down" {
			a.Issues = append(a.Issues, label+": Enabled but operationally down")
		}
		if v.ID == 1 && v.AdminState == "enabled" {
			a.Issues = append(a.Issues, "VLAN 1: Default VLAN is enabled - consider disabling if unused")
		}
		if strings.TrimSpace(v.Name) == "" {
			a.Issues = append(a.Issues, fmt.Sprintf("VLAN %d: no name configured", v.ID))
		} else if w := suspiciousWord(v.Name); w != "" {
			a.Issues = append(a.Issues, fmt.Sprintf("%s: suspicious name (contains %q)", label, w))
		}
		if v.STPEnabled != nil && !*v.STPEnabled && (haveSTP || a.Dialect == DialectAOS6) {
			a.Issues = append(a.Issues, label+": spanning tree disabled")
		}
		if haveMembers && len(v.Members) == 0 {
			a.Issues = append(a.Issues, label+": no member ports")
		}
	}

	if !blank(detail) {
		a.Detail = ParseVLANDetail(detail)
		if a.Detail == nil {
			a.Issues = append(a.Issues, unrecognised("VLAN detail output", firstLine(detail)))
		}
	}
	return a
}

func suspiciousWord(name string) string {
	lower := strings.ToLower(name)
	for _, w := range suspiciousVLANNames {
		if strings.Contains(lower, w) {
			return w
		}
	}
	return ""
}
