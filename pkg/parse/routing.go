package parse

import (
	"fmt"
	"net"
	"regexp"
	"sort"
	"strings"
)

var (
	vrfRow      = regexp.MustCompile(`^\s*(\S+)\s+(\S+)(?:\s+(.*?))?\s*$`)
	routeTotal  = regexp.MustCompile(`(?i)Total\s+(\d+)\s+routes?`)
	ipv4Token   = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}$`)
	ospfStateRe = regexp.MustCompile(`(?i)^(full|2-?way|init|down|attempt|exstart|exchange|loading)(/\S+)?$`)

	// 10.2.0.0/24  10.1.0.2  01:02:03  OSPF
	routeRowCIDR = regexp.MustCompile(`^\s*\+?\s*(\d{1,3}(?:\.\d{1,3}){3}/\d{1,2})\s+(\S+)\s+(.*?)\s*([A-Za-z][A-Za-z-]*)\s*$`)
	// 10.2.0.0  255.255.255.0  10.1.0.2  01:02:03  OSPF
	routeRowMask = regexp.MustCompile(`^\s*\+?\s*(\d{1,3}(?:\.\d{1,3}){3})\s+(\d{1,3}(?:\.\d{1,3}){3})\s+(\S+)\s+(.*?)\s*([A-Za-z][A-Za-z-]*)\s*$`)
)

// VRF is one row of show vrf
type VRF struct {
	Name      string   `json:"name"`
	Profile   string   `json:"profile,omitempty"`
	Protocols []string `json:"protocols,omitempty"`
}

// Route is one IPv4 route
type Route struct {
	Destination string `json:"destination"`
	Gateway     string `json:"gateway"`
	Age         string `json:"age,omitempty"`
	Protocol    string `json:"protocol"`
}

// RouteTable is a filtered, limited view of show ip routes
type RouteTable struct {
	Total     int     `json:"total"`
	Returned  int     `json:"returned"`
	Truncated bool    `json:"truncated"`
	Routes    []Route `json:"routes"`
}

// OSPFInterface is one row of show ip ospf interface
type OSPFInterface struct {
	Name        string `json:"name"`
	Area        string `json:"area,omitempty"`
	DR          string `json:"dr,omitempty"`
	BDR         string `json:"bdr,omitempty"`
	AdminStatus string `json:"admin_status"`
	OperStatus  string `json:"oper_status"`
	State       string `json:"state,omitempty"`
}

// OSPFNeighbor is one row of show ip ospf neighbor
type OSPFNeighbor struct {
	RouterID  string `json:"router_id"`
	Address   string `json:"address"`
	Area      string `json:"area,omitempty"`
	Interface string `json:"interface,omitempty"`
	State     string `json:"state"`
	Type      string `json:"device_type,omitempty"`
}

// Full reports whether the adjacency is fully formed
func (n OSPFNeighbor) Full() bool {
	state, _, _ := strings.Cut(n.State, "/")
	return strings.EqualFold(state, "full")
}

// OSPF groups the OSPF views
type OSPF struct {
	Interfaces []OSPFInterface `json:"interfaces"`
	Neighbors  []OSPFNeighbor  `json:"neighbors"`
	Areas      []string        `json:"areas"`
}

// RoutingAudit is the combined routing report
type RoutingAudit struct {
	VRF    string     `json:"vrf"`
	VRFs   []VRF      `json:"vrfs"`
	Routes RouteTable `json:"routes"`
	OSPF   OSPF       `json:"ospf"`
	Issues []string   `json:"issues"`
}

// ParseVRFs parses show vrf
func ParseVRFs(text string) []VRF {
	out := []VRF{}
	for _, l := range lines(text) {
		t := strings.TrimSpace(l)
		if t == "" || isRule(l) || strings.HasPrefix(t, "Virtual Routers") || strings.HasPrefix(t, "Total Number") || strings.Contains(t, ":") {
			continue
		}
		m := vrfRow.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		v := VRF{Name: m[1], Profile: m[2]}
		if m[3] != "" {
			v.Protocols = strings.Fields(m[3])
		}
		out = append(out, v)
	}
	return out
}

// ParseRoutes parses show ip routes (CIDR destinations) and the older
// show ip route (destination plus subnet mask). protocol filters
// case-insensitively; limit caps the returned routes, 0 for no cap.
func ParseRoutes(text, protocol string, limit int) RouteTable {
	rt := RouteTable{Routes: []Route{}}
	counted := 0
	declared := -1

	for _, l := range lines(text) {
		if m := routeTotal.FindStringSubmatch(l); m != nil {
			declared = atoi(m[1])
			continue
		}
		var r Route
		if m := routeRowMask.FindStringSubmatch(l); m != nil {
			ones, _ := net.IPMask(net.ParseIP(m[2]).To4()).Size()
			r = Route{Destination: fmt.Sprintf("%s/%d", m[1], ones), Gateway: m[3], Age: m[4], Protocol: strings.ToUpper(m[5])}
		} else if m := routeRowCIDR.FindStringSubmatch(l); m != nil {
			r = Route{Destination: m[1], Gateway: m[2], Age: m[3], Protocol: strings.ToUpper(m[4])}
		} else {
			continue
		}
		counted++
		if protocol != "" && !strings.EqualFold(r.Protocol, protocol) {
			continue
		}
		if limit > 0 && len(rt.Routes) >= limit {
			rt.Truncated = true
			continue
		}
		rt.Routes = append(rt.Routes, r)
	}

	rt.Total = counted
	if declared >= 0 {
		rt.Total = declared
	}
	rt.Returned = len(rt.Routes)
	return rt
}

// ParseOSPFInterfaces parses show ip ospf interface. Columns are located by
// the admin status word; the two addresses before it are DR and BDR and an
// address-shaped field between name and DR is the area.
func ParseOSPFInterfaces(text string) []OSPFInterface {
	out := []OSPFInterface{}
	for _, l := range lines(text) {
		f := strings.Fields(l)
		if len(f) < 4 || isRule(l) {
			continue
		}
		admin := -1
		for i, tok := range f {
			lt := strings.ToLower(tok)
			if i > 0 && (lt == "enabled" || lt == "disabled") {
				admin = i
				break
			}
		}
		if admin < 0 || admin+1 >= len(f) {
			continue
		}
		oi := OSPFInterface{
			Name:        f[0],
			AdminStatus: strings.ToLower(f[admin]),
			OperStatus:  strings.ToLower(f[admin+1]),
		}
		if admin+2 < len(f) {
			oi.State = f[admin+2]
		}
		var addrs []string
		for _, tok := range f[1:admin] {
			if ipv4Token.MatchString(tok) {
				addrs = append(addrs, tok)
			}
		}
		if n := len(addrs); n >= 2 {
			oi.DR, oi.BDR = addrs[n-2], addrs[n-1]
			if n >= 3 {
				oi.Area = addrs[n-3]
			}
		}
		out = append(out, oi)
	}
	return out
}

// ParseOSPFNeighbors parses show ip ospf neighbor. The order of the address,
// area and router-id columns is taken from the header; the state column is
// recognised by its value.
func ParseOSPFNeighbors(text string) []OSPFNeighbor {
	order := []string{"address", "area", "router"}
	out := []OSPFNeighbor{}
	for _, l := range lines(text) {
		lower := strings.ToLower(l)
		if strings.Contains(lower, "router") && strings.Contains(lower, "area") {
			order = columnOrder(lower, map[string]string{
				"address": "ip address", "area": "area", "router": "router",
			})
			continue
		}
		f := strings.Fields(l)
		if len(f) < 3 || !ipv4Token.MatchString(f[0]) {
			continue
		}
		var ips []string
		n := OSPFNeighbor{}
		stateAt := -1
		for i, tok := range f {
			switch {
			case ipv4Token.MatchString(tok) && stateAt < 0:
				ips = append(ips, tok)
			case ospfStateRe.MatchString(tok) && stateAt < 0:
				n.State = tok
				stateAt = i
			case stateAt < 0:
				n.Interface = tok
			case n.Type == "":
				n.Type = tok
			}
		}
		if stateAt < 0 {
			continue
		}
		for i, col := range order {
			if i >= len(ips) {
				break
			}
			switch col {
			case "address":
				n.Address = ips[i]
			case "area":
				n.Area = ips[i]
			case "router":
				n.RouterID = ips[i]
			}
		}
		out = append(out, n)
	}
	return out
}

// columnOrder sorts column keys by where their label appears in header.
// Keys whose label is missing keep their relative order at the end.
func columnOrder(header string, labels map[string]string) []string {
	keys := []string{"address", "area", "router"}
	pos := func(k string) int {
		if i := strings.Index(header, labels[k]); i >= 0 {
			return i
		}
		return len(header) + 1
	}
	sort.SliceStable(keys, func(i, j int) bool { return pos(keys[i]) < pos(keys[j]) })
	return keys
}

// AuditRouting combines the VRF list, the routes of one VRF and the OSPF
// views. Every neighbor not in Full adjacency is an issue.
func AuditRouting(vrfs, routes, ospfInterfaces, ospfNeighbors, vrf, protocol string, limit int) *RoutingAudit {
	a := &RoutingAudit{
		VRF:    vrf,
		VRFs:   ParseVRFs(vrfs),
		Routes: ParseRoutes(routes, protocol, limit),
		OSPF: OSPF{
			Interfaces: ParseOSPFInterfaces(ospfInterfaces),
			Neighbors:  ParseOSPFNeighbors(ospfNeighbors),
			Areas:      []string{},
		},
		Issues: []string{},
	}
	if a.VRF == "" {
		a.VRF = "default"
	}

	areas := make(map[string]bool)
	for _, i := range a.OSPF.Interfaces {
		if i.Area != "" {
			areas[i.Area] = true
		}
	}
	for _, n := range a.OSPF.Neighbors {
		if n.Area != "" {
			areas[n.Area] = true
		}
		if !n.Full() {
			a.Issues = append(a.Issues, fmt.Sprintf("OSPF neighbor %s (%s) is %s, not Full", n.RouterID, n.Address, n.State))
		}
	}
	for area := range areas {
		a.OSPF.Areas = append(a.OSPF.Areas, area)
	}
	sort.Strings(a.OSPF.Areas)

	if unreadable(ospfInterfaces, len(a.OSPF.Interfaces), "status", "state") {
		a.Issues = append(a.Issues, unrecognised("OSPF interface table", firstLine(ospfInterfaces)))
	}
	if unreadable(ospfNeighbors, len(a.OSPF.Neighbors), "router", "state") {
		a.Issues = append(a.Issues, unrecognised("OSPF neighbor table", firstLine(ospfNeighbors)))
	}
	if a.Routes.Truncated {
		a.Issues = append(a.Issues, fmt.Sprintf("route list truncated to %d of %d routes", a.Routes.Returned, a.Routes.Total))
	}
	if a.Routes.Total == 0 && !blank(routes) && !routeTotal.MatchString(routes) {
		a.Issues = append(a.Issues, unrecognised("route table", firstLine(routes)))
	}
	return a
}
