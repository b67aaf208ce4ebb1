package parse

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	relayFromIface = regexp.MustCompile(`(?i)From\s+Interface\s+(\S+)\s+to\s+Server\s+(\d{1,3}(?:\.\d{1,3}){3})`)
	relayServerIP  = regexp.MustCompile(`(?i)Server\s+IP\s+Address\s*=\s*(\d{1,3}(?:\.\d{1,3}){3})`)
	relayVLANLine  = regexp.MustCompile(`(?i)^\s*(?:Vlan|Interface)\s*[:=]?\s*(\S+?),?\s*$`)

	dhcpPackets = regexp.MustCompile(`(?i)DHCP\s+(\w+)\s+Packets?\s*[:=]\s*(\d+)`)
	dhcpTotal   = regexp.MustCompile(`(?i)(Reception From Client|Tx Server|Forw Delay|Max Hops|Agent Info|Invalid Gateway)[^=]*Total\s+Count\s*=\s*(\d+)`)
)

// RelayInterface is the server list behind one relay interface
type RelayInterface struct {
	Interface string   `json:"interface"`
	Servers   []string `json:"servers"`
}

// DHCPRelay is the relay configuration
type DHCPRelay struct {
	AdminEnabled bool             `json:"admin_enabled"`
	ForwardDelay int              `json:"forward_delay_s"`
	MaxHops      int              `json:"max_hops"`
	Option82     bool             `json:"option82"`
	PXE          bool             `json:"pxe"`
	RelayMode    string           `json:"relay_mode,omitempty"`
	Interfaces   []RelayInterface `json:"interfaces"`
}

// DHCPCounters are the relay packet counters keyed by lower-case packet type
type DHCPCounters struct {
	Packets map[string]int `json:"packets"`
	Totals  map[string]int `json:"totals,omitempty"`
}

// DHCPAudit is the combined DHCP relay report
type DHCPAudit struct {
	Relay    DHCPRelay     `json:"relay"`
	Counters *DHCPCounters `json:"counters,omitempty"`
	Issues   []string      `json:"issues"`
}

// ParseDHCPRelay parses show ip dhcp-relay interface (AOS 8) and
// show ip helper (AOS 6)
func ParseDHCPRelay(text string) DHCPRelay {
	r := DHCPRelay{Interfaces: []RelayInterface{}}
	kv := keyValues(text, equalsKV)

	sawAdmin := false
	for k, v := range kv {
		switch {
		case k == "admin status" || k == "dhcp relay admin status":
			r.AdminEnabled = enabled(v)
			sawAdmin = true
		case strings.HasPrefix(k, "forward delay"):
			r.ForwardDelay, _ = leadingInt(v)
		case strings.HasPrefix(k, "max") && strings.Contains(k, "hops"):
			r.MaxHops, _ = leadingInt(v)
		case strings.Contains(k, "agent information"):
			r.Option82 = enabled(v)
		case strings.HasPrefix(k, "pxe"):
			r.PXE = enabled(v)
		case k == "relay mode":
			r.RelayMode = v
		}
	}

	index := make(map[string]int)
	add := func(iface, server string) {
		i, ok := index[iface]
		if !ok {
			r.Interfaces = append(r.Interfaces, RelayInterface{Interface: iface})
			i = len(r.Interfaces) - 1
			index[iface] = i
		}
		r.Interfaces[i].Servers = append(r.Interfaces[i].Servers, server)
	}

	current := "global"
	for _, l := range lines(text) {
		if m := relayFromIface.FindStringSubmatch(l); m != nil {
			add(m[1], m[2])
			continue
		}
		if m := relayServerIP.FindStringSubmatch(l); m != nil {
			add(current, m[1])
			continue
		}
		if m := relayVLANLine.FindStringSubmatch(l); m != nil && !strings.Contains(l, "=") {
			current = m[1]
		}
	}
	if !sawAdmin {
		r.AdminEnabled = len(r.Interfaces) > 0
	}
	return r
}

// ParseDHCPCounters parses show ip dhcp-relay counters and the AOS 6
// statistics view
func ParseDHCPCounters(text string) *DHCPCounters {
	c := &DHCPCounters{Packets: map[string]int{}}
	for _, l := range lines(text) {
		if m := dhcpPackets.FindStringSubmatch(l); m != nil {
			c.Packets[strings.ToLower(m[1])] += atoi(m[2])
			continue
		}
		if m := dhcpTotal.FindStringSubmatch(l); m != nil {
			if c.Totals == nil {
				c.Totals = map[string]int{}
			}
			c.Totals[normKey(m[1])] += atoi(m[2])
		}
	}
	return c
}

// AuditDHCPRelay combines the relay configuration with optional counters
func AuditDHCPRelay(relay, counters string) *DHCPAudit {
	a := &DHCPAudit{Relay: ParseDHCPRelay(relay), Issues: []string{}}
	if !a.Relay.AdminEnabled {
		a.Issues = append(a.Issues, "DHCP relay is disabled")
	}
	if len(a.Relay.Interfaces) == 0 {
		a.Issues = append(a.Issues, "no DHCP relay interfaces configured")
	}
	sort.SliceStable(a.Relay.Interfaces, func(i, j int) bool {
		return a.Relay.Interfaces[i].Interface < a.Relay.Interfaces[j].Interface
	})

	if blank(counters) {
		return a
	}
	a.Counters = ParseDHCPCounters(counters)
	p := a.Counters.Packets
	if req := p["request"]; req > 0 {
		if rate := float64(p["nack"]) / float64(req) * 100; rate > 5 {
			a.Issues = append(a.Issues, fmt.Sprintf("DHCP NACK rate %.1f%% exceeds 5%%", rate))
		}
	}
	if d := p["decline"]; d > 100 {
		a.Issues = append(a.Issues, fmt.Sprintf("%d DHCP declines (possible address conflicts)", d))
	}
	if disc := p["discover"]; disc > 1000 {
		if rate := float64(p["offer"]) / float64(disc) * 100; rate < 90 {
			a.Issues = append(a.Issues, fmt.Sprintf("DHCP offer rate %.1f%% is below 90%% of %d discovers", rate, disc))
		}
	}
	return a
}
