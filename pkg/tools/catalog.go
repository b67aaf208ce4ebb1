package tools

import (
	"fmt"
	"strconv"
	"time"

	"github.com/newtron-network/omnigate/pkg/parse"
)

const (
	backupTimeout     = 60 * time.Second
	tracerouteTimeout = 90 * time.Second
)

// withIssues appends the failures of optional steps to a record's issues
func withIssues(issues []string, out *Outputs) []string {
	return append(issues, out.Issues()...)
}

func catalog() []*Operation {
	return []*Operation{
		{
			Name:        "aos.cli.readonly",
			Description: "Run a single read-only CLI command and return its raw output",
			Params: params(
				Param{Name: "command", Type: ParamString, Required: true, Description: "CLI command, e.g. show vlan"},
				Param{Name: "timeout_s", Type: ParamInteger, Description: "Command timeout in seconds (1-300)"},
			),
			newArgs: func() args { return &readonlyArgs{} },
			plan: func(x args, _ *Env) Plan {
				a := x.(*readonlyArgs)
				return Plan{Steps: []Step{{Key: "command", Command: a.Command, Timeout: time.Duration(a.TimeoutS) * time.Second}}}
			},
			parse: func(x args, out *Outputs, _ *Env) any {
				a := x.(*readonlyArgs)
				res, _ := out.Result("command")
				return parse.ParseRaw(a.Command, res.Stdout, res.Stderr, res.ExitStatus)
			},
		},
		{
			Name:        "aos.diag.ping",
			Description: "Ping a destination from the switch and summarise loss and round-trip times",
			Params: params(
				Param{Name: "destination", Type: ParamString, Required: true, Description: "IPv4 address or hostname to ping"},
				Param{Name: "count", Type: ParamInteger, Description: "Echo requests to send (1-20)"},
			),
			newArgs: func() args { return &pingArgs{} },
			plan: func(x args, env *Env) Plan {
				a := x.(*pingArgs)
				cmd := expand(env.Templates.Ping, map[string]string{"destination": a.Destination})
				if a.Count > 0 {
					cmd += " count " + strconv.Itoa(a.Count)
				}
				return Plan{Steps: []Step{{Key: "ping", Command: cmd}}}
			},
			parse: func(x args, out *Outputs, _ *Env) any {
				return parse.ParsePing(x.(*pingArgs).Destination, out.Stdout("ping"))
			},
		},
		{
			Name:        "aos.diag.traceroute",
			Description: "Trace the path from the switch to a destination",
			Params: params(
				Param{Name: "destination", Type: ParamString, Required: true, Description: "IPv4 address or hostname"},
				Param{Name: "max_hops", Type: ParamInteger, Description: "Maximum hops (1-64)"},
			),
			newArgs: func() args { return &tracerouteArgs{} },
			plan: func(x args, env *Env) Plan {
				a := x.(*tracerouteArgs)
				cmd := expand(env.Templates.Traceroute, map[string]string{"destination": a.Destination})
				if a.MaxHops > 0 {
					cmd += " max-hop " + strconv.Itoa(a.MaxHops)
				}
				return Plan{Steps: []Step{{Key: "traceroute", Command: cmd, Timeout: tracerouteTimeout}}}
			},
			parse: func(x args, out *Outputs, _ *Env) any {
				return parse.ParseTraceroute(x.(*tracerouteArgs).Destination, out.Stdout("traceroute"))
			},
		},
		{
			Name:        "aos.diag.poe",
			Description: "Show PoE budget and per-port power draw for a slot",
			Params: params(
				Param{Name: "slot", Type: ParamInteger, Description: "Chassis slot number (default 1)"},
			),
			newArgs: func() args { return &poeSlotArgs{} },
			plan: func(x args, _ *Env) Plan {
				a := x.(*poeSlotArgs)
				return Plan{Steps: []Step{{Key: "lanpower", Command: fmt.Sprintf("show lanpower slot %d/1", a.Slot)}}}
			},
			parse: func(_ args, out *Outputs, _ *Env) any {
				return parse.ParsePoE(out.Stdout("lanpower"))
			},
		},
		{
			Name:        "aos.poe.restart",
			Description: "Power-cycle a PoE port: disable, wait, then enable",
			Write:       true,
			Params: params(
				Param{Name: "port_id", Type: ParamString, Required: true, Description: "Port, e.g. 1/1/12"},
				Param{Name: "wait_seconds", Type: ParamInteger, Description: "Seconds to keep power off (0-60, default 5)"},
			),
			newArgs: func() args { return &poeRestartArgs{} },
			plan: func(x args, _ *Env) Plan {
				a := x.(*poeRestartArgs)
				return Plan{
					Steps: []Step{
						{Key: "disable", Command: fmt.Sprintf("lanpower port %s admin-state disable", a.PortID)},
						{Key: "enable", Command: fmt.Sprintf("lanpower port %s admin-state enable", a.PortID),
							Pause: time.Duration(a.WaitSeconds) * time.Second},
					},
					Write:        true,
					PartialState: fmt.Sprintf("port %s was left disabled", a.PortID),
				}
			},
			parse: func(x args, out *Outputs, _ *Env) any {
				return newPoERestart(x.(*poeRestartArgs), out)
			},
		},
		{
			Name:        "aos.device.facts",
			Description: "Identify the switch: name, model, serial, AOS version and uptime",
			Params:      params(),
			newArgs:     func() args { return &targetArgs{} },
			plan: func(args, *Env) Plan {
				var p Plan
				p.add("system", "show system").add("chassis", "show chassis").optional("hardware", "show hardware-info")
				return p
			},
			parse: func(_ args, out *Outputs, _ *Env) any {
				f := parse.ParseFacts(out.Stdout("system"), out.Stdout("chassis"), out.Stdout("hardware"))
				f.Issues = withIssues(f.Issues, out)
				return f
			},
		},
		{
			Name:        "aos.port.info",
			Description: "Show status, speed and counters of one port",
			Params: params(
				Param{Name: "port_id", Type: ParamString, Required: true, Description: "Port, e.g. 1/1/1"},
			),
			newArgs: func() args { return &portArgs{} },
			plan: func(x args, _ *Env) Plan {
				var p Plan
				p.add("interface", "show interfaces port "+x.(*portArgs).PortID)
				return p
			},
			parse: func(x args, out *Outputs, _ *Env) any {
				return parse.ParseInterfaceDetail(x.(*portArgs).PortID, out.Stdout("interface"))
			},
		},
		{
			Name:        "aos.port.discover",
			Description: "Collect everything about one port: status, VLANs, MACs, LLDP neighbor and PoE",
			Params: params(
				Param{Name: "port_id", Type: ParamString, Required: true, Description: "Port, e.g. 1/1/1"},
			),
			newArgs: func() args { return &portArgs{} },
			plan: func(x args, _ *Env) Plan {
				port := x.(*portArgs).PortID
				p := Plan{Parallel: true}
				p.add("interface", "show interfaces port "+port).
					optional("vlan", "show vlan port "+port).
					optional("mac", "show mac-learning port "+port).
					optional("lldp", "show lldp remote-system port "+port).
					optional("poe", "show lanpower port "+port)
				return p
			},
			parse: func(x args, out *Outputs, env *Env) any {
				d := parse.ParsePortDiscovery(x.(*portArgs).PortID, parse.PortOutputs{
					Interface: out.Stdout("interface"),
					VLAN:      out.Stdout("vlan"),
					MAC:       out.Stdout("mac"),
					LLDP:      out.Stdout("lldp"),
					PoE:       out.Stdout("poe"),
				}, env.Thresholds.MACLimit)
				d.Issues = withIssues(d.Issues, out)
				return d
			},
		},
		{
			Name:        "aos.interfaces.discover",
			Description: "List every port with admin and operational state",
			Params: params(
				Param{Name: "include_inactive", Type: ParamBoolean, Description: "Include ports that are down (default true)"},
			),
			newArgs: func() args { return &interfacesArgs{} },
			plan: func(args, *Env) Plan {
				var p Plan
				p.add("status", "show interfaces status")
				return p
			},
			parse: func(x args, out *Outputs, _ *Env) any {
				return parse.ParseInterfaceStatus(out.Stdout("status"), x.(*interfacesArgs).IncludeInactive)
			},
		},
		{
			Name:        "aos.vlan.audit",
			Description: "Audit VLAN configuration, membership and spanning-tree state",
			Params: params(
				Param{Name: "vlan_id", Type: ParamInteger, Description: "Restrict detail to one VLAN (1-4094)"},
			),
			newArgs: func() args { return &vlanArgs{} },
			plan: func(x args, _ *Env) Plan {
				a := x.(*vlanArgs)
				var p Plan
				p.add("vlan", "show vlan").
					optional("members", "show vlan members").
					optional("spantree", "show spantree vlan")
				if a.VLANID > 0 {
					p.add("detail", "show vlan "+strconv.Itoa(a.VLANID))
				}
				return p
			},
			parse: func(_ args, out *Outputs, _ *Env) any {
				v := parse.AuditVLANs(out.Stdout("vlan"), out.Stdout("members"), out.Stdout("spantree"), out.Stdout("detail"))
				v.Issues = withIssues(v.Issues, out)
				return v
			},
		},
		{
			Name:        "aos.routing.audit",
			Description: "Audit VRFs, the routing table and OSPF adjacencies",
			Params: params(
				Param{Name: "vrf", Type: ParamString, Description: "VRF to inspect (default VRF when empty)"},
				Param{Name: "protocol", Type: ParamString, Description: "Only routes learned by this protocol (local, static, ospf, bgp, rip, other)"},
				Param{Name: "limit", Type: ParamInteger, Description: "Maximum routes returned (1-1000)"},
			),
			newArgs: func() args { return &routingArgs{} },
			plan: func(x args, _ *Env) Plan {
				a := x.(*routingArgs)
				prefix := ""
				if a.VRF != "" {
					prefix = "vrf " + a.VRF + " "
				}
				var p Plan
				p.add("vrf", "show vrf").
					add("routes", prefix+"show ip routes").
					add("ospf_interface", prefix+"show ip ospf interface").
					optional("ospf_neighbor", prefix+"show ip ospf neighbor")
				return p
			},
			parse: func(x args, out *Outputs, env *Env) any {
				a := x.(*routingArgs)
				limit := a.Limit
				if limit == 0 {
					limit = env.Thresholds.RouteLimit
				}
				r := parse.AuditRouting(out.Stdout("vrf"), out.Stdout("routes"), out.Stdout("ospf_interface"),
					out.Stdout("ospf_neighbor"), a.VRF, a.Protocol, limit)
				r.Issues = withIssues(r.Issues, out)
				return r
			},
		},
		{
			Name:        "aos.spantree.audit",
			Description: "Audit spanning-tree mode, root bridge and port states",
			Params:      params(),
			newArgs:     func() args { return &targetArgs{} },
			plan: func(args, *Env) Plan {
				var p Plan
				p.add("mode", "show spantree mode").
					add("cist", "show spantree cist").
					add("ports", "show spantree cist ports")
				return p
			},
			parse: func(_ args, out *Outputs, _ *Env) any {
				return parse.AuditSTP(out.Stdout("mode"), out.Stdout("cist"), out.Stdout("ports"))
			},
		},
		{
			Name:        "aos.mac.lookup",
			Description: "Find where a MAC or IP address is learned, or list the MAC table",
			Params: params(
				Param{Name: "mac_address", Type: ParamString, Description: "MAC address in any common notation"},
				Param{Name: "ip_address", Type: ParamString, Description: "IPv4 address to resolve through ARP"},
				Param{Name: "vlan_id", Type: ParamInteger, Description: "Only entries in this VLAN (1-4094)"},
				Param{Name: "limit", Type: ParamInteger, Description: "Maximum entries returned (1-1000)"},
			),
			newArgs: func() args { return &macLookupArgs{} },
			plan: func(x args, _ *Env) Plan {
				a := x.(*macLookupArgs)
				var p Plan
				switch {
				case a.MAC != "":
					p.add("table", "show mac-learning mac "+a.MAC)
				case a.IP != "":
					p.add("table", "show arp "+a.IP)
				default:
					p.add("table", "show mac-learning domain vlan")
				}
				return p
			},
			parse: func(x args, out *Outputs, env *Env) any {
				return newMACLookup(x.(*macLookupArgs), out, env.Thresholds.MACLimit)
			},
		},
		{
			Name:        "aos.lacp.info",
			Description: "Show link aggregates and LACP state",
			Params:      params(),
			newArgs:     func() args { return &targetArgs{} },
			plan: func(args, *Env) Plan {
				var p Plan
				p.add("linkagg", "show linkagg").optional("lacp", "show lacp")
				return p
			},
			parse: func(_ args, out *Outputs, _ *Env) any {
				l := parse.AuditLACP(out.Stdout("linkagg"), out.Stdout("lacp"))
				l.Issues = withIssues(l.Issues, out)
				return l
			},
		},
		{
			Name:        "aos.ntp.status",
			Description: "Show NTP synchronisation and server reachability",
			Params:      params(),
			newArgs:     func() args { return &targetArgs{} },
			plan: func(args, *Env) Plan {
				var p Plan
				p.add("status", "show ntp status").optional("servers", "show ntp client server-list")
				return p
			},
			parse: func(_ args, out *Outputs, _ *Env) any {
				n := parse.AuditNTP(out.Stdout("status"), out.Stdout("servers"))
				n.Issues = withIssues(n.Issues, out)
				return n
			},
		},
		{
			Name:        "aos.dhcp.relay.info",
			Description: "Show DHCP relay configuration and counters",
			Params:      params(),
			newArgs:     func() args { return &targetArgs{} },
			plan: func(args, *Env) Plan {
				var p Plan
				p.add("relay", "show ip dhcp-relay interface").optional("counters", "show ip dhcp-relay counters")
				return p
			},
			parse: func(_ args, out *Outputs, _ *Env) any {
				d := parse.AuditDHCPRelay(out.Stdout("relay"), out.Stdout("counters"))
				d.Issues = withIssues(d.Issues, out)
				return d
			},
		},
		{
			Name:        "aos.lldp.neighbors",
			Description: "List LLDP neighbors, optionally for one port",
			Params: params(
				Param{Name: "port_id", Type: ParamString, Description: "Only neighbors on this port"},
			),
			newArgs: func() args { return &optionalPortArgs{} },
			plan: func(x args, _ *Env) Plan {
				cmd := "show lldp remote-system"
				if port := x.(*optionalPortArgs).PortID; port != "" {
					cmd += " port " + port
				}
				var p Plan
				p.add("lldp", cmd)
				return p
			},
			parse: func(x args, out *Outputs, _ *Env) any {
				return filterLLDP(parse.ParseLLDP(out.Stdout("lldp")), x.(*optionalPortArgs).PortID)
			},
		},
		{
			Name:        "aos.config.backup",
			Description: "Capture the running configuration with a digest and suggested file name",
			Params:      params(),
			newArgs:     func() args { return &targetArgs{} },
			plan: func(args, *Env) Plan {
				return Plan{Steps: []Step{{Key: "config", Command: "write terminal", Timeout: backupTimeout}}}
			},
			parse: func(x args, out *Outputs, env *Env) any {
				return parse.ParseBackup(x.target().Host, out.Stdout("config"), env.Now())
			},
		},
		{
			Name:        "aos.health.monitor",
			Description: "Grade CPU and memory utilisation of every module",
			Params: params(
				Param{Name: "detailed", Type: ParamBoolean, Description: "Use show health all for per-module detail"},
			),
			newArgs: func() args { return &healthArgs{} },
			plan: func(x args, _ *Env) Plan {
				cmd := "show health"
				if x.(*healthArgs).Detailed {
					cmd = "show health all"
				}
				var p Plan
				p.add("health", cmd)
				return p
			},
			parse: func(_ args, out *Outputs, env *Env) any {
				th := env.Thresholds
				return parse.ParseHealth(out.Stdout("health"), parse.Thresholds{
					CPUWarning:     float64(th.CPUWarning),
					CPUCritical:    float64(th.CPUCritical),
					MemoryWarning:  float64(th.MemoryWarning),
					MemoryCritical: float64(th.MemoryCritical),
				})
			},
		},
		{
			Name:        "aos.chassis.status",
			Description: "Check chassis, temperature, fans, power supplies and management modules",
			Params: params(
				Param{Name: "include_temperature", Type: ParamBoolean, Description: "Read temperature sensors (default true)"},
				Param{Name: "include_fans", Type: ParamBoolean, Description: "Read fan status (default true)"},
				Param{Name: "include_power", Type: ParamBoolean, Description: "Read power supplies (default true)"},
			),
			newArgs: func() args { return &chassisArgs{} },
			plan: func(x args, _ *Env) Plan {
				a := x.(*chassisArgs)
				var p Plan
				p.add("chassis", "show chassis")
				if a.Temperature {
					p.optional("temperature", "show temperature")
				}
				if a.Fans {
					p.optional("fan", "show fan")
				}
				if a.Power {
					p.optional("power", "show power-supply")
				}
				p.add("cmm", "show cmm")
				return p
			},
			parse: func(_ args, out *Outputs, env *Env) any {
				c := parse.AuditChassis(out.Stdout("chassis"), out.Stdout("temperature"), out.Stdout("fan"),
					out.Stdout("power"), out.Stdout("cmm"), env.Thresholds.FanMinRPM)
				c.Issues = withIssues(c.Issues, out)
				return c
			},
		},
	}
}

// PoERestart reports both halves of a PoE power cycle
type PoERestart struct {
	Port        string       `json:"port_id"`
	WaitSeconds int          `json:"wait_seconds"`
	Steps       []*parse.Raw `json:"steps"`
	Issues      []string     `json:"issues"`
}

func newPoERestart(a *poeRestartArgs, out *Outputs) *PoERestart {
	r := &PoERestart{Port: a.PortID, WaitSeconds: a.WaitSeconds, Issues: []string{}}
	for _, key := range []string{"disable", "enable"} {
		res, ok := out.Result(key)
		if !ok {
			continue
		}
		raw := parse.ParseRaw(res.Command, res.Stdout, res.Stderr, res.ExitStatus)
		r.Steps = append(r.Steps, raw)
		for _, issue := range raw.Issues {
			r.Issues = append(r.Issues, key+": "+issue)
		}
	}
	return r
}

// MACLookup is the result of a MAC, ARP or table lookup
type MACLookup struct {
	Query string `json:"query"`
	parse.MACTable
}

func newMACLookup(a *macLookupArgs, out *Outputs, defaultLimit int) *MACLookup {
	limit := a.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	text := out.Stdout("table")
	l := &MACLookup{}
	switch {
	case a.IP != "":
		l.Query = a.IP
		l.MACTable = parse.ParseARP(text, limit)
	case a.MAC != "":
		l.Query = a.MAC
		l.MACTable = parse.ParseMACTable(text, a.VLANID, limit)
	default:
		l.Query = "all"
		if a.VLANID > 0 {
			l.Query = "vlan " + strconv.Itoa(a.VLANID)
		}
		l.MACTable = parse.ParseMACTable(text, a.VLANID, limit)
	}
	if l.Total == 0 && l.Query != "all" {
		l.Issues = append(l.Issues, "no entries found for "+l.Query)
	}
	if l.Truncated {
		l.Issues = append(l.Issues, fmt.Sprintf("%d entries found, only %d returned", l.Total, len(l.Entries)))
	}
	return l
}

// filterLLDP keeps neighbors seen on port when one is given
func filterLLDP(n *parse.LLDPNeighbors, port string) *parse.LLDPNeighbors {
	if port == "" {
		return n
	}
	kept := n.Neighbors[:0]
	for _, nb := range n.Neighbors {
		if nb.LocalPort == port {
			kept = append(kept, nb)
		}
	}
	n.Neighbors = kept
	n.Total = len(kept)
	return n
}
