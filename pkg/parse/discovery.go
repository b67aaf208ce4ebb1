package parse

// PortDiscovery is everything known about one switch port: its interface
// state, VLAN membership, learned MACs, LLDP neighbor and PoE state.
type PortDiscovery struct {
	Port      string           `json:"port_id"`
	Interface *InterfaceDetail `json:"interface"`
	VLANs     []VLANMember     `json:"vlans"`
	MACs      []MACEntry       `json:"mac_addresses"`
	Neighbor  *LLDPNeighbor    `json:"lldp_neighbor,omitempty"`
	PoE       *PoEPort         `json:"poe,omitempty"`
	Issues    []string         `json:"issues"`
}

// PortOutputs holds the raw output of each port view. Empty fields were not
// collected.
type PortOutputs struct {
	Interface string
	VLAN      string
	MAC       string
	LLDP      string
	PoE       string
}

// ParsePortDiscovery assembles the composite record for port
func ParsePortDiscovery(port string, out PortOutputs, macLimit int) *PortDiscovery {
	d := &PortDiscovery{
		Port:      port,
		Interface: ParseInterfaceDetail(port, out.Interface),
		VLANs:     ParseVLANMembers(out.VLAN, port),
	}
	macs := ParseMACTable(out.MAC, 0, macLimit)
	d.MACs = macs.Entries
	d.Issues = append([]string{}, d.Interface.Issues...)
	d.Issues = append(d.Issues, macs.Issues...)

	if !blank(out.LLDP) {
		lldp := ParseLLDP(out.LLDP)
		for i := range lldp.Neighbors {
			if lldp.Neighbors[i].LocalPort == port {
				d.Neighbor = &lldp.Neighbors[i]
				break
			}
		}
		if d.Neighbor == nil && len(lldp.Neighbors) > 0 {
			d.Neighbor = &lldp.Neighbors[0]
		}
		d.Issues = append(d.Issues, lldp.Issues...)
	}

	if !blank(out.PoE) {
		poe := ParsePoE(out.PoE)
		for i := range poe.Ports {
			if poe.Ports[i].PortID == port {
				d.PoE = &poe.Ports[i]
				break
			}
		}
		if d.PoE != nil && d.PoE.Faulted() {
			d.Issues = append(d.Issues, "port "+port+": PoE status "+d.PoE.Status)
		}
	}

	if d.Interface.OperState == "up" && len(d.MACs) == 0 && !blank(out.MAC) {
		d.Issues = append(d.Issues, "port "+port+" is up but has learned no MAC addresses")
	}
	return d
}
