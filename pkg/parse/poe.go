package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// 1/1/1  30000  15420  Powered  Low  ON  4  802.3at
	// AOS 6 omits the class and type columns; ports may be slot/port.
	poePortRow = regexp.MustCompile(`^\s*(\d+/\d+(?:/\d+)?)\s+(\d+)\s+(\d+)\s+(.+?)\s+(Low|High|Critical)\s+(ON|OFF)(?:\s+(\S))?(?:\s+(.*?))?\s*$`)

	poeChassis   = regexp.MustCompile(`(?i)Chassis(?:\s*Id)?\s+(\d+)\s+Slot\s+(\d+)\s+Max\s+Watts\s+(\d+)`)
	poeConsumed  = regexp.MustCompile(`(?i)(-?\d+)\s+Watts\s+Actual\s+Power\s+Consumed`)
	poeRemaining = regexp.MustCompile(`(?i)(-?\d+)\s+Watts\s+Actual\s+Power\s+Budget\s+Remaining`)
	poeBudget    = regexp.MustCompile(`(?i)(-?\d+)\s+Watts\s+Total\s+Power\s+Budget\s+Available`)
	poeSupplies  = regexp.MustCompile(`(?i)(\d+)\s+Power\s+Suppl(?:y|ies)\s+Available`)
)

var poeFaults = []string{"fault", "denied", "overload", "short", "bad voltage", "error"}

// PoEPort is one row of the lanpower table
type PoEPort struct {
	PortID       string `json:"port_id"`
	MaxPowerMW   int    `json:"max_power_mw"`
	ActualUsedMW int    `json:"actual_used_mw"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	AdminState   string `json:"admin_state"`
	Class        string `json:"class,omitempty"`
	Type         string `json:"type,omitempty"`
}

// Faulted reports whether the port status is one of the PoE fault states
func (p PoEPort) Faulted() bool {
	s := strings.ToLower(p.Status)
	for _, f := range poeFaults {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

// PoESummary is the chassis power budget
type PoESummary struct {
	ChassisID         int     `json:"chassis_id,omitempty"`
	SlotID            int     `json:"slot_id,omitempty"`
	MaxWatts          int     `json:"max_watts,omitempty"`
	ConsumedWatts     int     `json:"actual_power_consumed_watts"`
	RemainingWatts    int     `json:"power_budget_remaining_watts"`
	BudgetWatts       int     `json:"total_power_budget_watts"`
	SuppliesAvailable int     `json:"power_supplies_available,omitempty"`
	UsedPercent       float64 `json:"used_percent"`
	ActualUsedMW      int     `json:"actual_used_mw"`
	MaxPowerMW        int     `json:"max_power_mw"`
}

// PoE is the parsed lanpower view
type PoE struct {
	Ports   []PoEPort  `json:"ports"`
	Summary PoESummary `json:"chassis_summary"`
	Issues  []string   `json:"issues"`
}

// ParsePoE parses show lanpower slot N/1 or show lanpower port P
func ParsePoE(text string) *PoE {
	p := &PoE{Ports: []PoEPort{}, Issues: []string{}}
	s := &p.Summary
	var sawRemaining, sawHeader bool

	for _, l := range lines(text) {
		if m := poePortRow.FindStringSubmatch(l); m != nil {
			port := PoEPort{
				PortID:       m[1],
				MaxPowerMW:   atoi(m[2]),
				ActualUsedMW: atoi(m[3]),
				Status:       strings.TrimSpace(m[4]),
				Priority:     m[5],
				AdminState:   m[6],
				Type:         strings.TrimSpace(m[8]),
			}
			if c := m[7]; c != "" && c != "_" && c != "*" && c != "-" {
				port.Class = c
			}
			p.Ports = append(p.Ports, port)
			continue
		}

		lower := strings.ToLower(l)
		if strings.Contains(lower, "port") && (strings.Contains(lower, "maximum") || strings.Contains(lower, "actual")) {
			sawHeader = true
		}
		if m := poeChassis.FindStringSubmatch(l); m != nil {
			s.ChassisID, s.SlotID, s.MaxWatts = atoi(m[1]), atoi(m[2]), atoi(m[3])
		} else if m := poeConsumed.FindStringSubmatch(l); m != nil {
			s.ConsumedWatts = atoi(m[1])
		} else if m := poeRemaining.FindStringSubmatch(l); m != nil {
			s.RemainingWatts = atoi(m[1])
			sawRemaining = true
		} else if m := poeBudget.FindStringSubmatch(l); m != nil {
			s.BudgetWatts = atoi(m[1])
		} else if m := poeSupplies.FindStringSubmatch(l); m != nil {
			s.SuppliesAvailable = atoi(m[1])
		}
	}

	for _, port := range p.Ports {
		s.ActualUsedMW += port.ActualUsedMW
		s.MaxPowerMW += port.MaxPowerMW
	}
	consumed := float64(s.ConsumedWatts)
	if consumed == 0 {
		consumed = float64(s.ActualUsedMW) / 1000
	}
	if s.BudgetWatts > 0 {
		s.UsedPercent = round1(consumed / float64(s.BudgetWatts) * 100)
	}

	if sawRemaining && s.RemainingWatts < 0 {
		p.Issues = append(p.Issues, fmt.Sprintf("PoE budget exceeded: %d W remaining", s.RemainingWatts))
	}
	for _, port := range p.Ports {
		if port.Faulted() {
			p.Issues = append(p.Issues, fmt.Sprintf("port %s: PoE status %s", port.PortID, port.Status))
		}
	}
	if len(p.Ports) == 0 && !blank(text) && (sawHeader || !sawRemaining) {
		p.Issues = append(p.Issues, unrecognised("lanpower port table", firstLine(text)))
	}
	return p
}
