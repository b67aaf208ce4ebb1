package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/newtron-network/omnigate/pkg/health"
)

var (
	// 1/CMMA  45  15 to 85  88  85  UNDER THRESHOLD
	tempRowRange = regexp.MustCompile(`(?i)^\s*(\d+/\w+)\s+(-?\d+)\s+-?\d+\s+to\s+-?\d+\s+\d+\s+(\d+)\s+(UNDER THRESHOLD|OVER THRESHOLD|OK)`)
	// CPU1  1/CMMA  45C  85C  OK
	tempRowUnits = regexp.MustCompile(`(?i)^\s*([A-Za-z][\w-]*)\s+([\w/-]+)\s+(-?\d+)\s*C\s+(\d+)\s*C\s+(OK|WARNING|CRITICAL|NORMAL|OVER THRESHOLD|UNDER THRESHOLD)\s*$`)

	// 1/--  1  YES
	fanRowTray = regexp.MustCompile(`(?i)^\s*(\d+)/[-\w]*\s+(\d+)\s+(YES|NO)\b`)
	// Fan 1  5200 RPM  OK
	fanRowRPM = regexp.MustCompile(`(?i)^\s*Fan\s*(\d+)\s+(\d+)\s*(?:RPM)?\s+(OK|WARNING|CRITICAL|FAILED|operational|not operational)\b`)

	// PS 1  operational  AC  600
	psuRowWords = regexp.MustCompile(`(?i)^\s*(?:PSU|PS|Power Supply)\s*(\d+)\s+(not present|present|operational|failed)(?:\s+(AC|DC))?(?:\s+(\d+))?`)
	// 1/1  600  AC  UP  Internal
	psuRowTable = regexp.MustCompile(`(?i)^\s*(\d+)/(\d+)\s+(\d+|--)\s+(AC|DC|--)\s+(UP|DOWN|--|\w+)(?:\s|$)`)

	// CMM 1  primary  running
	cmmRowWords = regexp.MustCompile(`(?i)^\s*(?:Slot|CMM)\s+(\w+)\s+(primary|secondary|running|standby)\s+(running|standby|up|down)\b`)
	// Module in slot CMM-A / Module in chassis 1 slot A
	cmmBlock = regexp.MustCompile(`(?i)^\s*Module in (?:chassis \d+ )?slot\s+(?:CMM-)?(\w+)`)
)

// ChassisInfo is the show chassis identity block
type ChassisInfo struct {
	Model       string `json:"model,omitempty"`
	Serial      string `json:"serial_number,omitempty"`
	PartNumber  string `json:"part_number,omitempty"`
	Revision    string `json:"hardware_revision,omitempty"`
	MAC         string `json:"mac_address,omitempty"`
	AdminStatus string `json:"admin_status,omitempty"`
	OperStatus  string `json:"operational_status,omitempty"`
}

// TempSensor is one temperature reading in Celsius
type TempSensor struct {
	Sensor    string        `json:"sensor"`
	Location  string        `json:"location,omitempty"`
	Current   int           `json:"current_c"`
	Threshold int           `json:"threshold_c"`
	Reported  string        `json:"reported_status"`
	Status    health.Status `json:"status"`
}

// Fan is one fan reading. RPM is zero when the dialect only reports a
// functional flag.
type Fan struct {
	Chassis    int           `json:"chassis,omitempty"`
	ID         int           `json:"fan"`
	RPM        int           `json:"rpm,omitempty"`
	Functional bool          `json:"functional"`
	Reported   string        `json:"reported_status"`
	Status     health.Status `json:"status"`
}

// PowerSupply is one PSU slot
type PowerSupply struct {
	ID          string        `json:"id"`
	Present     bool          `json:"present"`
	Operational bool          `json:"operational"`
	Type        string        `json:"type,omitempty"`
	Watts       int           `json:"watts,omitempty"`
	Reported    string        `json:"reported_status"`
	Status      health.Status `json:"status"`
}

// CMM is one chassis management module
type CMM struct {
	Slot   string        `json:"slot"`
	Role   string        `json:"role,omitempty"`
	State  string        `json:"state"`
	Status health.Status `json:"status"`
}

// ChassisStatus is the combined chassis environment report
type ChassisStatus struct {
	Overall       health.Status   `json:"overall_status"`
	Chassis       ChassisInfo     `json:"chassis"`
	Temperature   []TempSensor    `json:"temperature,omitempty"`
	Fans          []Fan           `json:"fans,omitempty"`
	PowerSupplies []PowerSupply   `json:"power_supplies,omitempty"`
	CMMs          []CMM           `json:"cmms,omitempty"`
	Results       []health.Result `json:"results"`
	Issues        []string        `json:"issues"`
}

// ParseChassis parses the show chassis identity block
func ParseChassis(text string) ChassisInfo {
	kv := keyValues(text, colonKV)
	return ChassisInfo{
		Model:       lookup(kv, "model name", "module type"),
		Serial:      lookup(kv, "serial number", "serial #"),
		PartNumber:  kv["part number"],
		Revision:    lookup(kv, "hardware revision", "hardware rev"),
		MAC:         strings.ToLower(kv["mac address"]),
		AdminStatus: kv["admin status"],
		OperStatus:  lookup(kv, "operational status", "oper status"),
	}
}

// ParseTemperature parses show temperature in the OS6860 range layout and
// the AOS 8 sensor layout. A sensor at or over its threshold is CRITICAL.
func ParseTemperature(text string) []TempSensor {
	out := []TempSensor{}
	for _, l := range lines(text) {
		var t TempSensor
		if m := tempRowRange.FindStringSubmatch(l); m != nil {
			t = TempSensor{Sensor: m[1], Location: m[1], Current: atoi(m[2]), Threshold: atoi(m[3]), Reported: strings.ToUpper(m[4])}
		} else if m := tempRowUnits.FindStringSubmatch(l); m != nil {
			t = TempSensor{Sensor: m[1], Location: m[2], Current: atoi(m[3]), Threshold: atoi(m[4]), Reported: strings.ToUpper(m[5])}
		} else {
			continue
		}
		switch {
		case t.Reported == "OVER THRESHOLD", t.Reported == "CRITICAL", t.Threshold > 0 && t.Current >= t.Threshold:
			t.Status = health.StatusCritical
		case t.Reported == "WARNING":
			t.Status = health.StatusWarning
		default:
			t.Status = health.StatusOK
		}
		out = append(out, t)
	}
	return out
}

// ParseFans parses show fan. minRPM flags slow fans in the RPM dialect.
func ParseFans(text string, minRPM int) []Fan {
	out := []Fan{}
	for _, l := range lines(text) {
		var f Fan
		if m := fanRowTray.FindStringSubmatch(l); m != nil {
			f = Fan{Chassis: atoi(m[1]), ID: atoi(m[2]), Reported: strings.ToUpper(m[3])}
			f.Functional = f.Reported == "YES"
		} else if m := fanRowRPM.FindStringSubmatch(l); m != nil {
			f = Fan{ID: atoi(m[1]), RPM: atoi(m[2]), Reported: strings.ToUpper(m[3])}
			f.Functional = f.Reported == "OK" || f.Reported == "OPERATIONAL" || f.Reported == "WARNING"
		} else {
			continue
		}
		switch {
		case !f.Functional:
			f.Status = health.StatusCritical
		case f.Reported == "WARNING", f.RPM > 0 && minRPM > 0 && f.RPM < minRPM:
			f.Status = health.StatusWarning
		default:
			f.Status = health.StatusOK
		}
		out = append(out, f)
	}
	return out
}

// ParsePowerSupplies parses show powersupply in the word and table layouts
func ParsePowerSupplies(text string) []PowerSupply {
	out := []PowerSupply{}
	for _, l := range lines(text) {
		var p PowerSupply
		if m := psuRowWords.FindStringSubmatch(l); m != nil {
			st := strings.ToLower(m[2])
			p = PowerSupply{
				ID:          m[1],
				Present:     st != "not present",
				Operational: st == "operational" || st == "present",
				Type:        strings.ToUpper(m[3]),
				Watts:       atoi(m[4]),
				Reported:    st,
			}
		} else if m := psuRowTable.FindStringSubmatch(l); m != nil {
			st := strings.ToUpper(m[5])
			p = PowerSupply{
				ID:          m[1] + "/" + m[2],
				Present:     st != "--" && m[3] != "--",
				Operational: st == "UP",
				Reported:    st,
			}
			if m[4] != "--" {
				p.Type = strings.ToUpper(m[4])
			}
			if m[3] != "--" {
				p.Watts = atoi(m[3])
			}
		} else {
			continue
		}
		switch {
		case !p.Present:
			p.Status = health.StatusWarning
		case !p.Operational:
			p.Status = health.StatusCritical
		default:
			p.Status = health.StatusOK
		}
		out = append(out, p)
	}
	return out
}

// ParseCMM parses show cmm, either one line per module or one labelled
// block per module.
func ParseCMM(text string) []CMM {
	out := []CMM{}
	current := -1
	for _, l := range lines(text) {
		if m := cmmRowWords.FindStringSubmatch(l); m != nil {
			out = append(out, CMM{Slot: m[1], Role: strings.ToLower(m[2]), State: strings.ToLower(m[3])})
			current = -1
			continue
		}
		if m := cmmBlock.FindStringSubmatch(l); m != nil {
			out = append(out, CMM{Slot: m[1]})
			current = len(out) - 1
			continue
		}
		if current < 0 {
			continue
		}
		m := colonKV.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		switch normKey(m[1]) {
		case "operational status", "oper status":
			out[current].State = strings.ToLower(m[2])
		case "cmm role", "role":
			out[current].Role = strings.ToLower(m[2])
		}
	}
	for i := range out {
		switch out[i].State {
		case "down", "fail", "failed", "power off":
			out[i].Status = health.StatusDown
		case "":
			out[i].Status = health.StatusWarning
		default:
			out[i].Status = health.StatusOK
		}
	}
	return out
}

// AuditChassis combines the identity block with the optional environment
// views. Empty inputs are skipped; a view that yields no rows in a layout
// the parser does not know is a WARNING. Overall is the worst component
// status.
func AuditChassis(chassis, temperature, fans, power, cmm string, minRPM int) *ChassisStatus {
	c := &ChassisStatus{Chassis: ParseChassis(chassis)}
	report := health.NewReport()

	if c.Chassis.OperStatus != "" {
		st := health.StatusOK
		if !enabled(c.Chassis.OperStatus) {
			st = health.StatusDown
		}
		report.Add("chassis", st, "chassis operational status %s", c.Chassis.OperStatus)
	}
	if !blank(temperature) {
		c.Temperature = ParseTemperature(temperature)
		if unreadable(temperature, len(c.Temperature)) {
			report.Add("temperature", health.StatusWarning, "%s", unrecognised("temperature table", firstLine(temperature)))
		}
		for _, t := range c.Temperature {
			report.Add("temperature "+t.Sensor, t.Status, "sensor %s at %dC (threshold %dC)", t.Sensor, t.Current, t.Threshold)
		}
	}
	if !blank(fans) {
		c.Fans = ParseFans(fans, minRPM)
		if unreadable(fans, len(c.Fans)) {
			report.Add("fans", health.StatusWarning, "%s", unrecognised("fan table", firstLine(fans)))
		}
		for _, f := range c.Fans {
			name := fmt.Sprintf("fan %d", f.ID)
			if f.Chassis > 0 {
				name = fmt.Sprintf("fan %d/%d", f.Chassis, f.ID)
			}
			switch {
			case !f.Functional:
				report.Add(name, f.Status, "%s failed (%s)", name, f.Reported)
			case f.RPM > 0:
				report.Add(name, f.Status, "%s at %d RPM (minimum %d)", name, f.RPM, minRPM)
			default:
				report.Add(name, f.Status, "%s functional", name)
			}
		}
	}
	if !blank(power) {
		c.PowerSupplies = ParsePowerSupplies(power)
		if unreadable(power, len(c.PowerSupplies)) {
			report.Add("power supplies", health.StatusWarning, "%s", unrecognised("power supply table", firstLine(power)))
		}
		for _, p := range c.PowerSupplies {
			switch {
			case !p.Present:
				report.Add("psu "+p.ID, p.Status, "power supply %s not present", p.ID)
			case !p.Operational:
				report.Add("psu "+p.ID, p.Status, "power supply %s not operational (%s)", p.ID, p.Reported)
			default:
				report.Add("psu "+p.ID, p.Status, "power supply %s operational", p.ID)
			}
		}
	}
	if !blank(cmm) {
		c.CMMs = ParseCMM(cmm)
		if unreadable(cmm, len(c.CMMs)) {
			report.Add("cmm", health.StatusWarning, "%s", unrecognised("CMM output", firstLine(cmm)))
		}
		for _, m := range c.CMMs {
			if m.Status == health.StatusDown {
				report.Add("cmm "+m.Slot, m.Status, "CMM %s is down", m.Slot)
			} else {
				report.Add("cmm "+m.Slot, m.Status, "CMM %s %s %s", m.Slot, m.Role, m.State)
			}
		}
	}

	c.Overall = report.Overall
	c.Results = report.Results
	c.Issues = append([]string{}, report.Issues()...)
	if blank(chassis) && len(report.Results) == 0 {
		c.Issues = append(c.Issues, "no chassis output to evaluate")
	}
	return c
}
