package parse

import (
	"regexp"
	"strings"
)

var (
	firmwareVersion = regexp.MustCompile(`\b\d+\.\d+\.\d+\.R\d+\b`)
	modelInText     = regexp.MustCompile(`\b(OS\d+[A-Z0-9-]*)\b`)

	uptimeDays    = regexp.MustCompile(`(?i)(\d+)\s+days?`)
	uptimeHours   = regexp.MustCompile(`(?i)(\d+)\s+hours?`)
	uptimeMinutes = regexp.MustCompile(`(?i)(\d+)\s+minutes?`)
	uptimeSeconds = regexp.MustCompile(`(?i)(\d+)\s+seconds?`)
	uptimeCompact = regexp.MustCompile(`(?i)(?:(\d+)d)?\s*(?:(\d+)h)?\s*(?:(\d+)m)?\s*(?:(\d+)s)?`)
	clockTime     = regexp.MustCompile(`^(?:(\d+)\s*d(?:ays?)?,?\s*)?(\d+):(\d{2}):(\d{2})$`)
)

// Facts is the identity of a switch, merged from show system, show chassis
// and show hardware-info.
type Facts struct {
	Hostname         string            `json:"hostname,omitempty"`
	Description      string            `json:"description,omitempty"`
	Model            string            `json:"model,omitempty"`
	Version          string            `json:"aos_version,omitempty"`
	Serial           string            `json:"serial_number,omitempty"`
	PartNumber       string            `json:"part_number,omitempty"`
	HardwareRevision string            `json:"hardware_revision,omitempty"`
	ManufactureDate  string            `json:"manufacture_date,omitempty"`
	BaseMAC          string            `json:"mac_address,omitempty"`
	ObjectID         string            `json:"object_id,omitempty"`
	Location         string            `json:"location,omitempty"`
	Contact          string            `json:"contact,omitempty"`
	DateTime         string            `json:"date_time,omitempty"`
	Uptime           string            `json:"uptime,omitempty"`
	UptimeSeconds    int64             `json:"uptime_seconds,omitempty"`
	Hardware         map[string]string `json:"hardware,omitempty"`
	Issues           []string          `json:"issues"`
}

// ParseFacts merges the three identity views. Any of them may be empty.
func ParseFacts(system, chassis, hardware string) *Facts {
	f := &Facts{Issues: []string{}}

	sys := keyValues(system, colonKV)
	f.Hostname = sys["name"]
	f.Description = sys["description"]
	f.ObjectID = sys["object id"]
	f.Contact = sys["contact"]
	f.Location = sys["location"]
	f.DateTime = sys["date & time"]
	f.Uptime = sys["up time"]

	ch := keyValues(chassis, colonKV)
	f.Model = ch["model name"]
	if f.Model == "" {
		if mt := ch["module type"]; mt != "" && !strings.HasPrefix(strings.ToLower(mt), "0x") {
			f.Model = mt
		}
	}
	if f.Model == "" {
		if m := modelInText.FindStringSubmatch(f.Description); m != nil {
			f.Model = m[1]
		}
	}
	f.Serial = lookup(ch, "serial number", "serial #", "serial no")
	f.PartNumber = ch["part number"]
	f.HardwareRevision = lookup(ch, "hardware revision", "hardware rev")
	f.ManufactureDate = ch["manufacture date"]
	f.BaseMAC = strings.ToLower(lookup(ch, "mac address", "base mac address"))

	f.Version = firmwareVersion.FindString(f.Description)
	if f.Version == "" {
		f.Version = firmwareVersion.FindString(chassis)
	}

	if !blank(hardware) {
		f.Hardware = keyValues(hardware, colonKV)
		if f.Version == "" {
			f.Version = firmwareVersion.FindString(hardware)
		}
	}

	if f.Uptime != "" {
		if secs, ok := UptimeSeconds(f.Uptime); ok {
			f.UptimeSeconds = secs
		} else {
			f.Issues = append(f.Issues, unrecognised("uptime format", f.Uptime))
		}
	}

	if len(sys) == 0 && !blank(system) {
		f.Issues = append(f.Issues, unrecognised("show system output", firstLine(system)))
	}
	if f.Version == "" && f.Description != "" {
		f.Issues = append(f.Issues, "firmware version not found in system description")
	}
	return f
}

// UptimeSeconds normalises "12 days 3 hours 5 minutes and 30 seconds",
// "12d 03h 05m 30s" and "12 days, 03:05:30" to seconds.
func UptimeSeconds(s string) (int64, bool) {
	s = strings.TrimSpace(strings.TrimRight(s, ","))
	if s == "" {
		return 0, false
	}

	if m := clockTime.FindStringSubmatch(s); m != nil {
		return int64(atoi(m[1]))*86400 + int64(atoi(m[2]))*3600 + int64(atoi(m[3]))*60 + int64(atoi(m[4])), true
	}

	var total int64
	matched := false
	for _, u := range []struct {
		re   *regexp.Regexp
		mult int64
	}{
		{uptimeDays, 86400}, {uptimeHours, 3600}, {uptimeMinutes, 60}, {uptimeSeconds, 1},
	} {
		if m := u.re.FindStringSubmatch(s); m != nil {
			total += int64(atoi(m[1])) * u.mult
			matched = true
		}
	}
	if matched {
		return total, true
	}

	if m := uptimeCompact.FindStringSubmatch(s); m != nil && m[0] == s {
		if m[1]+m[2]+m[3]+m[4] == "" {
			return 0, false
		}
		return int64(atoi(m[1]))*86400 + int64(atoi(m[2]))*3600 + int64(atoi(m[3]))*60 + int64(atoi(m[4])), true
	}
	return 0, false
}

func firstLine(s string) string {
	for _, l := range lines(s) {
		if !blank(l) {
			return l
		}
	}
	return ""
}
