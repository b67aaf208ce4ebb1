package parse

import (
	"regexp"
	"strings"
)

var (
	packetLossRe = regexp.MustCompile(`(\d+(?:\.\d+)?)% packet loss`)
	pingCounts   = regexp.MustCompile(`(\d+)\s+packets?\s+transmitted,\s+(\d+)\s+(?:packets?\s+)?received`)
	pingRTT      = regexp.MustCompile(`(?:round-trip|rtt)\s+min/avg/max(?:/\w+)?\s*=\s*([\d.]+)/([\d.]+)/([\d.]+)`)

	traceHeader = regexp.MustCompile(`^\s*traceroute to\s+(\S+)`)
	traceHop    = regexp.MustCompile(`^\s*(\d+)\s+(.*)$`)
	traceRTT    = regexp.MustCompile(`([\d.]+)\s*ms`)
	traceHost   = regexp.MustCompile(`^(\S+)\s+\((\d{1,3}(?:\.\d{1,3}){3})\)`)
)

// Ping is the summary of a ping run
type Ping struct {
	Destination string   `json:"destination"`
	Transmitted int      `json:"packets_sent"`
	Received    int      `json:"packets_received"`
	LossPercent float64  `json:"packet_loss_percent"`
	MinMS       float64  `json:"rtt_min_ms,omitempty"`
	AvgMS       float64  `json:"rtt_avg_ms,omitempty"`
	MaxMS       float64  `json:"rtt_max_ms,omitempty"`
	Success     bool     `json:"success"`
	Issues      []string `json:"issues"`
}

// Hop is one traceroute hop. Timeout is set when every probe timed out.
type Hop struct {
	Hop     int       `json:"hop"`
	Host    string    `json:"host,omitempty"`
	Address string    `json:"address,omitempty"`
	RTTs    []float64 `json:"rtt_ms,omitempty"`
	Timeout bool      `json:"timeout"`
}

// Traceroute is the parsed hop list
type Traceroute struct {
	Destination string   `json:"destination"`
	Hops        []Hop    `json:"hops"`
	Reached     bool     `json:"reached"`
	Issues      []string `json:"issues"`
}

// ParsePing parses the statistics block of ping output
func ParsePing(destination, text string) *Ping {
	p := &Ping{Destination: destination, Issues: []string{}}
	found := false
	if m := pingCounts.FindStringSubmatch(text); m != nil {
		p.Transmitted, p.Received = atoi(m[1]), atoi(m[2])
		found = true
	}
	if m := packetLossRe.FindStringSubmatch(text); m != nil {
		p.LossPercent = atof(m[1])
		found = true
	} else if p.Transmitted > 0 {
		p.LossPercent = round1(float64(p.Transmitted-p.Received) / float64(p.Transmitted) * 100)
	}
	if m := pingRTT.FindStringSubmatch(text); m != nil {
		p.MinMS, p.AvgMS, p.MaxMS = atof(m[1]), atof(m[2]), atof(m[3])
	}
	p.Success = found && p.Received > 0

	switch {
	case !found:
		p.Issues = append(p.Issues, unrecognised("ping output", firstLine(text)))
	case p.Received == 0:
		p.Issues = append(p.Issues, "destination "+destination+" unreachable (100% loss)")
	case p.LossPercent > 0:
		p.Issues = append(p.Issues, "packet loss to "+destination)
	}
	return p
}

// ParseTraceroute parses traceroute output into hops
func ParseTraceroute(destination, text string) *Traceroute {
	t := &Traceroute{Destination: destination, Hops: []Hop{}, Issues: []string{}}
	target := destination
	for _, l := range lines(text) {
		if m := traceHeader.FindStringSubmatch(l); m != nil {
			target = m[1]
			continue
		}
		m := traceHop.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		h := Hop{Hop: atoi(m[1])}
		rest := strings.TrimSpace(m[2])
		if hm := traceHost.FindStringSubmatch(rest); hm != nil {
			h.Host, h.Address = hm[1], hm[2]
		} else if f := strings.Fields(rest); len(f) > 0 && f[0] != "*" {
			h.Address = f[0]
		}
		for _, r := range traceRTT.FindAllStringSubmatch(rest, -1) {
			h.RTTs = append(h.RTTs, atof(r[1]))
		}
		h.Timeout = len(h.RTTs) == 0 && strings.Contains(rest, "*")
		if h.Address != "" && (h.Address == destination || h.Address == target || h.Host == destination) {
			t.Reached = true
		}
		t.Hops = append(t.Hops, h)
	}

	if len(t.Hops) == 0 && !blank(text) {
		t.Issues = append(t.Issues, unrecognised("traceroute output", firstLine(text)))
	} else if len(t.Hops) > 0 && !t.Reached {
		t.Issues = append(t.Issues, "destination "+destination+" not reached")
	}
	return t
}
