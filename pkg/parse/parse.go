// Package parse turns OmniSwitch CLI output into structured records.
//
// Every parser is a pure function of the raw command text. Parsers recognise
// the AOS 6 and AOS 8 dialects of each command by header or field labels, not
// by column offsets. Output that cannot be fully interpreted still yields a
// partial record; what was skipped is described in the record's Issues.
package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "Key : value," lines; AOS pads keys and ends most values with a comma.
	colonKV = regexp.MustCompile(`^\s*([A-Za-z0-9 &/#()_.-]+?)\s*:\s*(.*?)\s*,?\s*$`)
	// "Key = value," lines used by lldp, dhcp-relay and some spantree views.
	equalsKV = regexp.MustCompile(`^\s*([A-Za-z0-9 &/#()_.-]+?)\s*=\s*(.*?)\s*,?\s*$`)

	spaceRun = regexp.MustCompile(`\s+`)
	firstInt = regexp.MustCompile(`-?\d+`)
	firstNum = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

	// Notices and trailers AOS prints for a table with no rows.
	emptyTable = regexp.MustCompile(`(?im)(^\s*no\s.*\b(found|entries|configured|learned|present|exists?)\b|\bnot\s+(configured|enabled|running)\b|\btotal\b.*(=|:)\s*0\s*,?\s*$|^\s*total\s+0\b)`)
)

// lines splits output into lines without trailing carriage returns
func lines(s string) []string {
	out := strings.Split(s, "\n")
	for i, l := range out {
		out[i] = strings.TrimRight(l, "\r")
	}
	return out
}

// isRule reports whether a line is a table separator such as "-----+----"
func isRule(line string) bool {
	t := strings.TrimSpace(line)
	if len(t) < 3 {
		return false
	}
	return strings.Trim(t, "-+= ") == ""
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// normKey lower-cases a label and collapses internal whitespace
func normKey(k string) string {
	return strings.ToLower(spaceRun.ReplaceAllString(strings.TrimSpace(k), " "))
}

// keyValues collects "key: value" (or "key = value") pairs keyed by the
// normalised label. The first occurrence of a key wins.
func keyValues(text string, re *regexp.Regexp) map[string]string {
	kv := make(map[string]string)
	for _, l := range lines(text) {
		m := re.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		k := normKey(m[1])
		if _, seen := kv[k]; seen {
			continue
		}
		kv[k] = strings.TrimSpace(strings.TrimRight(m[2], ","))
	}
	return kv
}

// lookup returns the first non-empty value among the given keys
func lookup(kv map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := kv[k]; v != "" {
			return v
		}
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// leadingInt extracts the first integer in s, ok=false when there is none
func leadingInt(s string) (int, bool) {
	m := firstInt.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

// leadingFloat extracts the first decimal number in s
func leadingFloat(s string) (float64, bool) {
	m := firstNum.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	return f, err == nil
}

// enabled interprets the many spellings AOS uses for on/off flags
func enabled(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ena", "enable", "enabled", "on", "en", "yes", "true", "up":
		return true
	}
	return false
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// unrecognised formats the issue reported for output a parser skipped
func unrecognised(what, sample string) string {
	sample = strings.TrimSpace(sample)
	if len(sample) > 80 {
		sample = sample[:80] + "..."
	}
	return fmt.Sprintf("unrecognised %s: %q", what, sample)
}

// unreadable reports output that yielded no rows in a layout the parser does
// not know. Empty-table notices are not unreadable, and neither is a table
// whose header carries every word in header but no lines below it.
func unreadable(text string, rows int, header ...string) bool {
	if rows > 0 || blank(text) || emptyTable.MatchString(text) {
		return false
	}
	if len(header) == 0 {
		return true
	}
	seen := false
	for _, l := range lines(text) {
		switch {
		case blank(l) || isRule(l):
		case !seen:
			seen = hasAll(headerTokens(l), header...)
		default:
			return true
		}
	}
	return !seen
}

// headerTokens lower-cases the words of a header line
func headerTokens(line string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(line)) {
		set[strings.Trim(f, "|+,:")] = true
	}
	return set
}

func hasAll(set map[string]bool, words ...string) bool {
	for _, w := range words {
		if !set[w] {
			return false
		}
	}
	return true
}
