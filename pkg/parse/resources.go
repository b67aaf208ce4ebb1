package parse

import (
	"regexp"
	"strings"

	"github.com/newtron-network/omnigate/pkg/health"
)

var (
	// CPU  12  11  10  10   (current, 1 min, 1 hr, 1 day)
	resourceRow = regexp.MustCompile(`(?i)^\s*(CPU|Memory)\s+(\d+)(?:\s+(\d+))?(?:\s+(\d+))?(?:\s+(\d+))?\s*$`)
	// NI  1/1  OK  12  45  1  1   (module, slot, status, cpu, memory, rx, txrx)
	moduleRow = regexp.MustCompile(`^\s*(\w+)\s+(\d+(?:/\d+)?)\s+(OK|WARNING|CRITICAL|DOWN)\s+(\d+)\s+(\d+)\s+(\d+)\s+(\d+)`)
)

// Thresholds are the resource levels that raise a module to WARNING or
// CRITICAL, in percent.
type Thresholds struct {
	CPUWarning     float64
	CPUCritical    float64
	MemoryWarning  float64
	MemoryCritical float64
}

// ModuleHealth is the resource reading of one module
type ModuleHealth struct {
	Module         string        `json:"module"`
	Slot           string        `json:"slot,omitempty"`
	Reported       health.Status `json:"reported_status,omitempty"`
	Status         health.Status `json:"status"`
	CPU            int           `json:"cpu_percent"`
	Memory         int           `json:"memory_percent"`
	CPUAvg1Min     int           `json:"cpu_avg_1min,omitempty"`
	CPUAvg1Hour    int           `json:"cpu_avg_1hr,omitempty"`
	MemoryAvg1Min  int           `json:"memory_avg_1min,omitempty"`
	MemoryAvg1Hour int           `json:"memory_avg_1hr,omitempty"`
	Rx             int           `json:"rx,omitempty"`
	TxRx           int           `json:"txrx,omitempty"`
}

// Health is the parsed show health view
type Health struct {
	Overall health.Status  `json:"overall_status"`
	Modules []ModuleHealth `json:"modules"`
	Issues  []string       `json:"issues"`
}

// ParseHealth parses show health (the OS6860 resources table) and
// show health all (the AOS 8 per-module table) and grades every module
// against th.
func ParseHealth(text string, th Thresholds) *Health {
	h := &Health{Modules: []ModuleHealth{}}
	cmm := -1

	for _, l := range lines(text) {
		if m := moduleRow.FindStringSubmatch(l); m != nil {
			h.Modules = append(h.Modules, ModuleHealth{
				Module:   m[1],
				Slot:     m[2],
				Reported: health.Status(m[3]),
				CPU:      atoi(m[4]),
				Memory:   atoi(m[5]),
				Rx:       atoi(m[6]),
				TxRx:     atoi(m[7]),
			})
			continue
		}
		if m := resourceRow.FindStringSubmatch(l); m != nil {
			if cmm < 0 {
				h.Modules = append(h.Modules, ModuleHealth{Module: "CMM"})
				cmm = len(h.Modules) - 1
			}
			mod := &h.Modules[cmm]
			if strings.EqualFold(m[1], "cpu") {
				mod.CPU, mod.CPUAvg1Min, mod.CPUAvg1Hour = atoi(m[2]), atoi(m[3]), atoi(m[4])
			} else {
				mod.Memory, mod.MemoryAvg1Min, mod.MemoryAvg1Hour = atoi(m[2]), atoi(m[3]), atoi(m[4])
			}
		}
	}

	report := health.NewReport()
	for i := range h.Modules {
		mod := &h.Modules[i]
		name := mod.Module
		if mod.Slot != "" {
			name += " " + mod.Slot
		}
		cpu := health.Threshold(float64(mod.CPU), th.CPUWarning, th.CPUCritical)
		mem := health.Threshold(float64(mod.Memory), th.MemoryWarning, th.MemoryCritical)
		mod.Status = health.Worst(cpu, mem)
		if mod.Reported != "" {
			mod.Status = health.Worst(mod.Status, mod.Reported)
		}

		report.Add(name+" cpu", cpu, "%s: CPU at %d%% (%s)", name, mod.CPU, cpu)
		report.Add(name+" memory", mem, "%s: memory at %d%% (%s)", name, mod.Memory, mem)
		if mod.Reported != "" {
			report.Add(name+" status", mod.Reported, "%s: module reports %s", name, mod.Reported)
		}
	}

	h.Overall = report.Overall
	h.Issues = append([]string{}, report.Issues()...)
	if len(h.Modules) == 0 && !blank(text) {
		h.Issues = append(h.Issues, unrecognised("health output", firstLine(text)))
		h.Overall = health.StatusWarning
	}
	return h
}
