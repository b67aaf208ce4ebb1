package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/newtron-network/omnigate/pkg/transport"
	"github.com/newtron-network/omnigate/pkg/util"
)

// args is implemented by every operation's argument struct. decode copies
// values out of the raw map; validate checks ranges and formats.
type args interface {
	decode(r *argReader)
	validate(v *util.ValidationBuilder)
	target() transport.Target
}

// argReader converts loosely typed request arguments. Protocol front ends
// deliver numbers as float64, json.Number or decimal strings; all are
// accepted. Type mismatches are collected rather than returned.
type argReader struct {
	raw  map[string]any
	used map[string]bool
	v    *util.ValidationBuilder
}

func newArgReader(raw map[string]any) *argReader {
	return &argReader{raw: raw, used: map[string]bool{}, v: &util.ValidationBuilder{}}
}

func (r *argReader) lookup(name string) (any, bool) {
	r.used[name] = true
	val, ok := r.raw[name]
	if !ok || val == nil {
		return nil, false
	}
	if s, isString := val.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return val, true
}

func (r *argReader) String(name string) string {
	val, ok := r.lookup(name)
	if !ok {
		return ""
	}
	switch x := val.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	default:
		r.v.AddErrorf("%s: expected a string", name)
		return ""
	}
}

func (r *argReader) Int(name string, def int) int {
	val, ok := r.lookup(name)
	if !ok {
		return def
	}
	switch x := val.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < math.MaxInt32 {
			return int(x)
		}
	case json.Number:
		if n, err := strconv.Atoi(x.String()); err == nil {
			return n
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n
		}
	}
	r.v.AddErrorf("%s: expected an integer, got %v", name, val)
	return def
}

func (r *argReader) Bool(name string, def bool) bool {
	val, ok := r.lookup(name)
	if !ok {
		return def
	}
	switch x := val.(type) {
	case bool:
		return x
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b
		}
	}
	r.v.AddErrorf("%s: expected a boolean, got %v", name, val)
	return def
}

// unknown rejects arguments the operation does not declare
func (r *argReader) unknown() {
	var extra []string
	for k := range r.raw {
		if !r.used[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		r.v.AddErrorf("unknown argument %q", k)
	}
}

// targetArgs is embedded by every operation
type targetArgs struct {
	Host string
	Port int
}

func (a *targetArgs) decodeTarget(r *argReader) {
	a.Host = r.String("host")
	a.Port = r.Int("port", 0)
}

func (a *targetArgs) validateTarget(v *util.ValidationBuilder) {
	if a.Host == "" {
		v.AddError("host is required")
	} else {
		v.Add(util.IsValidHost(a.Host), fmt.Sprintf("host %q is not a valid IPv4 address or hostname", a.Host))
	}
	v.Add(a.Port == 0 || (a.Port >= 1 && a.Port <= 65535), fmt.Sprintf("port %d out of range 1-65535", a.Port))
}

func (a *targetArgs) target() transport.Target {
	return transport.Target{Host: a.Host, Port: a.Port}
}

func (a *targetArgs) decode(r *argReader)                { a.decodeTarget(r) }
func (a *targetArgs) validate(v *util.ValidationBuilder) { a.validateTarget(v) }

// requirePortID validates a mandatory slot/port reference
func requirePortID(v *util.ValidationBuilder, portID string) {
	if portID == "" {
		v.AddError("port_id is required")
		return
	}
	v.Add(util.IsValidPortID(portID), fmt.Sprintf("port_id %q must look like 1/1/1 or 1/1", portID))
}

func checkRange(v *util.ValidationBuilder, name string, n, lo, hi int) {
	v.Add(n >= lo && n <= hi, fmt.Sprintf("%s %d out of range %d-%d", name, n, lo, hi))
}

type readonlyArgs struct {
	targetArgs
	Command  string
	TimeoutS int
}

func (a *readonlyArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.Command = r.String("command")
	a.TimeoutS = r.Int("timeout_s", 0)
}

func (a *readonlyArgs) validate(v *util.ValidationBuilder) {
	a.validateTarget(v)
	v.Add(a.Command != "", "command is required")
	if a.TimeoutS != 0 {
		checkRange(v, "timeout_s", a.TimeoutS, 1, 300)
	}
}

type pingArgs struct {
	targetArgs
	Destination string
	Count       int
}

func (a *pingArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.Destination = r.String("destination")
	a.Count = r.Int("count", 0)
}

func (a *pingArgs) validate(v *util.ValidationBuilder) {
	a.validateTarget(v)
	validateDestination(v, a.Destination)
	if a.Count != 0 {
		checkRange(v, "count", a.Count, 1, 20)
	}
}

type tracerouteArgs struct {
	targetArgs
	Destination string
	MaxHops     int
}

func (a *tracerouteArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.Destination = r.String("destination")
	a.MaxHops = r.Int("max_hops", 0)
}

func (a *tracerouteArgs) validate(v *util.ValidationBuilder) {
	a.validateTarget(v)
	validateDestination(v, a.Destination)
	if a.MaxHops != 0 {
		checkRange(v, "max_hops", a.MaxHops, 1, 64)
	}
}

func validateDestination(v *util.ValidationBuilder, dest string) {
	if dest == "" {
		v.AddError("destination is required")
		return
	}
	v.Add(util.IsValidHost(dest), fmt.Sprintf("destination %q is not a valid IPv4 address or hostname", dest))
}

type poeSlotArgs struct {
	targetArgs
	Slot int
}

func (a *poeSlotArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.Slot = r.Int("slot", 1)
}

func (a *poeSlotArgs) validate(v *util.ValidationBuilder) {
	a.validateTarget(v)
	checkRange(v, "slot", a.Slot, 1, 16)
}

type poeRestartArgs struct {
	targetArgs
	PortID      string
	WaitSeconds int
}

func (a *poeRestartArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.PortID = r.String("port_id")
	a.WaitSeconds = r.Int("wait_seconds", 5)
}

func (a *poeRestartArgs) validate(v *util.ValidationBuilder) {
	a.validateTarget(v)
	requirePortID(v, a.PortID)
	checkRange(v, "wait_seconds", a.WaitSeconds, 0, 60)
}

type portArgs struct {
	targetArgs
	PortID string
}

func (a *portArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.PortID = r.String("port_id")
}

func (a *portArgs) validate(v *util.ValidationBuilder) {
	a.validateTarget(v)
	requirePortID(v, a.PortID)
}

// optionalPortArgs filters by port when one is given
type optionalPortArgs struct {
	portArgs
}

func (a *optionalPortArgs) validate(v *util.ValidationBuilder) {
	a.validateTarget(v)
	if a.PortID != "" {
		requirePortID(v, a.PortID)
	}
}

type interfacesArgs struct {
	targetArgs
	IncludeInactive bool
}

func (a *interfacesArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.IncludeInactive = r.Bool("include_inactive", true)
}

type vlanArgs struct {
	targetArgs
	VLANID int
}

func (a *vlanArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.VLANID = r.Int("vlan_id", 0)
}

func (a *vlanArgs) validate(v *util.ValidationBuilder) {
	a.validateTarget(v)
	if a.VLANID != 0 {
		checkRange(v, "vlan_id", a.VLANID, 1, 4094)
	}
}

type routingArgs struct {
	targetArgs
	VRF      string
	Protocol string
	Limit    int
}

var vrfName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

var routeProtocols = map[string]bool{
	"": true, "local": true, "static": true, "ospf": true, "bgp": true, "rip": true, "other": true,
}

func (a *routingArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.VRF = r.String("vrf")
	a.Protocol = strings.ToLower(r.String("protocol"))
	a.Limit = r.Int("limit", 0)
}

func (a *routingArgs) validate(v *util.ValidationBuilder) {
	a.validateTarget(v)
	v.Add(a.VRF == "" || vrfName.MatchString(a.VRF), fmt.Sprintf("vrf %q is not a valid name", a.VRF))
	v.Add(routeProtocols[a.Protocol], fmt.Sprintf("protocol %q must be one of local, static, ospf, bgp, rip, other", a.Protocol))
	if a.Limit != 0 {
		checkRange(v, "limit", a.Limit, 1, 1000)
	}
}

type macLookupArgs struct {
	targetArgs
	MAC    string
	IP     string
	VLANID int
	Limit  int
}

func (a *macLookupArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.MAC = r.String("mac_address")
	a.IP = r.String("ip_address")
	a.VLANID = r.Int("vlan_id", 0)
	a.Limit = r.Int("limit", 0)
}

func (a *macLookupArgs) validate(v *util.ValidationBuilder) {
	a.validateTarget(v)
	if a.MAC != "" {
		mac, ok := util.NormalizeMAC(a.MAC)
		v.Add(ok, fmt.Sprintf("mac_address %q is not a valid MAC address", a.MAC))
		if ok {
			a.MAC = mac
		}
	}
	if a.IP != "" {
		v.Add(util.IsValidIPv4(a.IP), fmt.Sprintf("ip_address %q is not a valid IPv4 address", a.IP))
	}
	v.Add(a.MAC == "" || a.IP == "", "mac_address and ip_address are mutually exclusive")
	if a.VLANID != 0 {
		checkRange(v, "vlan_id", a.VLANID, 1, 4094)
	}
	if a.Limit != 0 {
		checkRange(v, "limit", a.Limit, 1, 1000)
	}
}

type healthArgs struct {
	targetArgs
	Detailed bool
}

func (a *healthArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.Detailed = r.Bool("detailed", false)
}

type chassisArgs struct {
	targetArgs
	Temperature bool
	Fans        bool
	Power       bool
}

func (a *chassisArgs) decode(r *argReader) {
	a.decodeTarget(r)
	a.Temperature = r.Bool("include_temperature", true)
	a.Fans = r.Bool("include_fans", true)
	a.Power = r.Bool("include_power", true)
}
