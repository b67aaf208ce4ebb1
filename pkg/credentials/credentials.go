// Package credentials resolves SSH login candidates for a target host.
//
// A candidate comes either from the global credential or from the zone
// credential selected by one octet of the target's IPv4 address. Values are
// read once at construction; environment variables named by *_env override
// the inline values.
package credentials

import (
	"fmt"
	"os"
	"sort"

	"github.com/newtron-network/omnigate/pkg/config"
	"github.com/newtron-network/omnigate/pkg/util"
)

// SourceGlobal labels the global credential
const SourceGlobal = "global"

// LookupFunc reads an environment variable. os.LookupEnv in production.
type LookupFunc func(key string) (string, bool)

// Candidate is one username/password pair to try against a target
type Candidate struct {
	Username string `json:"username"`
	Password string `json:"-"`
	Source   string `json:"source"`
}

// String never includes the password
func (c Candidate) String() string {
	return fmt.Sprintf("%s@%s", c.Username, c.Source)
}

// GoString keeps %#v from printing the password
func (c Candidate) GoString() string {
	return fmt.Sprintf("credentials.Candidate{Username:%q, Source:%q}", c.Username, c.Source)
}

// ZoneSource returns the source label for zone id
func ZoneSource(zone int) string {
	return fmt.Sprintf("zone:%d", zone)
}

// ZoneOf returns the zone id of host: the given octet (1-4) of a literal
// IPv4 address. Hostnames and IPv6 addresses have no zone.
func ZoneOf(host string, octet int) (int, bool) {
	if octet < 1 || octet > 4 {
		return 0, false
	}
	octets, ok := util.IPv4Octets(host)
	if !ok {
		return 0, false
	}
	return octets[octet-1], true
}

// Resolver maps hosts to ordered credential candidates. It is immutable
// after construction.
type Resolver struct {
	octet  int
	global *Candidate
	zones  map[int]Candidate
}

// NewResolver reads every configured credential. A nil lookup uses
// os.LookupEnv. An unusable global credential is reported as a warning and
// skipped, the same as an unusable zone.
func NewResolver(cfg config.AuthConfig, lookup LookupFunc) (*Resolver, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	octet := cfg.ZoneOctet
	if octet == 0 {
		octet = 2
	}
	if octet < 1 || octet > 4 {
		return nil, util.NewConfigError("auth.zone_octet", fmt.Sprintf("must be between 1 and 4, got %d", octet))
	}

	r := &Resolver{octet: octet, zones: make(map[int]Candidate)}

	if cfg.Global != nil {
		if c, ok := resolve(*cfg.Global, SourceGlobal, lookup); ok {
			r.global = &c
		} else {
			util.WithField("source", SourceGlobal).Warn("Global credential incomplete, skipping")
		}
	}

	ids := make([]int, 0, len(cfg.Zones))
	for id := range cfg.Zones {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		src := ZoneSource(id)
		if c, ok := resolve(cfg.Zones[id], src, lookup); ok {
			r.zones[id] = c
		} else {
			util.WithField("source", src).Warn("Zone credential incomplete, skipping")
		}
	}

	util.WithFields(map[string]interface{}{
		"global": r.global != nil,
		"zones":  len(r.zones),
	}).Debug("Credential resolver ready")
	return r, nil
}

func resolve(cc config.CredentialConfig, source string, lookup LookupFunc) (Candidate, bool) {
	user := value(cc.UsernameEnv, cc.Username, lookup)
	pass := value(cc.PasswordEnv, cc.Password, lookup)
	if user == "" || pass == "" {
		return Candidate{}, false
	}
	return Candidate{Username: user, Password: pass, Source: source}, true
}

func value(env, inline string, lookup LookupFunc) string {
	if env != "" {
		if v, ok := lookup(env); ok && v != "" {
			return v
		}
	}
	return inline
}

// Resolve returns the candidates for host, global first
func (r *Resolver) Resolve(host string) []Candidate {
	var out []Candidate
	if r.global != nil {
		out = append(out, *r.global)
	}
	if zone, ok := ZoneOf(host, r.octet); ok {
		if c, ok := r.zones[zone]; ok {
			out = append(out, c)
		}
	}
	return out
}

// HasGlobal reports whether a usable global credential is configured
func (r *Resolver) HasGlobal() bool {
	return r.global != nil
}

// Zones returns the ids of usable zone credentials in ascending order
func (r *Resolver) Zones() []int {
	ids := make([]int, 0, len(r.zones))
	for id := range r.zones {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ResolveConfig resolves a single credential outside the zone scheme, such as
// the jump host login.
func ResolveConfig(cc config.CredentialConfig, source string, lookup LookupFunc) (Candidate, bool) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return resolve(cc, source, lookup)
}
