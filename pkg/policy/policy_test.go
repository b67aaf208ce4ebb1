package policy

import (
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/newtron-network/omnigate/pkg/config"
	"github.com/newtron-network/omnigate/pkg/util"
)

func newPolicy(t *testing.T, mutate func(*config.PolicyConfig)) *Policy {
	t.Helper()
	cfg := config.Default().Policy
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestValidateAllowList(t *testing.T) {
	p := newPolicy(t, func(c *config.PolicyConfig) {
		c.Allow = []string{`^show\s+.*$`}
	})

	if err := p.Validate("show vlan"); err != nil {
		t.Errorf("Validate(show vlan) = %v, want allowed", err)
	}

	err := p.Validate("configure terminal")
	if err == nil {
		t.Fatal("Validate(configure terminal) allowed, want denied")
	}
	if !errors.Is(err, ErrDenied) {
		t.Errorf("error %v does not wrap ErrDenied", err)
	}
	var de *DeniedError
	if !errors.As(err, &de) || de.Reason != "does not match any allow pattern" {
		t.Errorf("DeniedError = %+v", de)
	}
}

func TestValidate(t *testing.T) {
	p := newPolicy(t, func(c *config.PolicyConfig) {
		c.Deny = []string{`^show\s+configuration\s+snapshot`}
		c.MaxCommandLength = 40
	})

	tests := []struct {
		name       string
		command    string
		wantReason string // empty means allowed
	}{
		{"show", "show vlan", ""},
		{"leading spaces trimmed", "   show vlan", ""},
		{"tab inside", "show\tvlan 10", ""},
		{"ping", "ping 10.1.1.1", ""},
		{"vrf scoped", "vrf mgmt show ip routes", ""},
		{"backup", "write terminal", ""},
		{"poe disable", "lanpower port 1/1/3 admin-state disable", ""},
		{"poe bogus state", "lanpower port 1/1/3 admin-state reboot", "does not match"},
		{"empty", "", "empty command"},
		{"blank", " \t ", "empty command"},
		{"newline", "show vlan\nreload", "multiline"},
		{"carriage return", "show vlan\rreload", "multiline"},
		{"trailing newline", "show vlan\n", "multiline"},
		{"escape char", "show vlan\x1b", "control character"},
		{"nul", "show\x00vlan", "control character"},
		{"del", "show vlan\x7f", "control character"},
		{"too long", "show " + strings.Repeat("x", 40), "exceeds limit"},
		{"deny wins over allow", "show configuration snapshot all", "deny pattern"},
		{"case sensitive", "SHOW vlan", "does not match"},
		{"write memory", "write memory", "does not match"},
		{"reload", "reload all", "does not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.command)
			if tt.wantReason == "" {
				if err != nil {
					t.Errorf("Validate(%q) = %v, want allowed", tt.command, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate(%q) allowed, want denied (%s)", tt.command, tt.wantReason)
			}
			if !strings.Contains(err.Error(), tt.wantReason) {
				t.Errorf("Validate(%q) = %q, want reason containing %q", tt.command, err, tt.wantReason)
			}
		})
	}
}

func TestValidateMultilineAllowed(t *testing.T) {
	f := false
	p := newPolicy(t, func(c *config.PolicyConfig) {
		c.DenyMultiline = &f
		c.Allow = []string{`(?s)^show\s+.*$`}
	})
	if err := p.Validate("show vlan\nshow ip routes"); err != nil {
		t.Errorf("multiline should be allowed when deny_multiline is false: %v", err)
	}
}

func TestNewInvalidPattern(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.PolicyConfig)
		field  string
	}{
		{"allow", func(c *config.PolicyConfig) { c.Allow = []string{"^show(("} }, "policy.allow[0]"},
		{"deny", func(c *config.PolicyConfig) { c.Deny = []string{"ok", "[z-a]"} }, "policy.deny[1]"},
		{"redaction", func(c *config.PolicyConfig) {
			c.Redactions = []config.RedactionConfig{{Pattern: "(?P<x"}}
		}, "policy.redactions[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Policy
			tt.mutate(&cfg)
			_, err := New(cfg)
			if !errors.Is(err, util.ErrInvalidConfig) {
				t.Fatalf("New() = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	p := newPolicy(t, nil)

	tests := []struct {
		name         string
		in           string
		want         string
		wantRedacted bool
	}{
		{"plain", "VLAN 10 users", "VLAN 10 users", false},
		{"ansi", "\x1b[1mVLAN\x1b[0m 10", "VLAN 10", false},
		{"password", "user admin password S3cret!", "user admin password ***", true},
		{"case insensitive", "snmp Community public ro", "snmp Community *** ro", true},
		{"both", "password a\ncommunity b", "password ***\ncommunity ***", true},
		{"spliced escape", "\x1b\x1b[0m[0mok", "ok", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, redacted := p.Sanitize(tt.in)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if redacted != tt.wantRedacted {
				t.Errorf("redacted = %v, want %v", redacted, tt.wantRedacted)
			}
		})
	}
}

func TestSanitizePythonStyleReplacement(t *testing.T) {
	p := newPolicy(t, func(c *config.PolicyConfig) {
		c.Redactions = []config.RedactionConfig{{Pattern: `(key\s+)(\S+)`, Replacement: `\1<hidden>`}}
	})
	got, redacted := p.Sanitize("tacacs key abc123")
	if got != "tacacs key <hidden>" || !redacted {
		t.Errorf("Sanitize = (%q, %v)", got, redacted)
	}
}

func TestSanitizeWithoutANSIStripping(t *testing.T) {
	f := false
	p := newPolicy(t, func(c *config.PolicyConfig) { c.StripANSI = &f })
	in := "\x1b[1mbold\x1b[0m"
	if got, _ := p.Sanitize(in); got != in {
		t.Errorf("Sanitize stripped escapes with strip_ansi=false: %q", got)
	}
}

// Any command containing a newline is denied when multiline is forbidden,
// whatever surrounds it.
func TestPropertyMultilineDenied(t *testing.T) {
	p := newPolicy(t, nil)
	rapid.Check(t, func(t *rapid.T) {
		before := rapid.String().Draw(t, "before")
		after := rapid.String().Draw(t, "after")
		nl := rapid.SampledFrom([]string{"\n", "\r", "\r\n"}).Draw(t, "newline")
		cmd := "show " + before + nl + after
		if err := p.Validate(cmd); err == nil {
			t.Fatalf("Validate(%q) allowed a multiline command", cmd)
		}
	})
}

// Sanitize is idempotent on input that does not already contain the
// replacement token.
func TestPropertySanitizeIdempotent(t *testing.T) {
	p := newPolicy(t, nil)
	pieces := []string{
		"\x1b", "[", "0", "1;32", "m", "K", "password", "Password ", "community ",
		" ", "\t", "\n", "public", "s3cr3t", "vlan", "10", ":", "=",
	}
	rapid.Check(t, func(t *rapid.T) {
		parts := rapid.SliceOf(rapid.SampledFrom(pieces)).Draw(t, "parts")
		x := strings.Join(parts, "")
		once, _ := p.Sanitize(x)
		twice, _ := p.Sanitize(once)
		if once != twice {
			t.Fatalf("Sanitize not idempotent:\n x     = %q\n once  = %q\n twice = %q", x, once, twice)
		}
	})
}
