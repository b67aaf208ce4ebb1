package util

import "testing"

func TestIPv4Octets(t *testing.T) {
	tests := []struct {
		host   string
		want   [4]int
		wantOK bool
	}{
		{"10.9.5.10", [4]int{10, 9, 5, 10}, true},
		{"192.168.1.1", [4]int{192, 168, 1, 1}, true},
		{"0.0.0.0", [4]int{0, 0, 0, 0}, true},
		{"10.256.0.1", [4]int{}, false},
		{"10.9.5", [4]int{}, false},
		{"10.9.5.10.1", [4]int{}, false},
		{"switch.example.com", [4]int{}, false},
		{"::1", [4]int{}, false},
		{"10.-1.0.1", [4]int{}, false},
		{"10..0.1", [4]int{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, ok := IPv4Octets(tt.host)
			if ok != tt.wantOK {
				t.Fatalf("IPv4Octets(%q) ok = %v, want %v", tt.host, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("IPv4Octets(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestIsValidHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"10.1.2.3", true},
		{"core-sw1", true},
		{"core-sw1.site.example.net", true},
		{"", false},
		{"-bad", false},
		{"bad_host", false},
		{"host;reboot", false},
		{"a b", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := IsValidHost(tt.host); got != tt.want {
				t.Errorf("IsValidHost(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestIsValidPortID(t *testing.T) {
	tests := []struct {
		port string
		want bool
	}{
		{"1/1/24", true},
		{"2/47", true},
		{"1/1", true},
		{"1", false},
		{"1/1/1/1", false},
		{"1/1/a", false},
		{"1/1/1 admin-state", false},
	}

	for _, tt := range tests {
		t.Run(tt.port, func(t *testing.T) {
			if got := IsValidPortID(tt.port); got != tt.want {
				t.Errorf("IsValidPortID(%q) = %v, want %v", tt.port, got, tt.want)
			}
		})
	}
}

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"70:4C:A5:50:45:CE", "70:4c:a5:50:45:ce", true},
		{"70-4c-a5-50-45-ce", "70:4c:a5:50:45:ce", true},
		{"704c.a550.45ce", "70:4c:a5:50:45:ce", true},
		{"70:4c:a5", "", false},
		{"not-a-mac", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeMAC(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeMAC(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
