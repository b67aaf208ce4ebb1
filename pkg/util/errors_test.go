package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("ssh.max_output_bytes", "must be positive")

	msg := err.Error()
	if !strings.Contains(msg, "ssh.max_output_bytes") || !strings.Contains(msg, "must be positive") {
		t.Errorf("unexpected message: %s", msg)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("ConfigError should unwrap to ErrInvalidConfig")
	}

	wrapped := fmt.Errorf("loading: %w", err)
	var ce *ConfigError
	if !errors.As(wrapped, &ce) || ce.Field != "ssh.max_output_bytes" {
		t.Errorf("errors.As failed on wrapped ConfigError: %v", wrapped)
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("host is required")
		if err.Error() != "validation failed: host is required" {
			t.Errorf("Error() = %q", err.Error())
		}
		if !errors.Is(err, ErrValidationFailed) {
			t.Error("ValidationError should unwrap to ErrValidationFailed")
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("host is required", "vlan_id out of range")
		msg := err.Error()
		if !strings.Contains(msg, "host is required; vlan_id out of range") {
			t.Errorf("Error() = %q", msg)
		}
	})
}

func TestValidationBuilder(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		var v ValidationBuilder
		v.Add(true, "never")
		if v.HasErrors() {
			t.Error("HasErrors() = true, want false")
		}
		if err := v.Build(); err != nil {
			t.Errorf("Build() = %v, want nil", err)
		}
	})

	t.Run("accumulates", func(t *testing.T) {
		var v ValidationBuilder
		v.Add(false, "first").
			AddError("second").
			AddErrorf("third %d", 3)

		err := v.Build()
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Build() = %T, want *ValidationError", err)
		}
		want := []string{"first", "second", "third 3"}
		if len(ve.Errors) != len(want) {
			t.Fatalf("Errors = %v, want %v", ve.Errors, want)
		}
		for i := range want {
			if ve.Errors[i] != want[i] {
				t.Errorf("Errors[%d] = %q, want %q", i, ve.Errors[i], want[i])
			}
		}
	})

	t.Run("merge", func(t *testing.T) {
		var v ValidationBuilder
		v.Merge(nil)
		v.Merge(NewValidationError("a", "b"))
		v.Merge(errors.New("c"))

		var ve *ValidationError
		if !errors.As(v.Build(), &ve) || len(ve.Errors) != 3 {
			t.Fatalf("merged errors = %v", v.Build())
		}
	})
}
