package errors

import (
	"fmt"
	"testing"
)

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("simpack declares no backend", ErrNoBackends)

	if !Is(err, ErrNoBackends) {
		t.Error("expected errors.Is to match ErrNoBackends")
	}

	var ce *ConfigurationError
	if !As(err, &ce) {
		t.Fatal("expected errors.As to match *ConfigurationError")
	}
	if ce.Unwrap() != ErrNoBackends {
		t.Errorf("Unwrap() = %v, want ErrNoBackends", ce.Unwrap())
	}

	want := "configuration: simpack declares no backend: no compatible cruncher backend available"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConfigurationErrorNoCause(t *testing.T) {
	err := NewConfigurationError("bad queue capacity", nil)
	if err.Unwrap() != nil {
		t.Error("expected nil Unwrap for error without cause")
	}
	if got, want := err.Error(), "configuration: bad queue capacity"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConfigurationErrorWrapped(t *testing.T) {
	base := NewConfigurationError("no backend", ErrNoBackends)
	wrapped := fmt.Errorf("creating manager: %w", base)

	var ce *ConfigurationError
	if !As(wrapped, &ce) {
		t.Error("expected errors.As to find ConfigurationError through wrapping")
	}
	if !Is(wrapped, ErrNoBackends) {
		t.Error("expected errors.Is to find sentinel through wrapping")
	}
}

func TestUnexpectedQueueItem(t *testing.T) {
	err := NewUnexpectedQueueItem(42)

	var uqi *UnexpectedQueueItem
	if !As(err, &uqi) {
		t.Fatal("expected errors.As to match *UnexpectedQueueItem")
	}
	if uqi.Item != 42 {
		t.Errorf("Item = %v, want 42", uqi.Item)
	}
	if got, want := err.Error(), "unexpected object int in work queue: 42"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", New("boom"), false},
		{"sentinel alone", ErrNoBackends, false},
		{"configuration error", NewConfigurationError("x", nil), true},
		{"unexpected queue item", NewUnexpectedQueueItem("y"), true},
		{"wrapped fatal", fmt.Errorf("sync: %w", NewUnexpectedQueueItem(nil)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
