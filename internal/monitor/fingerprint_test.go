package monitor

import (
	"testing"

	"github.com/wxledgerhq/wxledger/internal/wechat"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(wechat.KindCounterpart, "老婆", "午饭 20")
	b := Fingerprint(wechat.KindCounterpart, "老婆", "午饭 20")
	if a != b {
		t.Errorf("same inputs produced %q and %q", a, b)
	}
	if len(a) != 32 {
		t.Errorf("fingerprint length = %d, want 32 hex chars", len(a))
	}
}

func TestFingerprintDiscriminates(t *testing.T) {
	base := Fingerprint(wechat.KindCounterpart, "alice", "lunch 20")

	tests := []struct {
		name string
		got  string
	}{
		{"different sender", Fingerprint(wechat.KindCounterpart, "bob", "lunch 20")},
		{"different text", Fingerprint(wechat.KindCounterpart, "alice", "lunch 21")},
		{"different kind", Fingerprint(wechat.KindSelf, "alice", "lunch 20")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got == base {
				t.Error("expected a different fingerprint")
			}
		})
	}
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	// The separator keeps ("ab","c") and ("a","bc") from colliding.
	if Fingerprint(wechat.KindCounterpart, "ab", "c") == Fingerprint(wechat.KindCounterpart, "a", "bc") {
		t.Error("field boundary collision")
	}
}

func TestFingerprintNormalization(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"surrounding whitespace", "lunch 20", "  lunch 20\n"},
		{"crlf line endings", "line1\nline2", "line1\r\nline2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := Fingerprint(wechat.KindCounterpart, "alice", tt.a)
			fb := Fingerprint(wechat.KindCounterpart, "alice", tt.b)
			if fa != fb {
				t.Errorf("%q and %q should fingerprint identically", tt.a, tt.b)
			}
		})
	}
}
