package led

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNoopController(t *testing.T) {
	ctrl := newNoop(testLogger())

	if err := ctrl.Set(StatusLED, PatternSolid); err != nil {
		t.Errorf("Set() returned error: %v", err)
	}
	if types := ctrl.Available(); len(types) != 0 {
		t.Errorf("Available() = %v, want empty", types)
	}
	if patterns := ctrl.Patterns(); len(patterns) != 0 {
		t.Errorf("Patterns() = %v, want empty", patterns)
	}
}

func fakeLED(t *testing.T, name string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func readLED(t *testing.T, root, name, attr string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, name, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func TestSysfsController_Set(t *testing.T) {
	tests := []struct {
		pattern        Pattern
		wantTrigger    string
		wantBrightness string
	}{
		{PatternSolid, "none", "1"},
		{PatternOff, "none", "0"},
		{PatternBlink, "timer", ""},
		{PatternHeartbeat, "heartbeat", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.pattern), func(t *testing.T) {
			root := fakeLED(t, "ACT")
			ctrl := newSysfs(root, map[string]string{StatusLED: "ACT"})

			if err := ctrl.Set(StatusLED, tt.pattern); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if got := readLED(t, root, "ACT", "trigger"); got != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", got, tt.wantTrigger)
			}
			if got := readLED(t, root, "ACT", "brightness"); got != tt.wantBrightness {
				t.Errorf("brightness = %q, want %q", got, tt.wantBrightness)
			}
		})
	}
}

func TestSysfsController_SetErrors(t *testing.T) {
	root := fakeLED(t, "ACT")
	ctrl := newSysfs(root, map[string]string{StatusLED: "ACT", "missing": "nope"})

	if err := ctrl.Set("nonexistent", PatternSolid); err == nil {
		t.Error("unsupported LED type should fail")
	}
	if err := ctrl.Set("missing", PatternSolid); err == nil {
		t.Error("LED absent from sysfs should fail")
	}
	if err := ctrl.Set(StatusLED, Pattern("strobe")); err == nil {
		t.Error("unknown pattern should fail")
	}
}

func TestSysfsController_Available(t *testing.T) {
	ctrl := newSysfs(t.TempDir(), map[string]string{"b": "x", "a": "y"})
	got := ctrl.Available()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Available() = %v, want [a b]", got)
	}
	if len(ctrl.Patterns()) != 4 {
		t.Errorf("Patterns() = %v", ctrl.Patterns())
	}
}
