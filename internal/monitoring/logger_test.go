package monitoring

import (
	"fmt"
	"strings"
	"testing"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)

	Logf("hello %d", 1)
	if len(*lines) != 1 || (*lines)[0] != "hello 1" {
		t.Fatalf("got %v, want [hello 1]", *lines)
	}

	// nil installs a no-op
	SetLogger(nil)
	Logf("dropped")
	if len(*lines) != 1 {
		t.Errorf("no-op logger should not have recorded, got %v", *lines)
	}
}

func TestCall_Warnf(t *testing.T) {
	lines := captureLogs(t)

	NewCall("xrCreateHandTrackerEXT").Warnf("device %q has no input", "gloves")

	if len(*lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(*lines))
	}
	got := (*lines)[0]
	if !strings.HasPrefix(got, "xrCreateHandTrackerEXT: WARNING: ") {
		t.Errorf("missing function prefix: %q", got)
	}
	if !strings.Contains(got, `"gloves"`) {
		t.Errorf("missing formatted argument: %q", got)
	}
}

func TestCall_ErrorfRespectsToggle(t *testing.T) {
	lines := captureLogs(t)
	defer SetErrorLogging(ErrorLogging())

	SetErrorLogging(false)
	NewCall("xrBeginSession").Errorf("already running")
	if len(*lines) != 0 {
		t.Fatalf("error logging disabled, got %v", *lines)
	}

	SetErrorLogging(true)
	NewCall("xrBeginSession").Errorf("already running")
	if len(*lines) != 1 || (*lines)[0] != "xrBeginSession: ERROR: already running" {
		t.Errorf("got %v", *lines)
	}
}
