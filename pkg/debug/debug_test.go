package debug

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLogRespectsEnabled(t *testing.T) {
	var buf bytes.Buffer
	prev := Enabled()
	t.Cleanup(func() { SetEnabled(prev) })

	SetEnabled(false)
	SetOutput(&buf)
	Log("hidden %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("disabled logger wrote %q", buf.String())
	}

	SetEnabled(true)
	Log("shown %d", 2)
	LogIf(false, "skipped")
	LogIf(true, "kept")
	LogTiming("reload", 5*time.Millisecond)
	LogEnterExit("load")()

	out := buf.String()
	for _, want := range []string{"shown 2", "kept", "reload took 5ms", "-> load", "<- load"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "skipped") {
		t.Error("LogIf(false) should not write")
	}
}
