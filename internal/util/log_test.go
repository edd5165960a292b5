package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	defer SetOutput(prev)
	SetColors(false)
	defer SetLogLevel(LevelInfo)

	SetLogLevel(LevelInfo)
	DebugLog("hidden %d", 1)
	InfoLog("shown %d", 2)
	WarnLog("warned")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "[INFO]  shown 2") {
		t.Errorf("missing info line: %q", out)
	}
	if !strings.Contains(out, "[WARN]  warned") {
		t.Errorf("missing warn line: %q", out)
	}

	buf.Reset()
	SetQuiet(true)
	if !IsQuiet() {
		t.Error("expected quiet mode")
	}
	SuccessLog("done")
	ErrorLog("broken")

	out = buf.String()
	if strings.Contains(out, "done") {
		t.Errorf("success line written in quiet mode: %q", out)
	}
	if !strings.Contains(out, "[ERROR] broken") {
		t.Errorf("missing error line: %q", out)
	}
}
