package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
	}{
		{"debug level keeps debug", "debug", true},
		{"info level drops debug", "info", false},
		{"invalid level falls back to info", "chatty", false},
		{"empty level falls back to info", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, tc.level)
			l.Debug().Msg("debug line")

			if got := buf.Len() > 0; got != tc.wantDebug {
				t.Fatalf("debug written = %v, want %v (output %q)", got, tc.wantDebug, buf.String())
			}
		})
	}
}

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info")
	l.Info().Str("model", "gemini-pro").Msg("ready")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "ready" || entry["model"] != "gemini-pro" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("expected timestamp field in %v", entry)
	}
}
