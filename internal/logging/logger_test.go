package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestWithPerson attaches the person context fields to every record
func TestWithPerson(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	WithPerson("ana_24_tinder", "tinder").Info("deep analysis complete", "traits", 3)

	out := buf.String()
	if !strings.Contains(out, `"person_id":"ana_24_tinder"`) {
		t.Errorf("Log line missing person_id: %s", out)
	}
	if !strings.Contains(out, `"platform":"tinder"`) {
		t.Errorf("Log line missing platform: %s", out)
	}
	if !strings.Contains(out, `"traits":3`) {
		t.Errorf("Log line missing call-site attrs: %s", out)
	}
}
