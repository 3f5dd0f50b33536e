package logging

import "testing"

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("billing", Config{Format: "xml", Level: "info"}); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("billing", Config{Format: FormatJSON, Level: "loud"}); err == nil {
		t.Fatal("expected unknown level error")
	}
}

func TestNewBuildsBothFormats(t *testing.T) {
	for _, format := range []string{"", FormatJSON, FormatConsole} {
		logger, err := New("reminders", Config{Format: format, Level: "debug"})
		if err != nil {
			t.Fatalf("New(%q): %v", format, err)
		}
		if !logger.Core().Enabled(-1) {
			t.Fatalf("format %q: expected debug level enabled", format)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected nop logger")
	}
}
