package logging

import "testing"

func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "INFO", " warn ", "error"} {
		logger, err := New(level, "test")
		if err != nil {
			t.Fatalf("level %q: unexpected error: %v", level, err)
		}
		_ = logger.Sync()
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("loud", "test"); err == nil {
		t.Error("expected error for unknown level")
	}
}
