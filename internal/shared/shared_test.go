package shared

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestFormatRemaining(t *testing.T) {
	tc := []struct {
		name string
		in   time.Duration
		want string
	}{
		{name: "zero", in: 0, want: "0:00"},
		{name: "negative", in: -time.Second, want: "0:00"},
		{name: "seconds", in: 9 * time.Second, want: "0:09"},
		{name: "minutes", in: 2*time.Minute + 5*time.Second, want: "2:05"},
		{name: "rounds", in: 1500 * time.Millisecond, want: "0:02"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRemaining(tt.in); got != tt.want {
				t.Errorf("FormatRemaining() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateTimeID(t *testing.T) {
	a := GenerateTimeID()
	b := GenerateTimeID()

	if a == b {
		t.Fatal("expected unique ids")
	}

	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("expected valid uuid, got %v", err)
	}
	if parsed.Version() != 7 {
		t.Errorf("expected v7 uuid, got v%d", parsed.Version())
	}
	if a > b {
		t.Errorf("expected time-ordered ids, got %s after %s", b, a)
	}
}

func TestLogger(t *testing.T) {
	t.Run("ParseLogLevel", func(t *testing.T) {
		if ParseLogLevel("DEBUG") != log.DebugLevel {
			t.Error("expected debug level")
		}
		if ParseLogLevel("nonsense") != log.InfoLevel {
			t.Error("expected fallback to info level")
		}
	})

	t.Run("WithLogger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "poller")
		logger.Info("hello")

		if !strings.Contains(buf.String(), "component=poller") {
			t.Errorf("expected child logger fields in output, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "jobsync.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		logger.Info("written")
	})
}
