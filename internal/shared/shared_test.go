package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLogger(t *testing.T) {
	t.Run("SetLogLevel", func(t *testing.T) {
		tc := []struct {
			level string
			want  log.Level
		}{
			{"debug", log.DebugLevel},
			{"warn", log.WarnLevel},
			{"error", log.ErrorLevel},
			{"nonsense", log.InfoLevel},
		}

		for _, tt := range tc {
			t.Run(tt.level, func(t *testing.T) {
				l := NewLogger(&bytes.Buffer{})
				SetLogLevel(l, tt.level)
				if l.GetLevel() != tt.want {
					t.Errorf("SetLogLevel(%q) = %v, want %v", tt.level, l.GetLevel(), tt.want)
				}
			})
		}
	})

	t.Run("WithLogger", func(t *testing.T) {
		var buf bytes.Buffer
		l := WithLogger(NewLogger(&buf), "identity", "abc")
		l.Info("hello")

		if !strings.Contains(buf.String(), "identity=abc") {
			t.Errorf("expected child logger to carry identity key, got %q", buf.String())
		}
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected unique ids")
	}
	if len(a) != 36 {
		t.Errorf("expected uuid string length 36, got %d", len(a))
	}
}
