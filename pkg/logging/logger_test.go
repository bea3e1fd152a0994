package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// newTestLogger pins the clock so lines are comparable
func newTestLogger(level Level) (*JSONLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, level)
	l.sink.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %q is not JSON: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{" Info ", InfoLevel},
		{"warn", WarnLevel},
		{"Warning", WarnLevel},
		{"error", ErrorLevel},
		{"verbose", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for level, want := range map[Level]string{
		DebugLevel: "DEBUG",
		InfoLevel:  "INFO",
		WarnLevel:  "WARN",
		ErrorLevel: "ERROR",
		Level(9):   "UNKNOWN",
		Level(-1):  "UNKNOWN",
	} {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

// TestJSONLogger_FlatLine tests that fields sit beside time, level and msg
func TestJSONLogger_FlatLine(t *testing.T) {
	l, buf := newTestLogger(InfoLevel)
	l.Info("scene loaded", Component("api"), Int("nodes", 1200), Zoom(0.5))

	want := `{"time":"2026-03-01T12:00:00Z","level":"INFO","msg":"scene loaded","component":"api","nodes":1200,"zoom":0.5}` + "\n"
	if buf.String() != want {
		t.Errorf("got  %s\nwant %s", buf.String(), want)
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	l, buf := newTestLogger(WarnLevel)
	l.Debug("virtualize")
	l.Info("configuration updated")
	l.Warn("malformed node", NodeID("n1"))
	l.Error("graph load failed", Error(errors.New("bad yaml")))

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines at WARN, got %d: %s", len(lines), buf)
	}
	if lines[0]["level"] != "WARN" || lines[0]["node_id"] != "n1" {
		t.Errorf("unexpected warn line %v", lines[0])
	}
	if lines[1]["level"] != "ERROR" || lines[1]["error"] != "bad yaml" {
		t.Errorf("unexpected error line %v", lines[1])
	}
}

// TestJSONLogger_WithSharesLevel tests that children follow a level change on the parent
func TestJSONLogger_WithSharesLevel(t *testing.T) {
	l, buf := newTestLogger(InfoLevel)
	engine := l.With(Component("engine"))

	engine.Debug("hidden")
	l.SetLevel(DebugLevel)
	engine.Debug("virtualize", LODLevel("low"))

	if engine.GetLevel() != DebugLevel {
		t.Errorf("child level = %v, want DEBUG", engine.GetLevel())
	}
	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["component"] != "engine" || lines[0]["lod"] != "low" {
		t.Errorf("unexpected line %v", lines[0])
	}
}

func TestJSONLogger_RepeatedKeys(t *testing.T) {
	l, buf := newTestLogger(InfoLevel)
	child := l.With(Component("api"), Operation("load"))
	child.Info("scene loaded", Operation("reload"), Count(3))

	want := `"component":"api","operation":"reload","count":3}`
	if !strings.HasSuffix(strings.TrimSpace(buf.String()), want) {
		t.Errorf("line %s should end with %s", buf.String(), want)
	}
}

func TestJSONLogger_UnencodableValue(t *testing.T) {
	l, buf := newTestLogger(InfoLevel)
	l.Info("odd", Any("ch", make(chan int)), Float64("nan", 0))

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %q", buf.String())
	}
	if _, ok := lines[0]["ch"].(string); !ok {
		t.Errorf("channel should fall back to its fmt form, got %v", lines[0]["ch"])
	}
}

func TestJSONLogger_ConcurrentWrites(t *testing.T) {
	l, buf := newTestLogger(InfoLevel)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			child := l.With(Int("worker", i))
			for j := 0; j < 50; j++ {
				child.Info("tick", Count(j))
			}
		}(i)
	}
	wg.Wait()

	if got := len(decodeLines(t, buf)); got != 400 {
		t.Errorf("expected 400 intact lines, got %d", got)
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		field Field
		key   string
		value any
	}{
		{Uint64("hits", 7), "hits", uint64(7)},
		{Bool("culling", true), "culling", true},
		{Duration("took", 1500 * time.Millisecond), "took", "1.5s"},
		{Latency(2 * time.Millisecond), "latency", "2ms"},
		{Error(nil), "error", nil},
		{RequestID("r-1"), "request_id", "r-1"},
		{ClusterID("c-1"), "cluster_id", "c-1"},
		{Path("/api/v1/viewport"), "path", "/api/v1/viewport"},
	}

	for _, tt := range tests {
		if tt.field.Key != tt.key || tt.field.Value != tt.value {
			t.Errorf("got %+v, want {%s %v}", tt.field, tt.key, tt.value)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("ignored", String("k", "v"))
	l.SetLevel(ErrorLevel)
	if l.GetLevel() != InfoLevel {
		t.Errorf("NopLogger level = %v", l.GetLevel())
	}
	if _, ok := l.With(Component("x")).(NopLogger); !ok {
		t.Error("With should return a NopLogger")
	}
}

func BenchmarkJSONLogger_Info(b *testing.B) {
	l := NewJSONLogger(&bytes.Buffer{}, InfoLevel).With(Component("engine"))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		l.Info("virtualize", LODLevel("medium"), Int("visible", 300), Zoom(0.8))
	}
}

func BenchmarkJSONLogger_Filtered(b *testing.B) {
	l := NewJSONLogger(&bytes.Buffer{}, WarnLevel)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		l.Debug("virtualize", LODLevel("medium"), Int("visible", 300))
	}
}
