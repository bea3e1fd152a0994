// Package logging is the structured JSON logger shared by the engine, the
// HTTP host and the CLI.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger that adds fields to every line
	With(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// sink is shared by a logger and all of its children, so a level change made
// on any of them (for example on SIGHUP) applies to the whole tree.
type sink struct {
	mu    sync.Mutex
	w     io.Writer
	level atomic.Int32
	now   func() time.Time
}

// JSONLogger writes one flat JSON object per line:
//
//	{"time":"...","level":"INFO","msg":"scene loaded","component":"api","nodes":1200}
//
// Fields keep their insertion order; a repeated key keeps its last value.
type JSONLogger struct {
	sink   *sink
	fields []Field
}

// NewJSONLogger creates a logger writing to w at level and above
func NewJSONLogger(w io.Writer, level Level) *JSONLogger {
	s := &sink{w: w, now: time.Now}
	s.level.Store(int32(level))
	return &JSONLogger{sink: s}
}

func (l *JSONLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *JSONLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *JSONLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *JSONLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// With returns a child sharing the writer and level
func (l *JSONLogger) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &JSONLogger{sink: l.sink, fields: merged}
}

func (l *JSONLogger) SetLevel(level Level) {
	l.sink.level.Store(int32(level))
}

func (l *JSONLogger) GetLevel() Level {
	return Level(l.sink.level.Load())
}

func (l *JSONLogger) log(level Level, msg string, fields []Field) {
	if level < l.GetLevel() {
		return
	}

	var buf bytes.Buffer
	buf.WriteString(`{"time":`)
	writeValue(&buf, l.sink.now().UTC().Format(time.RFC3339Nano))
	buf.WriteString(`,"level":`)
	writeValue(&buf, level.String())
	buf.WriteString(`,"msg":`)
	writeValue(&buf, msg)

	for _, f := range dedupe(l.fields, fields) {
		buf.WriteByte(',')
		writeValue(&buf, f.Key)
		buf.WriteByte(':')
		writeValue(&buf, f.Value)
	}
	buf.WriteString("}\n")

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = l.sink.w.Write(buf.Bytes())
}

// dedupe concatenates preset and call fields, keeping the last value per key
// at the position the key first appeared
func dedupe(preset, fields []Field) []Field {
	out := make([]Field, 0, len(preset)+len(fields))
	for _, group := range [][]Field{preset, fields} {
	next:
		for _, f := range group {
			for i := range out {
				if out[i].Key == f.Key {
					out[i].Value = f.Value
					continue next
				}
			}
			out = append(out, f)
		}
	}
	return out
}

// writeValue encodes v as JSON, falling back to its fmt form
func writeValue(buf *bytes.Buffer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprint(v))
	}
	buf.Write(data)
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field)   {}
func (NopLogger) Info(string, ...Field)    {}
func (NopLogger) Warn(string, ...Field)    {}
func (NopLogger) Error(string, ...Field)   {}
func (n NopLogger) With(...Field) Logger   { return n }
func (NopLogger) SetLevel(Level)           {}
func (NopLogger) GetLevel() Level          { return InfoLevel }

// NewNopLogger creates a logger that discards all output
func NewNopLogger() Logger {
	return NopLogger{}
}
