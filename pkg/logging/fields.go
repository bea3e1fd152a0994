package logging

import "time"

// Field is one structured key/value pair on a log line
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field      { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field    { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field          { return Field{Key: key, Value: value} }
func Any(key string, value any) Field            { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d.String()} }

// Error records err under "error"; a nil error logs as null
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Service fields

func Component(name string) Field   { return String("component", name) }
func Operation(op string) Field     { return String("operation", op) }
func RequestID(id string) Field     { return String("request_id", id) }
func Path(p string) Field           { return String("path", p) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
func Count(n int) Field             { return Int("count", n) }

// Engine fields

func NodeID(id string) Field      { return String("node_id", id) }
func ClusterID(id string) Field   { return String("cluster_id", id) }
func Zoom(z float64) Field        { return Float64("zoom", z) }
func LODLevel(level string) Field { return String("lod", level) }
