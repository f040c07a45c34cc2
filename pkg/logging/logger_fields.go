package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Uint32(key string, value uint32) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Domain field helpers

// Port tags a log entry with the serial port a session is bound to
func Port(name string) Field {
	return Field{Key: "port", Value: name}
}

// NodeKey tags a log entry with a mesh node identifier
func NodeKey(key string) Field {
	return Field{Key: "node", Value: key}
}

// ConfigID tags a log entry with a configuration round sequence id
func ConfigID(id uint32) Field {
	return Field{Key: "config_id", Value: id}
}
