package proto

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// NewMessage builds a Struct from Go values. Values structpb has no kind
// for are sent as their fmt.Sprint text, so building a reply never fails.
func NewMessage(fields map[string]any) *structpb.Struct {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for k, v := range fields {
		val, err := structpb.NewValue(v)
		if err != nil {
			val = structpb.NewStringValue(fmt.Sprint(v))
		}
		s.Fields[k] = val
	}
	return s
}

// String returns the string field key, or "" when absent or not a string.
func String(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	v, ok := s.GetFields()[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// Int64 returns the numeric field key truncated to int64, or 0.
func Int64(s *structpb.Struct, key string) int64 {
	if s == nil {
		return 0
	}
	v, ok := s.GetFields()[key]
	if !ok {
		return 0
	}
	return int64(v.GetNumberValue())
}

// FormatTime renders t as RFC 3339 in UTC; the zero time becomes "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Time parses a field written by FormatTime. Empty or invalid values give
// the zero time.
func Time(s *structpb.Struct, key string) time.Time {
	t, err := time.Parse(time.RFC3339, String(s, key))
	if err != nil {
		return time.Time{}
	}
	return t
}
