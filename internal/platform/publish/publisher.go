// Package publish pushes computed results to dashboards over Redis pub/sub
// or MQTT.
package publish

import (
	"context"
	"fmt"
	"strings"
)

// Subject is a hierarchical destination such as {"ed", "logan-hospital",
// "remaining"}. Each backend joins it with its own separator.
type Subject []string

type Publisher interface {
	Publish(ctx context.Context, subject Subject, payload interface{}) error
	Backend() string
	Close() error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, Subject, interface{}) error { return nil }
func (Nop) Backend() string                                      { return "none" }
func (Nop) Close() error                                         { return nil }

func (s Subject) join(sep string) (string, error) {
	if len(s) == 0 {
		return "", fmt.Errorf("empty subject")
	}
	for _, part := range s {
		if part == "" || strings.Contains(part, sep) {
			return "", fmt.Errorf("invalid subject segment %q", part)
		}
	}
	return strings.Join(s, sep), nil
}
