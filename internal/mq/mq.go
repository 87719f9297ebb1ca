// Package mq publishes inventory events to a configurable broker.
// Consumers (restock dashboards, notification workers) live outside
// this service.
package mq

import (
	"context"
	"log/slog"
)

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}

// NoopBackend logs published events and drops them. Used when no
// broker is configured.
type NoopBackend struct{}

func (NoopBackend) Publish(_ context.Context, channel string, data []byte, _ map[string]string) (string, error) {
	slog.Debug("dropping event, no broker configured", "channel", channel, "bytes", len(data))
	return "", nil
}

func (NoopBackend) Close() error { return nil }
