// Package telemetry delivers zone and recording events as key/value items
// to external receivers and exposes Prometheus metrics.
package telemetry

import (
	"context"
	"errors"
	"strings"
)

// Item key prefixes and fixed keys.
const (
	KeyRecordingActive  = "recording-active"
	KeyMonitoringActive = "monitoring-active"
	KeyLatestSnapshot   = "latest-snapshot-filename"
	KeyLatestVideo      = "latest-video-filename"
	KeyRecording        = "recording"
)

// ZoneKey returns the per-zone item key, e.g. "recording-active.front_door".
func ZoneKey(prefix, zone string) string {
	return prefix + "." + strings.ToLower(strings.ReplaceAll(strings.TrimSpace(zone), " ", "_"))
}

// Sender delivers one key/value item.
type Sender interface {
	Name() string
	Send(ctx context.Context, key, value string) error
	Close() error
}

// Multi fans every item out to all senders and joins their errors.
type Multi []Sender

// Name implements Sender.
func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

// Send implements Sender.
func (m Multi) Send(ctx context.Context, key, value string) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, key, value); err != nil {
			errs = append(errs, &SendError{Sender: s.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// Close implements Sender.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// SendError names the sender that failed.
type SendError struct {
	Sender string
	Err    error
}

func (e *SendError) Error() string { return e.Sender + ": " + e.Err.Error() }

func (e *SendError) Unwrap() error { return e.Err }
