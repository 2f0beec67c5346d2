//go:build !linux

package service

import (
	"context"
	"time"
)

// Notifier does nothing outside Linux.
type Notifier struct{}

// NewNotifier returns a Notifier that sends nothing.
func NewNotifier(bool, time.Duration) *Notifier {
	return &Notifier{}
}

func (*Notifier) Ready(string) error  { return nil }
func (*Notifier) Status(string) error { return nil }
func (*Notifier) Stopping() error     { return nil }

func (*Notifier) Watchdog(context.Context, Checker) {}
