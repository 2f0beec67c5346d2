//go:build linux

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/abtreece/karapace-testcontainers/pkg/log"
)

// Notifier speaks the sd_notify protocol for a unit running a topology. A
// disabled Notifier, or one started outside systemd, sends nothing.
type Notifier struct {
	enabled  bool
	watchdog time.Duration
}

// NewNotifier returns a Notifier. A zero watchdog interval falls back to half
// of WatchdogSec when systemd configured one.
func NewNotifier(enabled bool, watchdog time.Duration) *Notifier {
	return &Notifier{enabled: enabled, watchdog: watchdog}
}

// Ready reports the topology as started, with status as its STATUS= line.
func (n *Notifier) Ready(status string) error {
	return n.send(daemon.SdNotifyReady, "STATUS="+status)
}

// Status updates the STATUS= line.
func (n *Notifier) Status(status string) error {
	return n.send("STATUS=" + status)
}

// Stopping reports that teardown began.
func (n *Notifier) Stopping() error {
	return n.send(daemon.SdNotifyStopping, "STATUS=tearing down containers")
}

func (n *Notifier) send(states ...string) error {
	if !n.enabled {
		return nil
	}

	state := strings.Join(states, "\n")
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return fmt.Errorf("failed to notify systemd (%s): %w", states[0], err)
	}
	if sent {
		log.Debug("Notified systemd: %s", strings.Join(states, ", "))
	}
	return nil
}

func (n *Notifier) interval() time.Duration {
	if n.watchdog > 0 {
		return n.watchdog
	}
	configured, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warning("Ignoring systemd watchdog settings: %v", err)
		return 0
	}
	return configured / 2
}

// Watchdog pings systemd until ctx is cancelled. A ping is skipped while
// checker reports the topology as not ready, so systemd restarts a unit whose
// containers died.
func (n *Notifier) Watchdog(ctx context.Context, checker Checker) {
	if !n.enabled {
		return
	}
	every := n.interval()
	if every <= 0 {
		return
	}

	log.Info("Starting systemd watchdog (interval: %v)", every)
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if err := checker.Ready(ctx); err != nil {
				log.Warning("Skipping watchdog ping: %v", err)
				continue
			}
			if err := n.send(daemon.SdNotifyWatchdog); err != nil {
				log.Error("%v", err)
			}
		}
	}()
}
