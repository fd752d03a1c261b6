// Package sdnotify reports service state to systemd. Without NOTIFY_SOCKET
// every call is a no-op, so the server runs unchanged outside systemd.
package sdnotify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"
)

// Notifier sends state strings to one notification socket.
type Notifier struct {
	socket string
	logger *slog.Logger
}

// FromEnv returns a Notifier for $NOTIFY_SOCKET.
func FromEnv(logger *slog.Logger) *Notifier {
	return &Notifier{socket: os.Getenv("NOTIFY_SOCKET"), logger: logger}
}

// Enabled reports whether a notification socket is configured.
func (n *Notifier) Enabled() bool {
	return n.socket != ""
}

// Ready reports that startup, or a reload, has finished.
func (n *Notifier) Ready() { n.notify("READY=1") }

// Reloading reports that configuration is being reloaded.
func (n *Notifier) Reloading() { n.notify("RELOADING=1") }

// Stopping reports that graceful shutdown has begun.
func (n *Notifier) Stopping() { n.notify("STOPPING=1") }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) {
	n.notify("STATUS=" + fmt.Sprintf(format, args...))
}

// notify sends state and logs failures. systemd delivery problems are
// never fatal to the server.
func (n *Notifier) notify(state string) {
	if err := n.send(state); err != nil {
		n.logger.Warn("sd_notify_failed",
			"state", state,
			"error", err,
			"component", "main",
		)
	}
}

func (n *Notifier) send(state string) error {
	if n.socket == "" {
		return nil
	}

	conn, err := net.Dial("unixgram", n.socket)
	if err != nil {
		return fmt.Errorf("sdnotify: dial %s: %w", n.socket, err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(state)); err != nil {
		return fmt.Errorf("sdnotify: write %q: %w", state, err)
	}
	return nil
}

// WatchdogInterval returns how often to ping the watchdog: half the
// WATCHDOG_USEC timeout. Returns 0 if the watchdog is not enabled.
func WatchdogInterval() time.Duration {
	usec, err := strconv.ParseInt(os.Getenv("WATCHDOG_USEC"), 10, 64)
	if err != nil || usec <= 0 {
		return 0
	}
	return time.Duration(usec) * time.Microsecond / 2
}

// RunWatchdog pings the watchdog every interval until ctx is done.
func (n *Notifier) RunWatchdog(ctx context.Context, interval time.Duration) {
	if interval <= 0 || !n.Enabled() {
		return
	}
	n.logger.Info("watchdog_enabled",
		"interval", interval.String(),
		"component", "main",
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.notify("WATCHDOG=1")
		}
	}
}
