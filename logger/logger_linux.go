// +build linux

package logger

import sl "log/syslog"

// Priority mirrors log/syslog's severity|facility encoding so callers
// on every platform this package supports can share one type.
type Priority = sl.Priority

// LOG_DAEMON/LOG_DEBUG are the only facility and severity the demo
// binaries in cmd/ select; re-exported here so callers don't need to
// import log/syslog themselves just to build a Priority.
const (
	LOG_DAEMON = sl.LOG_DAEMON
	LOG_DEBUG  = sl.LOG_DEBUG
)

// openSyslog dials the local syslog daemon, backing Syslog on Linux.
func openSyslog(pri Priority, tag string) (syslogWriter, error) {
	return sl.New(pri, tag)
}
