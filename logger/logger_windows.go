// +build windows

package logger

import "os"

// Priority mirrors the severity|facility encoding from
// /usr/include/sys/syslog.h, trimmed to the values this module
// selects, so callers can share one type with the Linux build.
type Priority int

// LOG_DAEMON/LOG_DEBUG match the numeric values log/syslog uses on
// Linux; windows has no log/syslog to import the constants from.
const (
	LOG_DAEMON Priority = 3 << 3
	LOG_DEBUG  Priority = 7
)

// openSyslog falls back to stderr: log/syslog has no Windows
// implementation, matching the teacher's own fallback.
func openSyslog(pri Priority, tag string) (syslogWriter, error) {
	return os.Stderr, nil
}
