// Package debug provides the leveled trace logger used throughout the
// messenger. It mirrors the shape of go-amqp's internal/debug package:
// a single package-level sink gated by an environment variable, with no
// external logging dependency, so the host application's own logger is
// never shadowed.
package debug

import (
	"fmt"
	"os"
	"strconv"
)

// level is read once from AMQPMSGR_DEBUG at process start. 0 disables
// all tracing; higher values emit progressively more detail, same
// convention as go-amqp's DEBUG_LEVEL.
var level = func() int {
	v, _ := strconv.Atoi(os.Getenv("AMQPMSGR_DEBUG"))
	return v
}()

// Log writes a trace line to stderr if the configured level is at least l.
func Log(l int, format string, args ...any) {
	if level <= 0 || l > level {
		return
	}
	fmt.Fprintf(os.Stderr, "[amqpmessenger] "+format+"\n", args...)
}

// Enabled reports whether tracing at level l would produce output.
func Enabled(l int) bool {
	return level > 0 && l <= level
}
