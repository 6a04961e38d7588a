// Package invariant reports programming-contract violations such as a double
// release of a grid cell. Builds tagged farmdebug panic on the first
// violation; other builds log a warning and the caller skips the mutation.
package invariant

import (
	"fmt"
	"log/slog"
)

// Violated reports a broken caller contract. args are slog key/value pairs.
func Violated(msg string, args ...any) {
	if strict {
		panic(fmt.Sprintf("invariant violated: %s %v", msg, args))
	}
	slog.Warn("invariant violated: "+msg, args...)
}

// Strict reports whether violations panic in this build.
func Strict() bool { return strict }
