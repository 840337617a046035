package slub

import (
	"fmt"
	"os"
)

// logAlloc enables allocation-path logging, controlled by the
// MEMKIT_LOG_ALLOC env var. Off by default.
var logAlloc = os.Getenv("MEMKIT_LOG_ALLOC") != ""

func debugLogf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[slub] "+format+"\n", args...)
}
