package buddy

import (
	"fmt"
	"os"
)

// logAlloc enables allocation-path logging, controlled by the
// MEMKIT_LOG_ALLOC env var. Off by default; the paths it guards are hot.
var logAlloc = os.Getenv("MEMKIT_LOG_ALLOC") != ""

func debugLogf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[buddy] "+format+"\n", args...)
}
