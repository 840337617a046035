//go:build !memdebug

package mem

// strictConsistency selects the release failure policy: untraceable frees
// are logged and leaked instead of crashing.
const strictConsistency = false
