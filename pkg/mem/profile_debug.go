//go:build memdebug

package mem

// strictConsistency selects the debug failure policy: untraceable frees
// panic at the call site to surface double-frees and corrupted pointers.
const strictConsistency = true
