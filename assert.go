package ll

import "fmt"

// invariant panics if cond is false. It marks assumptions about internal
// consistency that indicate a programming error rather than a recoverable
// condition, converting LL_ASSERT-on-invariants into debug assertions
// rather than error returns.
func invariant(cond bool, format string, args ...interface{}) {
	if !cond {
		panic("ll: invariant violated: " + fmt.Sprintf(format, args...))
	}
}
