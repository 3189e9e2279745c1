// Package klog is the kernel's diagnostic print path, standing in for
// the original source's sprint(): every boot/fault message the kernel
// itself emits (as opposed to a user program's print syscall output)
// goes through here instead of a bare fmt.Printf, so a test can swap the
// destination for a buffer and assert on it.
package klog

import (
	"fmt"
	"io"
	"os"
)

// Out is where kernel diagnostics are written. Defaults to os.Stdout;
// tests reassign it to a bytes.Buffer for the duration of the test.
var Out io.Writer = os.Stdout

// Printf formats and writes one diagnostic line to Out.
func Printf(format string, args ...interface{}) {
	fmt.Fprintf(Out, format, args...)
}
