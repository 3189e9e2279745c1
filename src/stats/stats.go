// Package stats provides compile-time-gated counters for scheduler and
// allocator diagnostics, following the teacher's pattern of counters
// that compile to no-ops unless Stats/Timing is flipped on. The
// teacher's Rdtsc reads the CPU timestamp counter through a patched Go
// runtime intrinsic unavailable to us; time.Now() is the idiomatic
// stand-in in ordinary Go and is precise enough for tick-granularity
// scheduler timing.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const Stats = false
const Timing = false

/// Now returns a monotonic timestamp in nanoseconds when timing is
/// enabled, used by Cycles_t.Add to measure elapsed scheduler or
/// allocator work.
func Now() uint64 {
	if Timing {
		return uint64(time.Now().UnixNano())
	}
	return 0
}

/// Counter_t is a statistical counter, e.g. dispatches per hart.
type Counter_t int64

/// Cycles_t holds an elapsed-time accumulator in nanoseconds.
type Cycles_t int64

/// Inc increments the counter.
func (c *Counter_t) Inc() {
	if Stats {
		atomic.AddInt64((*int64)(c), 1)
	}
}

/// Add adds elapsed nanoseconds since start to the counter.
func (c *Cycles_t) Add(start uint64) {
	if Timing {
		atomic.AddInt64((*int64)(c), int64(Now()-start))
	}
}

/// Stats2String converts a struct of counters to a printable string.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
		if strings.HasSuffix(t, "Cycles_t") {
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}
