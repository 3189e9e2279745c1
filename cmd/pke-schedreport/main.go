// Command pke-schedreport parses a runtime/pprof CPU profile captured
// while cmd/pke was running (via --cpuprofile) and reports sample counts
// grouped by package, counting every frame of each sampled stack (so a
// package is charged for time spent in its callees too).
// The profile is decoded with github.com/google/pprof/profile, the
// library backing `go tool pprof`, rather than hand-rolling a gzip/proto
// reader.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/google/pprof/profile"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: pke-schedreport <cpu.pprof>")
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "pke-schedreport:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	prof, err := profile.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing profile: %w", err)
	}

	samples := sampleValueIndex(prof, "samples")
	totals := make(map[string]int64)

	for _, s := range prof.Sample {
		if samples < 0 || samples >= len(s.Value) {
			continue
		}
		for _, loc := range s.Location {
			for _, line := range loc.Line {
				if line.Function == nil {
					continue
				}
				pkg := functionPackage(line.Function.Name)
				totals[pkg] += s.Value[samples]
			}
		}
	}

	report(totals)
	return nil
}

func sampleValueIndex(prof *profile.Profile, name string) int {
	for i, st := range prof.SampleType {
		if st.Type == name {
			return i
		}
	}
	if len(prof.SampleType) > 0 {
		return 0
	}
	return -1
}

// functionPackage trims a fully qualified function name
// (github.com/rvpke/kernel/src/sched.Schedule) down to its last path
// component (sched), the granularity this report groups by.
func functionPackage(fn string) string {
	depth := 0
	last := 0
	for i, r := range fn {
		if r == '/' {
			last = i + 1
		}
		if r == '.' {
			depth++
		}
	}
	_ = depth
	dot := -1
	for i := len(fn) - 1; i >= last; i-- {
		if fn[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return fn
	}
	return fn[last:dot]
}

func report(totals map[string]int64) {
	type row struct {
		pkg   string
		count int64
	}
	rows := make([]row, 0, len(totals))
	var sum int64
	for k, v := range totals {
		rows = append(rows, row{k, v})
		sum += v
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].count > rows[j].count })

	fmt.Printf("%-20s %10s %8s\n", "PACKAGE", "SAMPLES", "PCT")
	for _, r := range rows {
		pct := 0.0
		if sum > 0 {
			pct = 100 * float64(r.count) / float64(sum)
		}
		fmt.Printf("%-20s %10d %7.1f%%\n", r.pkg, r.count, pct)
	}
}
