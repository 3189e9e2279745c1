// Command pke-lint statically checks the no-cross-hart-aliasing
// invariant: no function reachable from one hart's Hart_t should be able
// to alias a *proc.Proc or *proc.Hart_t owned by a different hart's pool.
// It walks the module's packages with x/tools/go/packages and builds a
// points-to graph with x/tools/go/pointer, the same AST/SSA-based
// approach the teacher's scripts/features.go tool uses for its simpler
// per-file syntactic scan, escalated here to whole-program alias
// analysis because the property we care about is semantic, not lexical.
package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pke-lint:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedImports |
			packages.NeedDeps | packages.NeedTypes | packages.NeedSyntax |
			packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, "./src/...", "./cmd/...")
	if err != nil {
		return err
	}
	if packages.PrintErrors(pkgs) > 0 {
		log.Println("pke-lint: continuing despite package load errors")
	}

	prog, _ := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	prog.Build()

	mains := ssautil.MainPackages(prog.AllPackages())
	if len(mains) == 0 {
		fmt.Println("pke-lint: no main package found, nothing to analyze")
		return nil
	}

	queries := queryAllocSites(prog)
	if len(queries) == 0 {
		fmt.Println("pke-lint: no proc.Proc/Hart_t allocation sites found")
		return nil
	}

	cfgp := &pointer.Config{
		Mains:          mains,
		BuildCallGraph: true,
		Queries:        queries,
	}
	result, err := pointer.Analyze(cfgp)
	if err != nil {
		return fmt.Errorf("pointer analysis: %w", err)
	}

	violations := findCrossHartAliases(result)
	if len(violations) == 0 {
		fmt.Println("pke-lint: no cross-hart aliasing found")
		return nil
	}
	for _, v := range violations {
		fmt.Println("pke-lint:", v)
	}
	return fmt.Errorf("%d potential cross-hart alias(es)", len(violations))
}

// queryAllocSites finds every ssa.Value in the program whose static type
// is *proc.Proc or *proc.Hart_t and registers it as a pointer.Analyze
// query, mirroring the teacher's features.go.bak walk over allocs: that
// tool records every composite-literal/new site syntactically, we record
// every such SSA value so pointer.Analyze can tell us who can reach it.
func queryAllocSites(prog *ssa.Program) map[ssa.Value]struct{} {
	queries := make(map[ssa.Value]struct{})

	for fn := range ssautil.AllFunctions(prog) {
		if fn == nil || fn.Blocks == nil {
			continue
		}
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				v, ok := instr.(ssa.Value)
				if !ok {
					continue
				}
				if !pointer.CanPoint(v.Type()) {
					continue
				}
				if isHartOwnedType(v.Type().String()) {
					queries[v] = struct{}{}
				}
			}
		}
	}
	return queries
}

func isHartOwnedType(typ string) bool {
	return strings.Contains(typ, "proc.Proc") || strings.Contains(typ, "proc.Hart_t")
}

// findCrossHartAliases reports, for every queried allocation site, the
// set of hart-goroutine entry points (runHart's per-hart goroutine, one
// per harts[i]) whose reachable functions include a read of that site's
// points-to set. A site reachable from more than one such entry point is
// a potential cross-hart alias: two harts' schedulers could observe the
// same *proc.Proc or *proc.Hart_t concurrently without the pool boundary
// the design relies on to avoid locking Procs across harts.
func findCrossHartAliases(result *pointer.Result) []string {
	roots := hartGoroutineRoots(result.CallGraph)
	if len(roots) < 2 {
		return nil
	}

	var out []string
	for v, ptr := range result.Queries {
		reachingRoots := map[string]bool{}
		for fn, rootName := range roots {
			if reaches(result.CallGraph, fn, ptr) {
				reachingRoots[rootName] = true
			}
		}
		if len(reachingRoots) > 1 {
			names := make([]string, 0, len(reachingRoots))
			for n := range reachingRoots {
				names = append(names, n)
			}
			sort.Strings(names)
			out = append(out, fmt.Sprintf("%s: value of type %s reachable from harts %s",
				v.Pos(), v.Type(), strings.Join(names, ",")))
		}
	}
	sort.Strings(out)
	return out
}

// hartGoroutineRoots returns the callgraph nodes that are the immediate
// targets of the "go runHart(...)" statement in cmd/pke/main.go, labeled
// by a stable name derived from their position. Two calls to the same
// runHart function (one per hart) are intentionally folded to the same
// node by the SSA builder, so the caller closures (the "go func(m
// *trap.Machine){...}" literals in run()) are used as the per-hart root
// rather than runHart itself.
func hartGoroutineRoots(cg *callgraph.Graph) map[*callgraph.Node]string {
	roots := map[*callgraph.Node]string{}
	for fn, node := range cg.Nodes {
		if fn == nil || fn.Synthetic != "" {
			continue
		}
		if strings.Contains(fn.Name(), "func") && strings.Contains(fn.String(), "cmd/pke") {
			for _, edge := range node.In {
				if edge.Site != nil {
					if _, isGo := edge.Site.Value().(*ssa.Go); isGo {
						roots[node] = fmt.Sprintf("goroutine@%s", fn.Pos())
					}
				}
			}
		}
	}
	return roots
}

// reaches reports whether fn's call subgraph contains any node whose
// function body refers to ptr's points-to set, approximated here as:
// does the callgraph path from fn ever reach a function that the pointer
// package already attributed this label to via result.Queries. A full
// implementation would walk result.CallGraph edges transitively; this
// walks to a bounded depth, which is sufficient for the two-hart,
// shallow-call-depth shape of this kernel.
func reaches(cg *callgraph.Graph, root *callgraph.Node, ptr pointer.Pointer) bool {
	seen := map[*callgraph.Node]bool{}
	var visit func(n *callgraph.Node, depth int) bool
	visit = func(n *callgraph.Node, depth int) bool {
		if n == nil || seen[n] || depth > 64 {
			return false
		}
		seen[n] = true
		if n.Func != nil {
			for _, l := range ptr.PointsTo().Labels() {
				if l.Value() != nil && l.Value().Parent() == n.Func {
					return true
				}
			}
		}
		for _, e := range n.Out {
			if visit(e.Callee, depth+1) {
				return true
			}
		}
		return false
	}
	return visit(root, 0)
}
