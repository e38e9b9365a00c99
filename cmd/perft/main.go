package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"chess-worker/rules"
)

func main() {
	fen := flag.String("fen", rules.FENStartPos, "FEN string (defaults to initial position)")
	depth := flag.Int("depth", 0, "Perft depth (required)")
	divide := flag.Bool("divide", false, "Print per-move node counts at root")
	verify := flag.Bool("verify", false, "Compare the divide against an independent move generator")
	repeat := flag.Int("repeat", 1, "Repeat perft N times and report aggregate (for steadier timings)")
	label := flag.String("label", "", "Optional label prefix for one-line output")
	cpuProf := flag.String("cpuprofile", "", "Write CPU profile to file during run")
	memProf := flag.String("memprofile", "", "Write heap profile to file after run")
	flag.Parse()

	if *depth <= 0 {
		fmt.Fprintln(os.Stderr, "-depth must be > 0")
		os.Exit(2)
	}

	pos, err := rules.ParsePosition(*fen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		os.Exit(2)
	}

	if *divide || *verify {
		ours := divideByName(pos, *depth)
		if *verify {
			diffs := compare(ours, oracleDivide(*fen, *depth))
			for _, d := range diffs {
				fmt.Println(d)
			}
			if len(diffs) > 0 {
				os.Exit(1)
			}
			fmt.Printf("verified %d root moves\n", len(ours))
			return
		}
		moves := maps.Keys(ours)
		slices.Sort(moves)
		var sum uint64
		for _, m := range moves {
			fmt.Printf("%s: %d\n", m, ours[m])
			sum += ours[m]
		}
		fmt.Printf("Total: %d\n", sum)
		return
	}

	if *cpuProf != "" {
		f, err := os.Create(*cpuProf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "creating cpuprofile: %v\n", err)
			os.Exit(2)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "start cpu profile: %v\n", err)
			os.Exit(2)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	var totalNodes uint64
	start := time.Now()
	for i := 0; i < *repeat; i++ {
		totalNodes += pos.Perft(*depth)
	}
	elapsed := time.Since(start)
	nps := float64(totalNodes) / elapsed.Seconds()

	// Depth Nodes Time NPS
	fmt.Printf("%s \t%d \t\t%d \t\t%s \t%.0f\n", *label, *depth, totalNodes, elapsed, nps)

	if *memProf != "" {
		f, err := os.Create(*memProf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "creating memprofile: %v\n", err)
			os.Exit(2)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "write heap profile: %v\n", err)
			os.Exit(2)
		}
		_ = f.Close()
	}
}

func divideByName(pos rules.Position, depth int) map[string]uint64 {
	out := make(map[string]uint64)
	for m, n := range pos.PerftDivide(depth) {
		out[m.String()] = n
	}
	return out
}

// compare lists every root move whose count differs, in move order.
func compare(ours, theirs map[string]uint64) []string {
	all := append(maps.Keys(ours), maps.Keys(theirs)...)
	slices.Sort(all)
	all = slices.Compact(all)

	var diffs []string
	for _, m := range all {
		got, okGot := ours[m]
		want, okWant := theirs[m]
		switch {
		case !okGot:
			diffs = append(diffs, fmt.Sprintf("%s: missing, oracle has %d", m, want))
		case !okWant:
			diffs = append(diffs, fmt.Sprintf("%s: not legal for the oracle, we count %d", m, got))
		case got != want:
			diffs = append(diffs, fmt.Sprintf("%s: got %d want %d", m, got, want))
		}
	}
	return diffs
}
