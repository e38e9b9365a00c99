package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/rs/zerolog"

	"chess-worker/engine"
	"chess-worker/logging"
	"chess-worker/rules"
)

func main() {
	depthFlag := flag.Int("depth", 10, "search depth in plies")
	repeatFlag := flag.Int("repeat", 1, "number of searches to run")
	fenFlag := flag.String("fen", "", "FEN to search (empty = startpos)")
	ttFlag := flag.Float64("tt-mb", engine.DefaultTTMB, "transposition table size in MB")
	cutsFlag := flag.Bool("cuts", false, "print pruning counters after each search")
	logLevel := flag.String("log-level", "warn", "engine log level; debug prints every depth")
	cpuProfile := flag.String("cpuprofile", "", "write CPU profile to file")
	memProfile := flag.String("memprofile", "", "write memory profile (heap) to file")
	flag.Parse()

	if *depthFlag <= 0 {
		log.Fatalf("depth must be positive, got %d", *depthFlag)
	}

	if *cpuProfile != "" {
		cpuFile, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatalf("could not create CPU profile: %v", err)
		}
		if err := pprof.StartCPUProfile(cpuFile); err != nil {
			log.Fatalf("could not start CPU profile: %v", err)
		}
		defer func() {
			pprof.StopCPUProfile()
			cpuFile.Close()
		}()
	}

	fen := rules.FENStartPos
	if *fenFlag != "" {
		fen = *fenFlag
	}
	pos, err := rules.ParsePosition(fen)
	if err != nil {
		log.Fatalf("bad fen: %v", err)
	}

	depth := *depthFlag
	repeat := *repeatFlag
	fmt.Printf("searchbench: fen=%q depth=%d repeat=%d\n", fen, depth, repeat)

	logger := logging.New(*logLevel, true, os.Stderr)
	searcher := engine.NewSearcher(engine.NewTransTable(*ttFlag), logger)

	var totalNodes uint64
	startAll := time.Now()
	for i := 0; i < repeat; i++ {
		// every run starts cold, like a new game
		searcher.NewGame()
		res, err := searcher.Search(context.Background(), pos, engine.Limits{Depth: depth})
		if err != nil {
			log.Fatalf("search: %v", err)
		}
		totalNodes += res.NodesTotal
		fmt.Printf("iteration %d: bestmove %v score %s nodes %d nps %d time=%v\n",
			i+1, res.Best, engine.FormatScore(res.Score), res.NodesTotal, res.NPS, res.Elapsed)
		if *cutsFlag {
			printCuts(logger, searcher.CutStats())
		}
	}
	totalElapsed := time.Since(startAll)
	fmt.Printf("total time: %v nodes: %d\n", totalElapsed, totalNodes)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatalf("could not create memory profile: %v", err)
		}
		defer f.Close()

		runtime.GC() // get up-to-date heap info
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatalf("could not write memory profile: %v", err)
		}
	}
}

func printCuts(logger zerolog.Logger, c engine.CutStats) {
	logger.Info().Object("cuts", c).Msg("pruning")
}
