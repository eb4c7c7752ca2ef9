package main

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/models"
	"github.com/1F47E/geo-region-index/pkg/region"
)

var (
	numQueries int
	numWorkers int
	benchSeed  int64
	verbose    bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run reverse lookup benchmarks",
	Long:  `Resolves random points inside the loaded extent from several goroutines and reports throughput.`,
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&numQueries, "queries", "q", 100000, "Number of queries to run")
	benchCmd.Flags().IntVarP(&numWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 0, "Random seed (0 uses the current time)")
	benchCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	if numQueries < 1 || numWorkers < 1 {
		return eris.New("bench: queries and workers must be positive")
	}
	e, err := loadEngine(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	extent, err := loadedExtent(e.Hierarchy())
	if err != nil {
		return err
	}

	seed := benchSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	points := randomPoints(rand.New(rand.NewSource(seed)), extent, numQueries)

	fmt.Fprintf(out, "Running %d reverse lookups using %d workers...\n", numQueries, numWorkers)

	var (
		queryCount atomic.Int64
		found      atomic.Int64
		depthSum   atomic.Int64
	)

	start := time.Now()

	var wg sync.WaitGroup
	queriesPerWorker := numQueries / numWorkers

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		startIdx := w * queriesPerWorker
		endIdx := startIdx + queriesPerWorker
		if w == numWorkers-1 {
			endIdx = numQueries
		}

		go func(workerID, start, end int) {
			defer wg.Done()

			for i := start; i < end; i++ {
				p := points[i]
				info, err := e.Resolve(p.Lat, p.Lon)
				if err != nil {
					zap.L().Warn("bench query failed", zap.Int("worker", workerID), zap.Error(err))
					continue
				}
				queryCount.Add(1)
				if !info.Empty() {
					found.Add(1)
					depthSum.Add(int64(len(info.Regions)))
				}

				if verbose && i%1000 == 0 {
					fmt.Fprintf(out, "Worker %d: Query %d resolved %q\n", workerID, i, info.FormatAddress())
				}
			}
		}(w, startIdx, endIdx)
	}

	wg.Wait()
	elapsed := time.Since(start)

	completed := queryCount.Load()
	if completed == 0 {
		return eris.New("bench: no queries completed")
	}
	fmt.Fprintf(out, "\nBenchmark Results:\n")
	fmt.Fprintf(out, "Index: %s\n", e.Stats().IndexKind)
	fmt.Fprintf(out, "Total queries: %d\n", completed)
	fmt.Fprintf(out, "Total time: %v\n", elapsed)
	fmt.Fprintf(out, "Queries per second: %.0f\n", float64(completed)/elapsed.Seconds())
	fmt.Fprintf(out, "Average query time: %v\n", elapsed/time.Duration(completed))
	fmt.Fprintf(out, "Resolved: %d (%.1f%%)\n", found.Load(), 100*float64(found.Load())/float64(completed))
	if found.Load() > 0 {
		fmt.Fprintf(out, "Average depth: %.2f\n", float64(depthSum.Load())/float64(found.Load()))
	}
	return nil
}

// loadedExtent is the union of the province bounds.
func loadedExtent(h *region.Hierarchy) (models.BoundingBox, error) {
	roots := h.Roots()
	if len(roots) == 0 {
		return models.BoundingBox{}, eris.New("no provinces loaded")
	}
	extent := roots[0].Bounds
	for _, r := range roots[1:] {
		extent = extent.Union(r.Bounds)
	}
	return extent, nil
}

// randomPoints draws n uniform points inside box.
func randomPoints(r *rand.Rand, box models.BoundingBox, n int) []models.Location {
	points := make([]models.Location, n)
	for i := range points {
		points[i] = models.Location{
			Lat: box.BottomLeft.Lat + r.Float64()*box.Height(),
			Lon: box.BottomLeft.Lon + r.Float64()*box.Width(),
		}
	}
	return points
}
