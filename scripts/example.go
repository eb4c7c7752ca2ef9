package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/engine"
	"github.com/1F47E/geo-region-index/pkg/models"
	"github.com/1F47E/geo-region-index/pkg/region"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	dataPath := os.Getenv("GEO_DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join("data", "geodata")
	}
	level, err := models.ParseLevel(os.Getenv("JETGEO_LEVEL"))
	if err != nil {
		log.Fatal(err)
	}

	// Load every level down to the finest one and build the indexes
	e, err := engine.New(context.Background(), dataPath, level, engine.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Loaded %d regions from %s\n\n", e.Hierarchy().Len(), dataPath)

	// Example 1: Resolve a point in Nanjing
	fmt.Println("=== Reverse lookup ===")
	info, err := e.Resolve(32.053197915979325, 118.85999259252777)
	if err != nil {
		log.Fatal(err)
	}
	if info.Empty() {
		fmt.Println("No region contains the point")
	} else {
		fmt.Printf("%s (adcode %s)\n", info.FormatAddress(), info.Adcode())
		for _, r := range info.Regions {
			fmt.Printf("  - %s: %s %s\n", r.Level, r.Code, r.Name)
		}
	}

	// Example 2: Walk a region code up to its province
	fmt.Println("\n=== Lookup by code ===")
	if deepest, ok := info.Deepest(); ok {
		chain, _ := e.Lookup(deepest.Code)
		fmt.Printf("%s -> %s\n", deepest.Code, chain.FormatAddress())
	}

	// Example 3: Out-of-range input is rejected
	fmt.Println("\n=== Validation ===")
	if _, err := e.Resolve(120, 0); err != nil {
		fmt.Printf("Rejected: %v\n", err)
	}

	// Save the hierarchy
	fmt.Println("\n=== Saving Snapshot ===")
	if err := region.SaveSnapshot("regions.gob", e.Hierarchy()); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Snapshot saved to regions.gob")

	// Load it back
	fmt.Println("\n=== Loading Snapshot ===")
	h, err := region.LoadSnapshot("regions.gob")
	if err != nil {
		log.Fatal(err)
	}
	restored, err := engine.FromHierarchy(h, engine.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Loaded snapshot with %d regions\n", restored.Hierarchy().Len())
}
