// verify_qdrant reports how many function vectors a project's collection holds.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"securecode/internal/config"
	"securecode/internal/indexer"
	"securecode/internal/logging"
	"securecode/internal/qdrant"
	"securecode/internal/utils"
)

func main() {
	dir := flag.String("dir", ".", "Project root directory that was indexed")
	flag.Parse()

	if err := run(*dir); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	if err := config.LoadFromUserConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Failed to load config: %v\n", err)
	}
	log := logging.NewWithComponent(logging.DefaultConfig(), "verify")

	root, err := utils.NormalizeProjectRoot(dir)
	if err != nil {
		return fmt.Errorf("invalid project root: %w", err)
	}
	projectID, err := utils.ComputeProjectID(root)
	if err != nil {
		return fmt.Errorf("compute project id: %w", err)
	}
	collection := indexer.CollectionName(projectID)

	qc, err := qdrant.NewClient(log)
	if err != nil {
		return fmt.Errorf("create qdrant client: %w", err)
	}
	defer qc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("→ Checking collection: %s\n", collection)
	n, err := qc.Count(ctx, collection)
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	fmt.Printf("✓ Total points in collection: %d\n", n)
	return nil
}
