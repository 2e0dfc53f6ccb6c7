package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"securecode/internal/config"
	"securecode/internal/parser"
	"securecode/internal/utils"
)

// Options controls a Prepare run. Zero values fall back to defaults.
type Options struct {
	MinLength int
	Workers   int
	// Ignore holds extra .gitignore-style patterns relative to the root.
	Ignore []string
	// Progress receives the progress bar; nil disables it.
	Progress io.Writer
	Logger   zerolog.Logger
}

type Stats struct {
	Files     int `json:"files"`
	Functions int `json:"functions"`
	Saved     int `json:"saved"`
	// Skipped counts files that could not be read.
	Skipped int `json:"skipped"`
}

type fileResult struct {
	index     int
	path      string
	examples  []Example
	functions int
	err       error
}

// Prepare walks root for .c files, extracts and labels their functions and
// writes one JSON object per line to w. Output order follows the sorted file
// list regardless of worker count.
func Prepare(ctx context.Context, root string, w io.Writer, opts Options) (Stats, error) {
	if opts.MinLength <= 0 {
		opts.MinLength = config.DefaultMinLength
	}
	if opts.Workers <= 0 {
		opts.Workers = config.DefaultWorkers
	}
	log := opts.Logger

	info, err := os.Stat(root)
	if err != nil {
		return Stats{}, fmt.Errorf("dataset root: %w", err)
	}
	if !info.IsDir() {
		return Stats{}, fmt.Errorf("dataset root %s is not a directory", root)
	}

	files, err := utils.GetAllSourceFiles(root, []string{".c"}, opts.Ignore...)
	if err != nil {
		return Stats{}, fmt.Errorf("walk %s: %w", root, err)
	}
	stats := Stats{Files: len(files)}
	log.Info().Int("files", len(files)).Str("root", root).Msg("found C files")
	if len(files) == 0 {
		return stats, nil
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = newProgressBar(opts.Progress, len(files))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	results := make(chan fileResult, opts.Workers)

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				r := processFile(files[idx], opts.MinLength)
				r.index = idx
				select {
				case results <- r:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range files {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := bufio.NewWriter(w)
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	pending := make(map[int]fileResult)
	next := 0
	for r := range results {
		if bar != nil {
			_ = bar.Add(1)
		}
		pending[r.index] = r
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if cur.err != nil {
				stats.Skipped++
				log.Warn().Err(cur.err).Str("file", cur.path).Msg("skipping unreadable file")
				continue
			}
			stats.Functions += cur.functions
			for _, ex := range cur.examples {
				if err := enc.Encode(ex); err != nil {
					cancel()
					return stats, fmt.Errorf("write example: %w", err)
				}
				stats.Saved++
			}
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if err := out.Flush(); err != nil {
		return stats, fmt.Errorf("flush dataset: %w", err)
	}
	return stats, nil
}

// PrepareFile is Prepare writing to a newly created file at outPath.
func PrepareFile(ctx context.Context, root, outPath string, opts Options) (Stats, error) {
	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Stats{}, err
		}
	}
	f, err := os.Create(outPath)
	if err != nil {
		return Stats{}, err
	}
	stats, err := Prepare(ctx, root, f, opts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return stats, err
}

func processFile(path string, minLength int) fileResult {
	code, err := os.ReadFile(path)
	if err != nil {
		return fileResult{path: path, err: err}
	}
	funcs := parser.ExtractFunctions(code)

	r := fileResult{path: path, functions: len(funcs)}
	for _, fn := range funcs {
		label, ok := LabelFor(fn.Name)
		if !ok || !Keep(fn.Code, minLength) {
			continue
		}
		r.examples = append(r.examples, Example{Code: fn.Code, Label: label})
	}
	return r
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Parsing C files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
