// Package ingest feeds directories of .eml files through the pipeline with
// a worker pool. Parallelism is across messages only; attachments within one
// message are processed sequentially by the pipeline.
package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/felo/mail-ingest/internal/pipeline"
)

type fileStatus int

const (
	statusIngested fileStatus = iota
	statusRecovered
	statusFailed
)

type fileResult struct {
	filePath string
	status   fileStatus
}

// Result contains statistics about one bulk ingest run. Recovered counts
// messages the fallback path rebuilt; Failed counts read or storage errors.
type Result struct {
	TotalFound  int
	Ingested    int
	Recovered   int
	Failed      int
	FailedFiles []string
}

// Runner drives a bulk ingest over one directory tree.
type Runner struct {
	pipeline *pipeline.Pipeline
	scanner  *Scanner
	rootPath string
	workers  int
	log      *slog.Logger
}

// NewRunner creates a Runner over rootPath. A nil logger falls back to
// slog.Default.
func NewRunner(pl *pipeline.Pipeline, rootPath string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		pipeline: pl,
		scanner:  NewScanner(rootPath),
		rootPath: rootPath,
		workers:  runtime.NumCPU() * 2,
		log:      logger,
	}
}

// WithWorkers sets the worker pool size.
func (r *Runner) WithWorkers(n int) *Runner {
	if n < 1 {
		n = 1
	}
	r.workers = n
	return r
}

// Run scans for .eml files and ingests them concurrently.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	files, err := r.scanner.Scan()
	if err != nil {
		return nil, err
	}

	result := &Result{TotalFound: len(files)}
	r.log.Info("bulk ingest starting", "files", len(files), "workers", r.workers)

	fileChan := make(chan string, len(files))
	resultChan := make(chan fileResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go r.worker(ctx, &wg, fileChan, resultChan)
	}

	for _, file := range files {
		fileChan <- file
	}
	close(fileChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for res := range resultChan {
		switch res.status {
		case statusIngested:
			result.Ingested++
		case statusRecovered:
			result.Recovered++
		case statusFailed:
			result.Failed++
			result.FailedFiles = append(result.FailedFiles, res.filePath)
		}
	}

	r.log.Info("bulk ingest complete",
		"ingested", result.Ingested,
		"recovered", result.Recovered,
		"failed", result.Failed,
	)
	return result, nil
}

func (r *Runner) worker(ctx context.Context, wg *sync.WaitGroup, fileChan <-chan string, resultChan chan<- fileResult) {
	defer wg.Done()

	for filePath := range fileChan {
		resultChan <- fileResult{
			filePath: filePath,
			status:   r.processFile(ctx, filePath),
		}
	}
}

func (r *Runner) processFile(ctx context.Context, relPath string) fileStatus {
	raw, err := os.ReadFile(filepath.Join(r.rootPath, filepath.FromSlash(relPath)))
	if err != nil {
		r.log.Error("failed to read file", "path", relPath, "error", err)
		return statusFailed
	}

	res, err := r.pipeline.Ingest(ctx, raw)
	if err != nil {
		r.log.Error("failed to ingest file", "path", relPath, "error", err)
		return statusFailed
	}
	if res.Recovered {
		return statusRecovered
	}
	return statusIngested
}
