package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/deepscan/internal/model"
)

// Analyzer runs one delayed analysis; *pipeline.Pipeline satisfies it
type Analyzer interface {
	AnalyzeWithDelay(ctx context.Context, mt model.MediaType, media model.MediaHandle) (*model.AnalysisReport, error)
}

// Opener validates a file on disk; *pipeline.Intake satisfies it
type Opener interface {
	Open(path string, selected model.MediaType) (model.MediaHandle, error)
}

// AnalyzeJob analyzes a single media file
type AnalyzeJob struct {
	Index    int
	Path     string
	Selected model.MediaType
	Analyzer Analyzer
	Opener   Opener
	Limiter  *Limiter
}

// Execute executes the analysis job
func (j *AnalyzeJob) Execute(ctx context.Context) Result {
	res := &AnalyzeResult{Index: j.Index, Path: j.Path}

	handle, err := j.Opener.Open(j.Path, j.Selected)
	if err != nil {
		res.Error = err
		return res
	}
	res.Media = handle

	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, string(handle.MediaType)); err != nil {
			res.Error = model.ErrCanceled
			return res
		}
	}

	report, err := j.Analyzer.AnalyzeWithDelay(ctx, handle.MediaType, handle)
	if err != nil {
		res.Error = err
		return res
	}
	res.Report = report
	return res
}

// AnalyzeResult represents the result of an analysis job
type AnalyzeResult struct {
	Index  int
	Path   string
	Media  model.MediaHandle
	Report *model.AnalysisReport
	Error  error
}

// GetError returns the error from the analysis result
func (r *AnalyzeResult) GetError() error {
	return r.Error
}

// BatchSummary tallies a batch run
type BatchSummary struct {
	Total     int
	Succeeded int
	Rejected  int
	Canceled  int
	Verdicts  map[model.Verdict]int
}

// Summarize counts outcomes and verdicts
func Summarize(results []*AnalyzeResult) BatchSummary {
	s := BatchSummary{Total: len(results), Verdicts: make(map[model.Verdict]int)}
	for _, r := range results {
		switch {
		case r.Error == nil:
			s.Succeeded++
			s.Verdicts[r.Report.Verdict]++
		case errors.Is(r.Error, model.ErrCanceled):
			s.Canceled++
		default:
			s.Rejected++
		}
	}
	return s
}

// BatchProcessor analyzes multiple files concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	opener      Opener
	limiter     *Limiter
	concurrency int
}

// NewBatchProcessor creates a new batch processor. Analyses are rate limited
// per media type; a non-positive rate disables limiting.
func NewBatchProcessor(analyzer Analyzer, opener Opener, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		opener:      opener,
		limiter:     NewLimiter(requestsPerSecond, burst),
		concurrency: concurrency,
	}
}

// ProcessPaths analyzes files concurrently. Results keep the order of paths;
// entries never reached because ctx ended carry model.ErrCanceled.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string, selected model.MediaType) []*AnalyzeResult {
	if len(paths) == 0 {
		return []*AnalyzeResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, path := range paths {
		job := &AnalyzeJob{
			Index:    i,
			Path:     path,
			Selected: selected,
			Analyzer: b.analyzer,
			Opener:   b.opener,
			Limiter:  b.limiter,
		}
		if !pool.Submit(job) {
			break
		}
	}

	results := make([]*AnalyzeResult, len(paths))
	for _, r := range pool.Wait() {
		ar := r.(*AnalyzeResult)
		results[ar.Index] = ar
	}

	for i, r := range results {
		if r == nil {
			results[i] = &AnalyzeResult{Index: i, Path: paths[i], Error: model.ErrCanceled}
		}
	}

	return results
}

// ProcessFile analyzes every file in a directory, or every path listed in a file
func (b *BatchProcessor) ProcessFile(ctx context.Context, path string, selected model.MediaType) ([]*AnalyzeResult, error) {
	paths, err := CollectPaths(path)
	if err != nil {
		return nil, err
	}
	return b.ProcessPaths(ctx, paths, selected), nil
}

// CollectPaths expands a directory into its visible regular files (sorted,
// non-recursive) or reads a list file
func CollectPaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		paths, err := ReadPathsFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("read paths: %w", err)
		}
		return paths, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(path, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadPathsFromFile reads media paths from a file (one per line).
// Relative paths resolve against the list file's directory.
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
