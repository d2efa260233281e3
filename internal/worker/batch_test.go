package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/deepscan/internal/model"
	"github.com/ppiankov/deepscan/internal/pipeline"
	"github.com/ppiankov/deepscan/internal/score"
)

// stubOpener maps a file's extension to a media type without touching disk
type stubOpener struct{}

func (stubOpener) Open(path string, selected model.MediaType) (model.MediaHandle, error) {
	var mt model.MediaType
	switch filepath.Ext(path) {
	case ".png":
		mt = model.MediaImage
	case ".mp4":
		mt = model.MediaVideo
	case ".wav":
		mt = model.MediaAudio
	default:
		return model.MediaHandle{}, &model.IntakeError{Kind: model.IntakeUnsupported, Name: path, Message: "unsupported"}
	}
	if selected != "" && selected != mt {
		return model.MediaHandle{}, &model.IntakeError{Kind: model.IntakeMismatch, Name: path, Message: "mismatch"}
	}
	return model.MediaHandle{Name: filepath.Base(path), MediaType: mt}, nil
}

// MockAnalyzer implements Analyzer
type MockAnalyzer struct {
	Delay       time.Duration
	ShouldError bool
}

func (m *MockAnalyzer) AnalyzeWithDelay(ctx context.Context, mt model.MediaType, media model.MediaHandle) (*model.AnalysisReport, error) {
	select {
	case <-time.After(m.Delay):
	case <-ctx.Done():
		return nil, model.ErrCanceled
	}
	if m.ShouldError {
		return nil, errors.New("analysis error")
	}
	return &model.AnalysisReport{MediaType: mt, Media: media, Verdict: model.VerdictAuthentic}, nil
}

func TestBatchProcessor_ProcessPaths(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{Delay: 5 * time.Millisecond}, stubOpener{}, 2, 0, 0)

	paths := []string{"a.png", "b.mp4", "c.wav"}
	results := processor.ProcessPaths(context.Background(), paths, "")

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	wantTypes := []model.MediaType{model.MediaImage, model.MediaVideo, model.MediaAudio}
	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Path, res.Error)
			continue
		}
		if res.Path != paths[i] {
			t.Errorf("position %d: expected %s, got %s", i, paths[i], res.Path)
		}
		if res.Report == nil || res.Report.MediaType != wantTypes[i] {
			t.Errorf("%s: expected %s report, got %+v", res.Path, wantTypes[i], res.Report)
		}
	}
}

func TestBatchProcessor_ProcessPaths_Rejections(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{}, stubOpener{}, 2, 0, 0)

	results := processor.ProcessPaths(context.Background(), []string{"a.png", "notes.txt", "b.mp4"}, model.MediaImage)

	if results[0].Error != nil {
		t.Errorf("expected a.png to pass, got %v", results[0].Error)
	}
	for _, res := range results[1:] {
		if _, ok := model.IsIntakeError(res.Error); !ok {
			t.Errorf("%s: expected IntakeError, got %v", res.Path, res.Error)
		}
		if res.Report != nil {
			t.Errorf("%s: expected nil report on rejection", res.Path)
		}
	}

	s := Summarize(results)
	want := BatchSummary{Total: 3, Succeeded: 1, Rejected: 2, Verdicts: map[model.Verdict]int{model.VerdictAuthentic: 1}}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchProcessor_ProcessPaths_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{ShouldError: true}, stubOpener{}, 2, 0, 0)

	results := processor.ProcessPaths(context.Background(), []string{"a.png"}, "")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Report != nil {
		t.Error("expected nil report on error")
	}
}

func TestBatchProcessor_ProcessPaths_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{}, stubOpener{}, 2, 0, 0)

	results := processor.ProcessPaths(context.Background(), []string{}, "")
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessPaths_Canceled(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{Delay: time.Hour}, stubOpener{}, 1, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	results := processor.ProcessPaths(ctx, []string{"a.png", "b.png", "c.png"}, "")
	if len(results) != 3 {
		t.Fatalf("expected a result per path, got %d", len(results))
	}
	for _, res := range results {
		if !errors.Is(res.Error, model.ErrCanceled) {
			t.Errorf("%s: expected ErrCanceled, got %v", res.Path, res.Error)
		}
	}
	if s := Summarize(results); s.Canceled != 3 {
		t.Errorf("expected 3 canceled, got %d", s.Canceled)
	}
}

func TestBatchProcessor_WithPipeline(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"photo.png": []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"),
		"voice.wav": []byte("RIFF\x24\x00\x00\x00WAVEfmt "),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := model.DefaultConfig()
	cfg.Analysis.Delay = 0
	p := pipeline.NewPipeline(cfg, pipeline.WithSampler(score.FixedSampler(90)))
	processor := NewBatchProcessor(p, pipeline.NewIntake(cfg.Intake.MaxBytes), 2, 100, 10)

	results, err := processor.ProcessFile(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	for _, res := range results {
		if res.Error != nil {
			t.Fatalf("%s: %v", res.Path, res.Error)
		}
		if res.Report.Verdict != model.VerdictFake {
			t.Errorf("%s: expected fake verdict at p=90, got %s", res.Path, res.Report.Verdict)
		}
	}

	// directory entries are sorted
	if filepath.Base(results[0].Path) != "photo.png" || results[0].Report.MediaType != model.MediaImage {
		t.Errorf("unexpected first result: %+v", results[0])
	}
}

func TestReadPathsFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "a.png\n# comment\n/abs/b.mp4\n   \nc.wav   \na.png\n"
	list := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(list, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	paths, err := ReadPathsFromFile(list)
	if err != nil {
		t.Fatalf("ReadPathsFromFile failed: %v", err)
	}

	want := []string{filepath.Join(dir, "a.png"), "/abs/b.mp4", filepath.Join(dir, "c.wav")}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestReadPathsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadPathsFromFile("non_existent_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestCollectPaths_Directory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.wav", ".hidden.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	paths, err := CollectPaths(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.wav"), filepath.Join(dir, "b.png")}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockAnalyzer{}, stubOpener{}, 2, 0, 0)

	if _, err := processor.ProcessFile(context.Background(), "no_such_file.txt", ""); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestAnalyzeResult_GetError(t *testing.T) {
	r1 := &AnalyzeResult{Path: "a.png"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("analysis failed")
	r2 := &AnalyzeResult{Path: "a.png", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}
