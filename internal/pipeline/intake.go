package pipeline

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/deepscan/internal/model"
)

// sniffLen is how many bytes http.DetectContentType considers
const sniffLen = 512

// Intake verifies uploads before they reach the engine: size limit,
// MIME category, and agreement with the selected media type.
type Intake struct {
	maxBytes int64
	now      func() time.Time
}

// NewIntake creates an intake that rejects items larger than maxBytes
func NewIntake(maxBytes int64) *Intake {
	if maxBytes <= 0 {
		maxBytes = model.DefaultMaxBytes
	}
	return &Intake{maxBytes: maxBytes, now: time.Now}
}

// MaxBytes returns the configured size limit
func (in *Intake) MaxBytes() int64 {
	return in.maxBytes
}

// Open accepts a local file. An empty selected type means "use whatever the file is".
func (in *Intake) Open(path string, selected model.MediaType) (model.MediaHandle, error) {
	name := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return model.MediaHandle{}, &model.IntakeError{Kind: model.IntakeUnreadable, Name: name, Message: "cannot open file", Err: err}
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return model.MediaHandle{}, &model.IntakeError{Kind: model.IntakeUnreadable, Name: name, Message: "cannot stat file", Err: err}
	}
	if info.IsDir() {
		return model.MediaHandle{}, &model.IntakeError{Kind: model.IntakeUnreadable, Name: name, Message: "is a directory"}
	}

	return in.Accept(name, f, info.Size(), "", selected)
}

// Accept verifies an item from any reader. declaredMIME is the client-supplied type, if any.
// Only the first 512 bytes are read.
func (in *Intake) Accept(name string, r io.Reader, size int64, declaredMIME string, selected model.MediaType) (model.MediaHandle, error) {
	if selected != "" && !selected.Valid() {
		return model.MediaHandle{}, &model.InvalidMediaTypeError{Value: string(selected)}
	}

	if size > in.maxBytes {
		return model.MediaHandle{}, &model.IntakeError{
			Kind:    model.IntakeTooLarge,
			Name:    name,
			Message: fmt.Sprintf("%d bytes exceeds the %d byte limit", size, in.maxBytes),
		}
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return model.MediaHandle{}, &model.IntakeError{Kind: model.IntakeUnreadable, Name: name, Message: "cannot read content", Err: err}
	}
	if n == 0 {
		return model.MediaHandle{}, &model.IntakeError{Kind: model.IntakeUnreadable, Name: name, Message: "file is empty"}
	}

	mimeType, category, ok := classifyContent(head[:n], declaredMIME, name)
	if !ok {
		return model.MediaHandle{}, &model.IntakeError{
			Kind:    model.IntakeUnsupported,
			Name:    name,
			Message: fmt.Sprintf("%s is not an image, video or audio file", mimeType),
		}
	}

	if selected != "" && category != selected {
		return model.MediaHandle{}, &model.IntakeError{
			Kind:    model.IntakeMismatch,
			Name:    name,
			Message: fmt.Sprintf("please upload a %s file (got %s)", selected, mimeType),
		}
	}

	return model.MediaHandle{
		Name:       name,
		MIME:       mimeType,
		MediaType:  category,
		Size:       size,
		ReceivedAt: in.now().UTC(),
	}, nil
}

// classifyContent picks the first MIME candidate that maps to a media category:
// sniffed content, then the declared type, then the file extension.
func classifyContent(head []byte, declaredMIME, name string) (string, model.MediaType, bool) {
	sniffed := http.DetectContentType(head)

	candidates := []string{sniffed, declaredMIME}
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		candidates = append(candidates, mime.TypeByExtension(ext))
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if mt, ok := model.MediaTypeFromMIME(c); ok {
			return stripParams(c), mt, true
		}
	}

	return stripParams(sniffed), "", false
}

func stripParams(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		return strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
