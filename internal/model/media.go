package model

import (
	"strings"
	"time"
)

// MediaType is the closed set of media categories the engine understands
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// MediaTypes lists every supported media type in display order
func MediaTypes() []MediaType {
	return []MediaType{MediaImage, MediaVideo, MediaAudio}
}

// Valid reports whether t is one of the supported media types
func (t MediaType) Valid() bool {
	switch t {
	case MediaImage, MediaVideo, MediaAudio:
		return true
	default:
		return false
	}
}

func (t MediaType) String() string {
	return string(t)
}

// ParseMediaType converts user input into a MediaType.
// Unknown values are rejected, never defaulted.
func ParseMediaType(s string) (MediaType, error) {
	t := MediaType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &InvalidMediaTypeError{Value: s}
	}
	return t, nil
}

// MediaTypeFromMIME maps a MIME type to its media category by top-level prefix.
// The second return value is false for anything that is not image/*, video/* or audio/*.
func MediaTypeFromMIME(mimeType string) (MediaType, bool) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MediaImage, true
	case strings.HasPrefix(mimeType, "video/"):
		return MediaVideo, true
	case strings.HasPrefix(mimeType, "audio/"):
		return MediaAudio, true
	default:
		return "", false
	}
}

// MediaHandle is an opaque reference to an uploaded item.
// The engine reads only MediaType; the remaining fields are for presentation.
type MediaHandle struct {
	Name       string    `json:"name"`                  // Original file name
	MIME       string    `json:"mime"`                  // Declared or sniffed MIME type
	MediaType  MediaType `json:"media_type"`            // Category the intake verified
	Size       int64     `json:"size"`                  // Bytes
	ReceivedAt time.Time `json:"received_at,omitempty"` // When intake accepted the item
}
