package api

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

var (
	// ErrMissingFile is returned when the multipart form has no "file" part.
	ErrMissingFile = errors.New("api: no file uploaded")

	// ErrUnsupportedAudio is returned when the upload is not a recognised
	// audio format.
	ErrUnsupportedAudio = errors.New("api: unsupported audio format")
)

const supportedFormats = "MP3, WAV, M4A, OGG, FLAC, WebM, AAC"

// supportedTypes are the MIME types listed to clients. Any other audio/*
// type is accepted too.
var supportedTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/x-m4a": true,
	"audio/mp4":   true,
	"audio/ogg":   true,
	"audio/flac":  true,
	"audio/webm":  true,
	"audio/x-aac": true,
}

// supportedExtensions is consulted when the client sent no content type.
var supportedExtensions = map[string]bool{
	"mp3": true, "wav": true, "m4a": true, "ogg": true,
	"flac": true, "webm": true, "aac": true, "mp4": true,
}

// validateAudio checks an upload's declared content type, or its file
// extension when no type was declared.
func validateAudio(contentType, filename string) error {
	if contentType == "" {
		if filename == "" {
			return fmt.Errorf("%w: file type could not be determined, please ensure the file is an audio file", ErrUnsupportedAudio)
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
		if !supportedExtensions[ext] {
			return fmt.Errorf("%w: supported formats: %s", ErrUnsupportedAudio, supportedFormats)
		}
		return nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if supportedTypes[mediaType] || strings.HasPrefix(mediaType, "audio/") {
		return nil
	}
	return fmt.Errorf("%w: %s, supported formats: %s", ErrUnsupportedAudio, contentType, supportedFormats)
}
