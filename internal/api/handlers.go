package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/CoachAI26/ai/internal/analysis"
	"github.com/CoachAI26/ai/internal/challenge"
	"github.com/CoachAI26/ai/internal/observe"
	"github.com/CoachAI26/ai/pkg/provider/stt"
)

const (
	serviceTitle = "Voice Transcription & Filler Word Detection API"

	// multipartMemory is how much of a multipart form is held in memory;
	// the remainder spills to temporary files.
	multipartMemory = 8 << 20

	// formOverhead allows for multipart boundaries and the text fields on
	// top of the audio itself.
	formOverhead = 64 << 10
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": serviceTitle,
			"version": Version,
			"health":  "/api/v1/health",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": serviceTitle,
		"version": Version,
		"endpoints": map[string]string{
			"/api/v1/transcribe": "POST - Upload audio file for transcription",
			"/api/v1/analyze":    "POST - Analyse an existing transcript",
			"/api/v1/health":     "GET - Health check",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "transcription-api"})
}

// handleTranscribe serves POST /api/v1/transcribe: a multipart form with a
// required "file" part and optional "level", "category" and "title" fields.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if tooLarge(err) {
			s.fileTooLarge(w)
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, upperFirst(ErrMissingFile))
		return
	}
	defer file.Close()

	if header.Size > s.maxUploadBytes {
		s.fileTooLarge(w)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if err := validateAudio(contentType, header.Filename); err != nil {
		writeError(w, http.StatusBadRequest, upperFirst(err))
		return
	}

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file: "+err.Error())
		return
	}

	topic := challenge.Topic{
		Level:    strings.TrimSpace(r.FormValue("level")),
		Category: strings.TrimSpace(r.FormValue("category")),
		Title:    strings.TrimSpace(r.FormValue("title")),
	}
	report, err := s.svc.AnalyzeAudio(r.Context(), stt.Request{
		Audio:       audio,
		Filename:    header.Filename,
		ContentType: contentType,
	}, topic)
	if err != nil {
		s.analysisFailed(w, r, err, "Error processing audio")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// analyzeRequest is the body of POST /api/v1/analyze.
type analyzeRequest struct {
	Text            string        `json:"text"`
	DurationSeconds float64       `json:"duration_seconds"`
	Segments        []stt.Segment `json:"segments"`
	Language        string        `json:"language"`
	Level           string        `json:"level"`
	Category        string        `json:"category"`
	Title           string        `json:"title"`
}

func (req analyzeRequest) validate() error {
	if req.DurationSeconds < 0 {
		return fmt.Errorf("duration_seconds %v must not be negative", req.DurationSeconds)
	}
	for i, seg := range req.Segments {
		if seg.Start < 0 || seg.End < seg.Start {
			return fmt.Errorf("segments[%d]: need 0 <= start <= end, got start %v end %v", i, seg.Start, seg.End)
		}
		if i > 0 && seg.Start < req.Segments[i-1].Start {
			return fmt.Errorf("segments[%d]: segments must be ordered by start", i)
		}
	}
	return nil
}

// handleAnalyze serves POST /api/v1/analyze for clients that already hold a
// transcript.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.svc.Analyze(r.Context(), analysis.Input{
		Text:     req.Text,
		Duration: req.DurationSeconds,
		Segments: req.Segments,
		Language: req.Language,
		Topic: challenge.Topic{
			Level:    strings.TrimSpace(req.Level),
			Category: strings.TrimSpace(req.Category),
			Title:    strings.TrimSpace(req.Title),
		},
	})
	if err != nil {
		s.analysisFailed(w, r, err, "Error analysing text")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// analysisFailed maps a service error onto a status code and detail.
func (s *Server) analysisFailed(w http.ResponseWriter, r *http.Request, err error, prefix string) {
	switch {
	case errors.Is(err, analysis.ErrEmptyTranscript):
		writeError(w, http.StatusUnprocessableEntity, "No speech was found to analyse")
	case errors.Is(err, analysis.ErrNonEnglish):
		writeError(w, http.StatusUnprocessableEntity, "Only English speech is supported")
	case errors.Is(err, stt.ErrNoAudio):
		writeError(w, http.StatusBadRequest, "Uploaded file is empty")
	case errors.Is(err, analysis.ErrNoTranscriber):
		writeError(w, http.StatusServiceUnavailable, "Transcription is not configured")
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		observe.Logger(r.Context()).Info("client went away", "path", r.URL.Path)
	default:
		observe.Logger(r.Context()).Error("analysis failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, prefix+": "+err.Error())
	}
}

func (s *Server) fileTooLarge(w http.ResponseWriter) {
	writeError(w, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("File too large; the limit is %d bytes", s.maxUploadBytes))
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// upperFirst renders an error for clients: the package prefix is dropped
// and the first letter capitalised.
func upperFirst(err error) string {
	msg := strings.TrimPrefix(err.Error(), "api: ")
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
