package whisper_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CoachAI26/ai/pkg/provider/stt"
	"github.com/CoachAI26/ai/pkg/provider/stt/whisper"
)

const verboseBody = `{
  "text": " um I was in the mall ",
  "language": "english",
  "duration": 3.2,
  "segments": [
    {"start": 0.0, "end": 1.2, "text": " um I was"},
    {"start": 1.8, "end": 3.0, "text": " in the mall"}
  ]
}`

// capturedForm holds the multipart fields the mock server received.
type capturedForm struct {
	fields   map[string]string
	filename string
	audio    []byte
}

// newMockServer creates a test server that answers POST /inference with body
// and records the multipart form it received.
func newMockServer(t *testing.T, status int, body string, got *capturedForm, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if calls != nil {
			calls.Add(1)
		}
		if got != nil {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			got.fields = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				got.fields[k] = v[0]
			}
			f, hdr, err := r.FormFile("file")
			if err == nil {
				got.filename = hdr.Filename
				got.audio, _ = io.ReadAll(f)
				f.Close()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	t.Parallel()
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNew_WithOptions_DoesNotError(t *testing.T) {
	t.Parallel()
	p, err := whisper.New("http://localhost:8080/",
		whisper.WithModel("base.en"),
		whisper.WithLanguage("en"),
		whisper.WithHTTPClient(&http.Client{Timeout: time.Second}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

func TestTranscribe_ParsesVerboseJSON(t *testing.T) {
	t.Parallel()
	var form capturedForm
	srv := newMockServer(t, http.StatusOK, verboseBody, &form, nil)

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("RIFFdata"), Filename: "/tmp/answer.wav"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if tr.Text != "um I was in the mall" {
		t.Errorf("Text = %q, want %q", tr.Text, "um I was in the mall")
	}
	if tr.Language != "english" {
		t.Errorf("Language = %q, want english", tr.Language)
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, want 2", len(tr.Segments))
	}
	if tr.Segments[1].Start != 1.8 || tr.Segments[1].End != 3.0 {
		t.Errorf("Segments[1] = %+v, want start 1.8 end 3.0", tr.Segments[1])
	}

	if form.filename != "answer.wav" {
		t.Errorf("filename = %q, want answer.wav", form.filename)
	}
	if string(form.audio) != "RIFFdata" {
		t.Errorf("audio = %q, want RIFFdata", form.audio)
	}
	want := map[string]string{
		"response_format": "verbose_json",
		"temperature":     "0.2",
		"prompt":          stt.DefaultPrompt,
		"language":        "auto",
	}
	for k, v := range want {
		if form.fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, form.fields[k], v)
		}
	}
}

func TestTranscribe_LanguageOverrides(t *testing.T) {
	t.Parallel()
	var form capturedForm
	srv := newMockServer(t, http.StatusOK, verboseBody, &form, nil)

	p, _ := whisper.New(srv.URL, whisper.WithLanguage("de"), whisper.WithModel("small"))
	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("x"), Language: "en", Prompt: "hint"}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if form.fields["language"] != "en" {
		t.Errorf("language = %q, want en", form.fields["language"])
	}
	if form.fields["prompt"] != "hint" {
		t.Errorf("prompt = %q, want hint", form.fields["prompt"])
	}
	if form.fields["model"] != "small" {
		t.Errorf("model = %q, want small", form.fields["model"])
	}
	if form.filename != "audio.wav" {
		t.Errorf("filename = %q, want audio.wav", form.filename)
	}
}

func TestTranscribe_EmptyAudio_DoesNotCallServer(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newMockServer(t, http.StatusOK, verboseBody, nil, &calls)

	p, _ := whisper.New(srv.URL)
	_, err := p.Transcribe(context.Background(), stt.Request{})
	if !errors.Is(err, stt.ErrNoAudio) {
		t.Fatalf("err = %v, want ErrNoAudio", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("server calls = %d, want 0", n)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()
	srv := newMockServer(t, http.StatusInternalServerError, `{"error":"boom"}`, nil, nil)

	p, _ := whisper.New(srv.URL)
	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("x")}); err == nil {
		t.Fatal("expected error for HTTP 500, got nil")
	}
}

func TestTranscribe_MalformedBody(t *testing.T) {
	t.Parallel()
	srv := newMockServer(t, http.StatusOK, `not json`, nil, nil)

	p, _ := whisper.New(srv.URL)
	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("x")}); err == nil {
		t.Fatal("expected error for malformed body, got nil")
	}
}

func TestTranscribe_CancelledContext(t *testing.T) {
	t.Parallel()
	srv := newMockServer(t, http.StatusOK, verboseBody, nil, nil)

	p, _ := whisper.New(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Transcribe(ctx, stt.Request{Audio: []byte("x")}); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}
