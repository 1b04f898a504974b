package improve

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CoachAI26/ai/internal/challenge"
	"github.com/CoachAI26/ai/pkg/provider/llm"
	"github.com/CoachAI26/ai/pkg/provider/llm/mock"
)

func TestImprove(t *testing.T) {
	t.Parallel()
	const original = "um so I was uh at the mall"
	tests := []struct {
		name string
		p    *mock.Provider
		want string
	}{
		{"plain reply", &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "I was at the mall."}}, "I was at the mall."},
		{"quoted reply", &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  \"I was at the mall.\"\n"}}, "I was at the mall."},
		{"inner quotes kept", &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `She said "hi" to me`}}, `She said "hi" to me`},
		{"provider error", &mock.Provider{CompleteErr: errors.New("boom")}, original},
		{"nil response", &mock.Provider{}, original},
		{"empty reply", &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: ` "" `}}, original},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := New(tt.p).Improve(context.Background(), original, challenge.Topic{}); got != tt.want {
				t.Errorf("Improve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImprove_Request(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	New(p).Improve(context.Background(), "um hello", challenge.Topic{Category: "Work", Title: "Introduce yourself"})

	req := p.Calls()[0].Req
	if req.SystemPrompt != systemPrompt {
		t.Errorf("SystemPrompt = %q", req.SystemPrompt)
	}
	if req.Temperature != 0.3 || req.MaxTokens != 2000 {
		t.Errorf("Temperature=%v MaxTokens=%d, want 0.3 and 2000", req.Temperature, req.MaxTokens)
	}
	content := req.Messages[0].Content
	if !strings.HasPrefix(content, "You are a professional speech editor.") {
		t.Errorf("prompt does not start with the editor instructions")
	}
	if !strings.Contains(content, "Challenge context:\n- Category: Work\n- Title: Introduce yourself\n") {
		t.Errorf("prompt missing challenge context:\n%s", content)
	}
	if !strings.HasSuffix(content, "\n\num hello") {
		t.Errorf("prompt does not end with the transcript:\n%s", content)
	}
}

func TestImprove_OptionsAndBlankText(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	e := New(p, WithTemperature(0.7), WithMaxTokens(500))

	if got := e.Improve(context.Background(), "  ", challenge.Topic{}); got != "  " {
		t.Errorf("blank text = %q, want unchanged", got)
	}
	if n := len(p.Calls()); n != 0 {
		t.Fatalf("calls = %d, want 0 for blank text", n)
	}

	e.Improve(context.Background(), "hello", challenge.Topic{})
	req := p.Calls()[0].Req
	if req.Temperature != 0.7 || req.MaxTokens != 500 {
		t.Errorf("Temperature=%v MaxTokens=%d, want 0.7 and 500", req.Temperature, req.MaxTokens)
	}
}

func TestRewrite_NilProvider(t *testing.T) {
	t.Parallel()
	got, err := New(nil).Rewrite(context.Background(), "um hello", challenge.Topic{Title: "x"})
	if err != nil {
		t.Fatalf("Rewrite: unexpected error: %v", err)
	}
	if got != "um hello" {
		t.Errorf("Rewrite = %q, want %q", got, "um hello")
	}
}
