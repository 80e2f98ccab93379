package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestComposeVisualPromptChainsBothCalls(t *testing.T) {
	f := newFixture()

	res, err := f.pipeline.Run(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.UsedFallbackPrompt {
		t.Fatal("fallback should not trigger on healthy calls")
	}
	// The second call must carry the first call's elements forward.
	if !strings.Contains(f.chat.calls[1].user, "telescope, star chart, brass gears") {
		t.Fatalf("brief input should embed extracted elements, got %q", f.chat.calls[1].user)
	}
	// The image service receives the brief, not the element list.
	if f.images.prompts[0] != "A brass telescope resting on a star chart, warm lamplight." {
		t.Fatalf("image prompt = %q", f.images.prompts[0])
	}
}

func TestComposeVisualPromptFallsBackOnModelFailure(t *testing.T) {
	f := newFixture(
		chatReply{err: errors.New("model unavailable")},
		chatReply{content: "unused"},
		chatReply{content: "Welcome to PaperWave, where research finds its voice. Short script."},
	)

	res, err := f.pipeline.Run(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("run should survive a concept failure, got %v", err)
	}
	if !res.UsedFallbackPrompt {
		t.Fatal("fallback flag should be set")
	}
	prompt := f.images.prompts[0]
	if !strings.Contains(prompt, "On Computable Numbers") {
		t.Fatalf("fallback prompt should embed the title, got %q", prompt)
	}
	if !strings.Contains(prompt, "computation, decidability") {
		t.Fatalf("fallback prompt should embed the keywords, got %q", prompt)
	}
}

func TestComposeVisualPromptFallsBackOnEmptyBrief(t *testing.T) {
	f := newFixture(
		chatReply{content: "gears"},
		chatReply{content: "   "},
		chatReply{content: "Welcome to PaperWave, where research finds its voice. Short script."},
	)

	res, err := f.pipeline.Run(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("run should survive an empty brief, got %v", err)
	}
	if !res.UsedFallbackPrompt {
		t.Fatal("fallback flag should be set on empty completion")
	}
}

func TestFallbackPromptIsDeterministic(t *testing.T) {
	req := testRequest()
	if fallbackVisualPrompt(req) != fallbackVisualPrompt(req) {
		t.Fatal("fallback prompt must be a pure function of the request")
	}
	bare := testRequest()
	bare.Keywords = nil
	if strings.Contains(fallbackVisualPrompt(bare), "Themes:") {
		t.Fatal("keywordless request should omit the themes clause")
	}
}
