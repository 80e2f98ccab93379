package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	conceptsMaxTokens = 150
	briefMaxTokens    = 200
)

const conceptsSystemPrompt = "You are a visual researcher preparing material for a cover illustration. " +
	"From the paper details you are given, extract concrete, visually renderable elements: " +
	"physical objects, instruments, organisms, natural phenomena, settings. " +
	"Respond with a comma-separated list of short noun phrases. " +
	"Skip abstract concepts that cannot be drawn."

const briefSystemPrompt = "You are an art director composing a brief for a scientific journal cover. " +
	"Combine the provided visual elements into one detailed image-generation prompt: " +
	"a single paragraph with a professional, academic tone, describing composition, " +
	"lighting, and color palette. Do not include any text, lettering, or typography in the image."

// composeVisualPrompt runs the two chained concept calls. The second call
// depends on the first's output, so they are strictly sequential. A failure
// or empty completion in either call does not abort the run: the pipeline
// falls back to a deterministic templated prompt so image generation can
// always proceed. The fallback is reported so it stays observable.
func (p *Pipeline) composeVisualPrompt(ctx context.Context, req *Request) (string, bool) {
	conceptsInput := fmt.Sprintf("Title: %s\nAbstract: %s\nKeywords: %s",
		req.Title, req.Abstract, strings.Join(req.Keywords, ", "))
	elements, err := p.generate(ctx, conceptsSystemPrompt, conceptsInput, conceptsMaxTokens)
	if err != nil || strings.TrimSpace(elements) == "" {
		log.Printf("visual concept extraction fell back to templated prompt: %v", err)
		return fallbackVisualPrompt(req), true
	}

	briefInput := fmt.Sprintf("Title: %s\nKeywords: %s\nVisual elements: %s",
		req.Title, strings.Join(req.Keywords, ", "), strings.TrimSpace(elements))
	brief, err := p.generate(ctx, briefSystemPrompt, briefInput, briefMaxTokens)
	if err != nil || strings.TrimSpace(brief) == "" {
		log.Printf("image brief composition fell back to templated prompt: %v", err)
		return fallbackVisualPrompt(req), true
	}
	return strings.TrimSpace(brief), false
}

// fallbackVisualPrompt builds a usable prompt from title and keywords alone.
func fallbackVisualPrompt(req *Request) string {
	prompt := fmt.Sprintf(
		"A professional, minimalist scientific illustration representing the research topic %q. "+
			"Clean composition, muted academic color palette, soft studio lighting, no text or lettering.",
		req.Title)
	if len(req.Keywords) > 0 {
		prompt += fmt.Sprintf(" Themes: %s.", strings.Join(req.Keywords, ", "))
	}
	return prompt
}

func (p *Pipeline) generate(ctx context.Context, system, user string, maxTokens int) (string, error) {
	opts := []model.Option{}
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}
	resp, err := p.chat.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: system},
		{Role: schema.User, Content: user},
	}, opts...)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
