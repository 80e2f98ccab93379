package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// defaultScriptMaxChars is the speech service's input ceiling. Scripts over
// the limit abort the run instead of being truncated.
const defaultScriptMaxChars = 8000

const scriptOpening = "Welcome to PaperWave, where research finds its voice."

// bannedAdjectives is the editorial denylist of intensity vocabulary.
var bannedAdjectives = []string{
	"groundbreaking", "revolutionary", "amazing", "incredible",
	"stunning", "extraordinary", "phenomenal", "astonishing",
	"game-changing", "mind-blowing",
}

// authorInstruction encodes the naming rule: name a single author, name
// both of two, otherwise name only the lead author and call the rest
// colleagues.
func authorInstruction(authors []string) string {
	switch len(authors) {
	case 0:
		return "Do not mention author names."
	case 1:
		return fmt.Sprintf("Name the author, %s.", authors[0])
	case 2:
		return fmt.Sprintf("Name both authors, %s and %s.", authors[0], authors[1])
	default:
		return fmt.Sprintf("Name only the lead author, %s, and refer to the remaining authors as colleagues.", authors[0])
	}
}

func scriptSystemPrompt(authors []string) string {
	return "You write narration scripts for short research podcasts. " +
		"Tone: conversational but professional, as if explaining the paper to an interested colleague. " +
		fmt.Sprintf("Never use the following words: %s. ", strings.Join(bannedAdjectives, ", ")) +
		authorInstruction(authors) + " " +
		"Expand every abbreviation inline the first time it appears instead of reading it letter by letter. " +
		fmt.Sprintf("Begin with exactly this line: %q ", scriptOpening) +
		"Do not use section headers or bullet points; write flowing prose only. " +
		"The script must be between 6000 and 7000 characters long."
}

// synthesizeScript runs the single script-generation call and enforces the
// hard length ceiling before any speech synthesis happens.
func (p *Pipeline) synthesizeScript(ctx context.Context, req *Request, text string) (string, error) {
	input := fmt.Sprintf("Abstract: %s\nAuthors: %s\nKeywords: %s\n\nFull paper text:\n%s",
		req.Abstract, strings.Join(req.Authors, ", "), strings.Join(req.Keywords, ", "), text)

	script, err := p.generate(ctx, scriptSystemPrompt(req.Authors), input, 0)
	if err != nil {
		return "", fmt.Errorf("synthesize script: %w", err)
	}
	script = strings.TrimSpace(script)
	if script == "" {
		return "", errors.New("synthesize script: empty completion")
	}
	if length := utf8.RuneCountInString(script); length > p.scriptMaxChars {
		return "", newError(KindScriptTooLong,
			fmt.Sprintf("script length %d exceeds the %d character ceiling", length, p.scriptMaxChars), nil)
	}
	return script, nil
}
