package media

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"paperwave/internal/config"
)

// speechInstructions steers delivery without touching the script text.
const speechInstructions = "Speak in a warm, measured podcast-host voice. " +
	"Keep a steady pace with natural pauses at sentence boundaries."

// SpeechClient synthesizes narration audio through the OpenAI speech API.
type SpeechClient struct {
	client openai.Client
	model  openai.SpeechModel
	voice  openai.AudioSpeechNewParamsVoice
}

// NewSpeechClient builds a client from media configuration. Empty model and
// voice fall back to gpt-4o-mini-tts with the alloy voice.
func NewSpeechClient(cfg config.MediaConfig) *SpeechClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := openai.SpeechModel(cfg.TTSModel)
	if model == "" {
		model = openai.SpeechModelGPT4oMiniTTS
	}
	voice := openai.AudioSpeechNewParamsVoice(cfg.TTSVoice)
	if voice == "" {
		voice = openai.AudioSpeechNewParamsVoiceAlloy
	}
	return &SpeechClient{
		client: openai.NewClient(opts...),
		model:  model,
		voice:  voice,
	}
}

// Synthesize renders the script to MP3 and returns the full blob.
func (c *SpeechClient) Synthesize(ctx context.Context, script string) ([]byte, error) {
	resp, err := c.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          c.model,
		Voice:          c.voice,
		Input:          script,
		Instructions:   openai.String(speechInstructions),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	return data, nil
}
