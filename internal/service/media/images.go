package media

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"paperwave/internal/config"
)

// ImageClient generates cover images through the OpenAI images API.
type ImageClient struct {
	client openai.Client
	model  openai.ImageModel
}

// NewImageClient builds a client from media configuration. An empty model
// falls back to DALL-E 3.
func NewImageClient(cfg config.MediaConfig) *ImageClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := openai.ImageModel(cfg.ImageModel)
	if model == "" {
		model = openai.ImageModelDallE3
	}
	return &ImageClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Generate requests one 1024x1024 natural-style image and returns the
// transient URL of the result. The URL expires; callers must download the
// blob promptly.
func (c *ImageClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:   c.model,
		Prompt:  prompt,
		N:       openai.Int(1),
		Size:    openai.ImageGenerateParamsSize1024x1024,
		Quality: openai.ImageGenerateParamsQualityStandard,
		Style:   openai.ImageGenerateParamsStyleNatural,
	})
	if err != nil {
		return "", fmt.Errorf("image generation request: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return resp.Data[0].URL, nil
}
