package pipeline

import (
	"context"
	"fmt"
)

// StoredObject points at one persisted blob.
type StoredObject struct {
	PublicURL string
	Path      string
}

// produceCover generates the cover image, pulls the transient result, and
// persists it with retry. Successfully uploaded paths are appended to
// created before verification, so a late failure still knows what to clean
// up.
func (p *Pipeline) produceCover(ctx context.Context, userID int64, prompt string, created *[]string) (StoredObject, error) {
	url, err := p.images.Generate(ctx, prompt)
	if err != nil {
		return StoredObject{}, newError(KindImageGeneration, "generate cover image", err)
	}
	if url == "" {
		return StoredObject{}, newError(KindImageGeneration, "image service returned no result url", nil)
	}

	data, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return StoredObject{}, newError(KindImageFetch, "fetch generated image", err)
	}

	path := fmt.Sprintf("%d/covers/%d-%s.png", userID, p.now().UnixMilli(), p.token())
	uploadErr := p.imageRetry.Do(ctx, func() error {
		return p.store.Upload(ctx, path, "image/png", data)
	})
	if uploadErr != nil {
		return StoredObject{}, newError(KindImageUpload, "upload cover image", uploadErr)
	}
	*created = append(*created, path)

	publicURL := p.store.PublicURL(path)
	if err := p.store.Probe(ctx, publicURL); err != nil {
		return StoredObject{}, newError(KindImageVerification, "verify cover image url", err)
	}
	return StoredObject{PublicURL: publicURL, Path: path}, nil
}
