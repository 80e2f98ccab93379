package pipeline

import (
	"context"
	"fmt"
)

// produceAudio synthesizes speech for the validated script and persists the
// track. Unlike the image path, the public URL is requested from the
// storage service rather than constructed.
func (p *Pipeline) produceAudio(ctx context.Context, userID int64, script string, created *[]string) (StoredObject, error) {
	data, err := p.speech.Synthesize(ctx, script)
	if err != nil {
		return StoredObject{}, fmt.Errorf("synthesize speech: %w", err)
	}

	path := fmt.Sprintf("%d/%d-podcast-audio.mp3", userID, p.now().UnixMilli())
	uploadErr := p.audioRetry.Do(ctx, func() error {
		return p.store.Upload(ctx, path, "audio/mpeg", data)
	})
	if uploadErr != nil {
		return StoredObject{}, newError(KindAudioUpload, "upload audio track", uploadErr)
	}
	*created = append(*created, path)

	publicURL, err := p.store.RequestPublicURL(path)
	if err != nil || publicURL == "" {
		return StoredObject{}, newError(KindAudioURL, "resolve audio public url", err)
	}
	return StoredObject{PublicURL: publicURL, Path: path}, nil
}
