package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"paperwave/internal/models"
	"paperwave/internal/objstore"
)

// Request captures one generation submission. It is immutable once a run
// starts and owned exclusively by that run.
type Request struct {
	UserID          int64
	FilePath        string
	Title           string
	Abstract        string
	Authors         []string
	PublishingYear  int
	FieldOfResearch string
	Keywords        []string
	DOI             string
	IsPublic        bool
}

// Result is what a successful run yields.
type Result struct {
	Podcast *models.Podcast
	// UsedFallbackPrompt reports that the cover prompt came from the
	// deterministic template rather than the concept synthesis calls.
	UsedFallbackPrompt bool
}

// ChatModel is the narrow slice of an eino chat model the pipeline needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// TextExtractor converts the uploaded document into plain text.
type TextExtractor interface {
	Text(ctx context.Context, path string) (string, error)
}

// ImageGenerator returns the transient URL of one generated image.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SpeechSynthesizer turns a narration script into an audio blob.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, script string) ([]byte, error)
}

// Fetcher downloads a transient URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Recorder persists the final artifact.
type Recorder interface {
	CreatePodcast(ctx context.Context, podcast *models.Podcast) (*models.Podcast, error)
}

// Deps are the pipeline's collaborators, injected explicitly so tests can
// substitute fakes for every external service.
type Deps struct {
	Chat      ChatModel
	Extractor TextExtractor
	Images    ImageGenerator
	Speech    SpeechSynthesizer
	Fetcher   Fetcher
	Store     objstore.Store
	Recorder  Recorder

	// ImageRetry defaults to 3 attempts with 1s linear backoff;
	// AudioRetry defaults to a single attempt.
	ImageRetry     *objstore.RetryPolicy
	AudioRetry     *objstore.RetryPolicy
	ScriptMaxChars int

	Now   func() time.Time
	Token func() string
}

// Pipeline runs the document-to-podcast workflow: extract text, compose a
// visual prompt, produce and persist the cover image, synthesize the
// narration script, produce and persist the audio, record the artifact.
// Stages are strictly sequential; each stage's output feeds the next.
type Pipeline struct {
	chat           ChatModel
	extractor      TextExtractor
	images         ImageGenerator
	speech         SpeechSynthesizer
	fetcher        Fetcher
	store          objstore.Store
	recorder       Recorder
	imageRetry     objstore.RetryPolicy
	audioRetry     objstore.RetryPolicy
	scriptMaxChars int
	now            func() time.Time
	token          func() string
}

// New builds a pipeline, filling in default policies where Deps leaves them
// unset.
func New(deps Deps) *Pipeline {
	imageRetry := objstore.RetryPolicy{
		MaxAttempts: 3,
		Backoff:     objstore.LinearBackoff(time.Second),
	}
	if deps.ImageRetry != nil {
		imageRetry = *deps.ImageRetry
	}
	audioRetry := objstore.SingleAttempt()
	if deps.AudioRetry != nil {
		audioRetry = *deps.AudioRetry
	}
	maxChars := deps.ScriptMaxChars
	if maxChars <= 0 {
		maxChars = defaultScriptMaxChars
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	token := deps.Token
	if token == nil {
		token = uuid.NewString
	}
	return &Pipeline{
		chat:           deps.Chat,
		extractor:      deps.Extractor,
		images:         deps.Images,
		speech:         deps.Speech,
		fetcher:        deps.Fetcher,
		store:          deps.Store,
		recorder:       deps.Recorder,
		imageRetry:     imageRetry,
		audioRetry:     audioRetry,
		scriptMaxChars: maxChars,
		now:            now,
		token:          token,
	}
}

// Run executes one generation end to end, reporting checkpoints through the
// tracker. On a terminal failure after at least one successful upload, the
// orphaned objects are deleted best effort.
func (p *Pipeline) Run(ctx context.Context, req *Request, tracker *Tracker) (res *Result, err error) {
	if tracker == nil {
		tracker = NewTracker(nil)
	}

	var created []string
	defer func() {
		if err != nil && len(created) > 0 {
			p.compensate(created)
		}
	}()

	// The cheapest possible failure point: the document must open before
	// any network call is made.
	text, extractErr := p.extractor.Text(ctx, req.FilePath)
	if extractErr != nil {
		err = newError(KindDocumentParse, "extract document text", extractErr)
		return nil, err
	}
	tracker.advance(StageImage, 10)

	if err = stageGuard(ctx); err != nil {
		return nil, err
	}
	prompt, usedFallback := p.composeVisualPrompt(ctx, req)
	tracker.advance(StageImage, 30)

	if err = stageGuard(ctx); err != nil {
		return nil, err
	}
	cover, coverErr := p.produceCover(ctx, req.UserID, prompt, &created)
	if coverErr != nil {
		err = coverErr
		return nil, err
	}
	tracker.advance(StageScript, 40)

	if err = stageGuard(ctx); err != nil {
		return nil, err
	}
	script, scriptErr := p.synthesizeScript(ctx, req, text)
	if scriptErr != nil {
		err = scriptErr
		return nil, err
	}
	tracker.advance(StageAudio, 70)

	if err = stageGuard(ctx); err != nil {
		return nil, err
	}
	audio, audioErr := p.produceAudio(ctx, req.UserID, script, &created)
	if audioErr != nil {
		err = audioErr
		return nil, err
	}
	tracker.advance(StageAudio, 90)

	// A cancelled run must not commit a half-abandoned artifact.
	if err = stageGuard(ctx); err != nil {
		return nil, err
	}
	podcast := &models.Podcast{
		UserID:          req.UserID,
		Title:           req.Title,
		Abstract:        req.Abstract,
		Authors:         req.Authors,
		PublishingYear:  req.PublishingYear,
		FieldOfResearch: req.FieldOfResearch,
		DOI:             req.DOI,
		Keywords:        req.Keywords,
		CoverImageURL:   cover.PublicURL,
		AudioURL:        audio.PublicURL,
		Script:          script,
		IsPublic:        req.IsPublic,
	}
	stored, recordErr := p.recorder.CreatePodcast(ctx, podcast)
	if recordErr != nil {
		err = newError(KindPersistence, "record podcast", recordErr)
		return nil, err
	}
	tracker.advance(StageComplete, 100)

	return &Result{Podcast: stored, UsedFallbackPrompt: usedFallback}, nil
}

// stageGuard checks for caller abandonment between stages. In-flight calls
// cannot be recalled, but no new stage starts once the context is done.
func stageGuard(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// compensate deletes blobs a failed run left behind. Best effort: failures
// are logged and otherwise ignored.
func (p *Pipeline) compensate(paths []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.store.Remove(ctx, paths...); err != nil {
		log.Printf("cleanup of %d orphaned objects failed: %v", len(paths), err)
	}
}
