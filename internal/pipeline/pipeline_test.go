package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"paperwave/internal/models"
	"paperwave/internal/objstore"
)

// --- fakes ---------------------------------------------------------------

type chatCall struct {
	system    string
	user      string
	maxTokens int
}

type chatReply struct {
	content string
	err     error
}

type fakeChat struct {
	calls   []chatCall
	replies []chatReply
}

func (f *fakeChat) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	call := chatCall{}
	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			call.system = msg.Content
		case schema.User:
			call.user = msg.Content
		}
	}
	o := model.GetCommonOptions(&model.Options{}, opts...)
	if o.MaxTokens != nil {
		call.maxTokens = *o.MaxTokens
	}
	f.calls = append(f.calls, call)

	idx := len(f.calls) - 1
	if idx >= len(f.replies) {
		return nil, errors.New("no scripted reply")
	}
	reply := f.replies[idx]
	if reply.err != nil {
		return nil, reply.err
	}
	return &schema.Message{Role: schema.Assistant, Content: reply.content}, nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Text(ctx context.Context, path string) (string, error) {
	return f.text, f.err
}

type fakeImages struct {
	calls   int
	url     string
	err     error
	prompts []string
}

func (f *fakeImages) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.url, f.err
}

type fakeSpeech struct {
	calls int
	data  []byte
	err   error
}

func (f *fakeSpeech) Synthesize(ctx context.Context, script string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.data, f.err
}

type storedUpload struct {
	path        string
	contentType string
	size        int
}

type fakeStore struct {
	mu          sync.Mutex
	uploads     []storedUpload
	uploadCalls int
	failUploads int
	probeErr    error
	requestErr  error
	removed     []string
}

func (f *fakeStore) Upload(ctx context.Context, path, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	if f.uploadCalls <= f.failUploads {
		return fmt.Errorf("upload attempt %d failed", f.uploadCalls)
	}
	f.uploads = append(f.uploads, storedUpload{path: path, contentType: contentType, size: len(data)})
	return nil
}

func (f *fakeStore) PublicURL(path string) string {
	return "https://store.example/public/" + path
}

func (f *fakeStore) RequestPublicURL(path string) (string, error) {
	if f.requestErr != nil {
		return "", f.requestErr
	}
	return "https://store.example/public/" + path, nil
}

func (f *fakeStore) Probe(ctx context.Context, publicURL string) error {
	return f.probeErr
}

func (f *fakeStore) Remove(ctx context.Context, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, paths...)
	return nil
}

type fakeRecorder struct {
	calls    int
	err      error
	recorded []*models.Podcast
}

func (f *fakeRecorder) CreatePodcast(ctx context.Context, podcast *models.Podcast) (*models.Podcast, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	stored := *podcast
	stored.ID = int64(f.calls)
	stored.CreatedAt = time.Unix(1700000000, 0).UTC()
	f.recorded = append(f.recorded, &stored)
	return &stored, nil
}

// --- fixtures ------------------------------------------------------------

func testRequest(authors ...string) *Request {
	if len(authors) == 0 {
		authors = []string{"Ada Lovelace"}
	}
	return &Request{
		UserID:          42,
		FilePath:        "/tmp/paper.pdf",
		Title:           "On Computable Numbers",
		Abstract:        "We investigate the limits of mechanical computation.",
		Authors:         authors,
		PublishingYear:  1936,
		FieldOfResearch: "Computer Science",
		Keywords:        []string{"computation", "decidability"},
		IsPublic:        true,
	}
}

type fixture struct {
	chat     *fakeChat
	images   *fakeImages
	speech   *fakeSpeech
	store    *fakeStore
	recorder *fakeRecorder
	pipeline *Pipeline
}

func newFixture(replies ...chatReply) *fixture {
	if len(replies) == 0 {
		replies = []chatReply{
			{content: "telescope, star chart, brass gears"},
			{content: "A brass telescope resting on a star chart, warm lamplight."},
			{content: "Welcome to PaperWave, where research finds its voice. Today we discuss computable numbers."},
		}
	}
	f := &fixture{
		chat:     &fakeChat{replies: replies},
		images:   &fakeImages{url: "https://images.example/tmp/1.png"},
		speech:   &fakeSpeech{data: []byte("mp3-bytes")},
		store:    &fakeStore{},
		recorder: &fakeRecorder{},
	}
	noSleep := func(context.Context, time.Duration) error { return nil }
	imageRetry := objstore.RetryPolicy{
		MaxAttempts: 3,
		Backoff:     objstore.LinearBackoff(time.Second),
		Sleep:       noSleep,
	}
	audioRetry := objstore.SingleAttempt()
	f.pipeline = New(Deps{
		Chat:       f.chat,
		Extractor:  &fakeExtractor{text: "page one\npage two"},
		Images:     f.images,
		Speech:     f.speech,
		Fetcher:    &fakeFetcher{data: []byte("png-bytes")},
		Store:      f.store,
		Recorder:   f.recorder,
		ImageRetry: &imageRetry,
		AudioRetry: &audioRetry,
		Now:        func() time.Time { return time.UnixMilli(1700000000000) },
		Token:      func() string { return "deadbeef" },
	})
	return f
}

// --- tests ---------------------------------------------------------------

func TestRunSuccess(t *testing.T) {
	f := newFixture()
	var seen []Progress
	tracker := NewTracker(func(p Progress) { seen = append(seen, p) })

	res, err := f.pipeline.Run(context.Background(), testRequest(), tracker)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if f.recorder.calls != 1 {
		t.Fatalf("expected exactly one record insert, got %d", f.recorder.calls)
	}
	podcast := res.Podcast
	wantCover := "https://store.example/public/42/covers/1700000000000-deadbeef.png"
	if podcast.CoverImageURL != wantCover {
		t.Fatalf("cover url = %q, want %q", podcast.CoverImageURL, wantCover)
	}
	wantAudio := "https://store.example/public/42/1700000000000-podcast-audio.mp3"
	if podcast.AudioURL != wantAudio {
		t.Fatalf("audio url = %q, want %q", podcast.AudioURL, wantAudio)
	}
	if res.UsedFallbackPrompt {
		t.Fatal("fallback prompt should not be used when both concept calls succeed")
	}

	final := tracker.Snapshot()
	if final.Stage != StageComplete || final.Percent != 100 {
		t.Fatalf("final progress = %+v, want complete/100", final)
	}
	last := -1
	for _, p := range seen {
		if p.Percent < last {
			t.Fatalf("progress went backwards: %v", seen)
		}
		last = p.Percent
	}
	// Token budgets for the two concept calls.
	if len(f.chat.calls) != 3 {
		t.Fatalf("expected 3 chat calls, got %d", len(f.chat.calls))
	}
	if f.chat.calls[0].maxTokens != 150 || f.chat.calls[1].maxTokens != 200 {
		t.Fatalf("unexpected token budgets: %d, %d", f.chat.calls[0].maxTokens, f.chat.calls[1].maxTokens)
	}
}

func TestRunsAreDeterministicApartFromPathsAndID(t *testing.T) {
	first := newFixture()
	second := newFixture()
	// Same request, different timestamp/token for the second run.
	second.pipeline.now = func() time.Time { return time.UnixMilli(1700000999999) }
	second.pipeline.token = func() string { return "cafef00d" }

	resA, err := first.pipeline.Run(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	resB, err := second.pipeline.Run(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	a, b := resA.Podcast, resB.Podcast
	if a.Title != b.Title || a.Abstract != b.Abstract || a.Script != b.Script {
		t.Fatal("non-identifier fields should be byte-identical across runs")
	}
	if strings.Join(a.Authors, "|") != strings.Join(b.Authors, "|") {
		t.Fatal("authors should match across runs")
	}
	if a.CoverImageURL == b.CoverImageURL || a.AudioURL == b.AudioURL {
		t.Fatal("storage paths should differ between runs")
	}
}

func TestRunAbortsWhenImageServiceReturnsNoURL(t *testing.T) {
	f := newFixture()
	f.images.url = ""

	_, err := f.pipeline.Run(context.Background(), testRequest(), nil)
	if !IsKind(err, KindImageGeneration) {
		t.Fatalf("expected image generation error, got %v", err)
	}
	if f.store.uploadCalls != 0 {
		t.Fatalf("no upload should be attempted, got %d", f.store.uploadCalls)
	}
	if f.recorder.calls != 0 {
		t.Fatalf("no record should be inserted, got %d", f.recorder.calls)
	}
}

func TestRunImageUploadExhaustsThreeAttempts(t *testing.T) {
	f := newFixture()
	f.store.failUploads = 3

	_, err := f.pipeline.Run(context.Background(), testRequest(), nil)
	if !IsKind(err, KindImageUpload) {
		t.Fatalf("expected image upload error, got %v", err)
	}
	if f.store.uploadCalls != 3 {
		t.Fatalf("expected exactly 3 upload attempts, got %d", f.store.uploadCalls)
	}
	if !strings.Contains(err.Error(), "attempt 3") {
		t.Fatalf("error should reference the last underlying failure, got %v", err)
	}
}

func TestRunRejectsOverlongScriptBeforeSpeech(t *testing.T) {
	f := newFixture(
		chatReply{content: "gears"},
		chatReply{content: "A field of brass gears."},
		chatReply{content: strings.Repeat("a", 8001)},
	)

	_, err := f.pipeline.Run(context.Background(), testRequest(), nil)
	if !IsKind(err, KindScriptTooLong) {
		t.Fatalf("expected script-too-long error, got %v", err)
	}
	if f.speech.calls != 0 {
		t.Fatalf("speech service must not be called, got %d calls", f.speech.calls)
	}
	// The cover was already uploaded; the failed run should clean it up.
	if len(f.store.removed) != 1 || !strings.Contains(f.store.removed[0], "/covers/") {
		t.Fatalf("expected cover cleanup, removed = %v", f.store.removed)
	}
}

func TestRunPersistenceFailureCleansUpBothObjects(t *testing.T) {
	f := newFixture()
	f.recorder.err = errors.New("insert failed")

	_, err := f.pipeline.Run(context.Background(), testRequest(), nil)
	if !IsKind(err, KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if len(f.store.removed) != 2 {
		t.Fatalf("expected both blobs cleaned up, removed = %v", f.store.removed)
	}
}

func TestRunDocumentParseFailureBeforeAnyNetworkCall(t *testing.T) {
	f := newFixture()
	f.pipeline.extractor = &fakeExtractor{err: errors.New("corrupt xref table")}

	_, err := f.pipeline.Run(context.Background(), testRequest(), nil)
	if !IsKind(err, KindDocumentParse) {
		t.Fatalf("expected document parse error, got %v", err)
	}
	if len(f.chat.calls) != 0 || f.images.calls != 0 {
		t.Fatal("no external call should happen when the document cannot be opened")
	}
}

func TestRunCancelledContextSkipsPersistence(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Run(ctx, testRequest(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.store.uploadCalls != 0 || f.recorder.calls != 0 {
		t.Fatal("cancelled run must not upload or persist")
	}
}
