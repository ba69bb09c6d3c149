package execution

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finia/backend/internal/reply"
	"github.com/finia/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubProcessor struct {
	kind services.ResultKind
	got  []services.Inbound
}

func (s *stubProcessor) Process(_ context.Context, in services.Inbound) *services.Result {
	s.got = append(s.got, in)
	return &services.Result{Kind: s.kind}
}

// kindComposer answers with the result kind's name and, for summaries, a
// chart.
type kindComposer struct{}

func (kindComposer) Compose(_ context.Context, res *services.Result) reply.Reply {
	if res.Kind == services.ResultDuplicate {
		return reply.Reply{}
	}
	r := reply.Reply{Text: res.Kind.String()}
	if res.Kind == services.ResultLedgerSummary {
		r.Image = &reply.Image{PNG: []byte("PNG"), Caption: "chart"}
	}
	return r
}

type stubMedia struct {
	err error
}

func (s stubMedia) DownloadMedia(_ context.Context, _ string, _ int64) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return []byte("OggS"), "audio/ogg", nil
}

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return s.text, s.err
}

type recordingSender struct {
	mu     sync.Mutex
	texts  []string
	images []string
	err    error
}

func (s *recordingSender) SendText(_ context.Context, _ string, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.texts = append(s.texts, body)
	return nil
}

func (s *recordingSender) SendImage(_ context.Context, _ string, _ []byte, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, caption)
	return nil
}

func job(args ProcessMessageArgs, attempt int) *river.Job[ProcessMessageArgs] {
	return &river.Job[ProcessMessageArgs]{
		JobRow: &rivertype.JobRow{Attempt: attempt, MaxAttempts: 3},
		Args:   args,
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestWork_TextMessage(t *testing.T) {
	proc := &stubProcessor{kind: services.ResultLedgerSummary}
	sender := &recordingSender{}
	w := NewProcessMessageWorker(proc, kindComposer{}, stubMedia{}, stubTranscriber{}, sender, 1024, nil)

	err := w.Work(context.Background(), job(ProcessMessageArgs{MessageID: "wamid.1", Phone: "+5511999998888", Text: "resumo"}, 1))
	require.NoError(t, err)
	require.Len(t, proc.got, 1)
	assert.Equal(t, "resumo", proc.got[0].Text)
	assert.Equal(t, []string{"ledger_summary"}, sender.texts)
	assert.Equal(t, []string{"chart"}, sender.images)
}

func TestWork_AudioIsTranscribed(t *testing.T) {
	proc := &stubProcessor{kind: services.ResultLedgerInserted}
	sender := &recordingSender{}
	w := NewProcessMessageWorker(proc, kindComposer{}, stubMedia{}, stubTranscriber{text: "gastei 50 no mercado"}, sender, 1024, nil)

	require.NoError(t, w.Work(context.Background(), job(ProcessMessageArgs{MessageID: "wamid.2", Phone: "+5511999998888", AudioID: "a1"}, 1)))
	require.Len(t, proc.got, 1)
	assert.Equal(t, "gastei 50 no mercado", proc.got[0].Text)
	assert.Equal(t, "wamid.2", proc.got[0].MessageID)
}

func TestWork_TranscriptionFailure(t *testing.T) {
	for name, w := range map[string]*ProcessMessageWorker{
		"download":   NewProcessMessageWorker(&stubProcessor{}, kindComposer{}, stubMedia{err: errors.New("404")}, stubTranscriber{}, &recordingSender{}, 1024, nil),
		"transcribe": NewProcessMessageWorker(&stubProcessor{}, kindComposer{}, stubMedia{}, stubTranscriber{err: errors.New("quota")}, &recordingSender{}, 1024, nil),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, w.Work(context.Background(), job(ProcessMessageArgs{MessageID: "m", Phone: "p", AudioID: "a1"}, 1)))
			assert.Empty(t, w.processor.(*stubProcessor).got, "processor must not run")
			assert.Equal(t, []string{"transcription_failed"}, w.sender.(*recordingSender).texts)
		})
	}
}

func TestWork_FailureRetriesUntilLastAttempt(t *testing.T) {
	sender := &recordingSender{}
	w := NewProcessMessageWorker(&stubProcessor{kind: services.ResultFailure}, kindComposer{}, stubMedia{}, stubTranscriber{}, sender, 1024, nil)
	args := ProcessMessageArgs{MessageID: "wamid.3", Phone: "p", Text: "oi"}

	assert.ErrorIs(t, w.Work(context.Background(), job(args, 1)), ErrRetry)
	assert.ErrorIs(t, w.Work(context.Background(), job(args, 2)), ErrRetry)
	assert.Empty(t, sender.texts)

	require.NoError(t, w.Work(context.Background(), job(args, 3)))
	assert.Equal(t, []string{"failure"}, sender.texts)
}

func TestWork_DuplicateSendsNothing(t *testing.T) {
	sender := &recordingSender{}
	w := NewProcessMessageWorker(&stubProcessor{kind: services.ResultDuplicate}, kindComposer{}, stubMedia{}, stubTranscriber{}, sender, 1024, nil)
	require.NoError(t, w.Work(context.Background(), job(ProcessMessageArgs{MessageID: "m", Phone: "p", Text: "oi"}, 1)))
	assert.Empty(t, sender.texts)
	assert.Empty(t, sender.images)
}

func TestWork_SendFailureIsNotRetried(t *testing.T) {
	sender := &recordingSender{err: errors.New("window closed")}
	w := NewProcessMessageWorker(&stubProcessor{kind: services.ResultLedgerSummary}, kindComposer{}, stubMedia{}, stubTranscriber{}, sender, 1024, nil)
	require.NoError(t, w.Work(context.Background(), job(ProcessMessageArgs{MessageID: "m", Phone: "p", Text: "x"}, 1)))
	assert.Empty(t, sender.images, "image is skipped when the text failed")
}

func TestInsertOpts(t *testing.T) {
	opts := ProcessMessageArgs{}.InsertOpts()
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.True(t, opts.UniqueOpts.ByArgs)
	assert.Equal(t, "process_message", ProcessMessageArgs{}.Kind())
}
