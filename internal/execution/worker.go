// Package execution runs inbound WhatsApp messages as River jobs.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/finia/backend/internal/reply"
	"github.com/finia/backend/internal/services"
)

// ProcessMessageArgs is one inbound message. Exactly one of Text and AudioID
// is set.
type ProcessMessageArgs struct {
	MessageID string `json:"message_id" river:"unique"`
	Phone     string `json:"phone" river:"unique"`
	Name      string `json:"name,omitempty"`
	Text      string `json:"text,omitempty"`
	AudioID   string `json:"audio_id,omitempty"`
	AudioMIME string `json:"audio_mime,omitempty"`
}

func (ProcessMessageArgs) Kind() string { return "process_message" }

// InsertOpts deduplicates redeliveries at the queue level.
func (ProcessMessageArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 3,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

type Processor interface {
	Process(ctx context.Context, in services.Inbound) *services.Result
}

type Composer interface {
	Compose(ctx context.Context, res *services.Result) reply.Reply
}

type MediaSource interface {
	DownloadMedia(ctx context.Context, mediaID string, maxBytes int64) ([]byte, string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendImage(ctx context.Context, to string, png []byte, caption string) error
}

// ErrRetry asks River to run the job again after a persistence failure.
var ErrRetry = errors.New("message processing failed, will retry")

type ProcessMessageWorker struct {
	river.WorkerDefaults[ProcessMessageArgs]
	processor     Processor
	composer      Composer
	media         MediaSource
	transcriber   Transcriber
	sender        Sender
	maxAudioBytes int64
	logger        *slog.Logger
}

func NewProcessMessageWorker(p Processor, c Composer, media MediaSource, t Transcriber, s Sender, maxAudioBytes int64, logger *slog.Logger) *ProcessMessageWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessMessageWorker{
		processor:     p,
		composer:      c,
		media:         media,
		transcriber:   t,
		sender:        s,
		maxAudioBytes: maxAudioBytes,
		logger:        logger,
	}
}

func (w *ProcessMessageWorker) Work(ctx context.Context, job *river.Job[ProcessMessageArgs]) error {
	args := job.Args
	log := w.logger.With("message_id", args.MessageID, "attempt", job.Attempt)

	text := args.Text
	if args.AudioID != "" {
		t, err := w.transcribe(ctx, args)
		if err != nil {
			log.Warn("transcription failed", "error", err)
			return w.deliver(ctx, args.Phone, w.composer.Compose(ctx, &services.Result{Kind: services.ResultTranscriptionFailed}))
		}
		text = t
	}

	res := w.processor.Process(ctx, services.Inbound{
		Phone:     args.Phone,
		Name:      args.Name,
		MessageID: args.MessageID,
		Text:      text,
	})
	// Nothing was recorded, so a later attempt handles the message from
	// scratch. Only the last attempt answers with the failure text.
	if res.Kind == services.ResultFailure && job.Attempt < job.MaxAttempts {
		return ErrRetry
	}
	log.Info("message processed", "result", res.Kind.String())
	return w.deliver(ctx, args.Phone, w.composer.Compose(ctx, res))
}

func (w *ProcessMessageWorker) transcribe(ctx context.Context, args ProcessMessageArgs) (string, error) {
	audio, mime, err := w.media.DownloadMedia(ctx, args.AudioID, w.maxAudioBytes)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	if mime == "" {
		mime = args.AudioMIME
	}
	return w.transcriber.Transcribe(ctx, audio, mime)
}

// deliver sends the reply. Send failures are logged, not retried: the
// message is already recorded and a retry would only see a duplicate.
func (w *ProcessMessageWorker) deliver(ctx context.Context, to string, r reply.Reply) error {
	if r.Text != "" {
		if err := w.sender.SendText(ctx, to, r.Text); err != nil {
			w.logger.Error("send text failed", "to", to, "error", err)
			return nil
		}
	}
	if r.Image != nil {
		if err := w.sender.SendImage(ctx, to, r.Image.PNG, r.Image.Caption); err != nil {
			w.logger.Error("send image failed", "to", to, "error", err)
		}
	}
	return nil
}
