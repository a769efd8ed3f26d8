// Package recorder composes the capture backend, the streaming session and
// the history store into start/stop recording semantics.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bosley/dictate/capture"
	"github.com/bosley/dictate/history"
	"github.com/bosley/dictate/session"
)

// Transcriber is the slice of the streaming session the recorder drives.
type Transcriber interface {
	Connect(ctx context.Context, credential string) bool
	SendAudioChunk([]byte)
	Disconnect()
}

// KeySource hands out the next credential to use for a session.
type KeySource interface {
	Next() (string, bool)
}

// Options wires the recorder's collaborators. All fields are required except
// History, which may be nil when persistence is not wanted.
type Options struct {
	Backend capture.Backend
	Session Transcriber
	Keys    KeySource
	History *history.Store
}

// Recorder owns exactly one recording session at a time.
type Recorder struct {
	backend capture.Backend
	session Transcriber
	keys    KeySource
	history *history.Store

	transcript Transcript

	mu          sync.Mutex
	active      bool
	startedAt   time.Time
	amplitude   float64
	unsubChunks func()
	unsubAmp    func()
}

func New(opts Options) *Recorder {
	return &Recorder{
		backend: opts.Backend,
		session: opts.Session,
		keys:    opts.Keys,
		history: opts.History,
	}
}

// Start begins a recording session: credential lookup, remote connect, then
// capture. Partially acquired resources are released on failure. Starting
// while already active is a no-op.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return nil
	}

	key, ok := r.keys.Next()
	if !ok {
		return errors.New("no transcription credential configured")
	}

	if !r.backend.HasPermission() {
		return errors.New("microphone permission denied")
	}

	if !r.session.Connect(ctx, key) {
		return errors.New("failed to connect to transcription service")
	}

	if !r.backend.Start() {
		// The channel is already open; tear it down before reporting.
		r.session.Disconnect()
		return errors.New("failed to start audio capture")
	}

	r.transcript.Reset()
	r.unsubChunks = r.backend.SubscribeChunks(r.session.SendAudioChunk)
	r.unsubAmp = r.backend.SubscribeAmplitude(r.setAmplitude)
	r.startedAt = time.Now()
	r.active = true

	slog.Info("Recording session started")
	return nil
}

// Stop ends the session, persisting a history record when there is a
// non-empty transcript or an audio artifact. Teardown is best-effort and
// unconditional; stopping while inactive is a no-op.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	unsubChunks := r.unsubChunks
	unsubAmp := r.unsubAmp
	r.unsubChunks = nil
	r.unsubAmp = nil
	startedAt := r.startedAt
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.amplitude = 0
		r.mu.Unlock()
	}()

	if unsubChunks != nil {
		unsubChunks()
	}
	if unsubAmp != nil {
		unsubAmp()
	}

	artifact := r.backend.Stop()
	r.session.Disconnect()

	transcript := r.transcript.Text()
	if transcript == "" && artifact == "" {
		slog.Info("Recording session stopped with nothing to save")
		return
	}

	if r.history == nil {
		return
	}

	rec := history.Record{
		ID:         history.NewID(startedAt),
		DateTime:   startedAt.Format(time.RFC3339),
		DurationMs: time.Since(startedAt).Milliseconds(),
		Transcript: transcript,
	}
	if artifact != "" {
		rec.AudioPath = &artifact
	}

	if err := r.history.Add(rec); err != nil {
		slog.Error("Failed to persist recording session", "error", err, "id", rec.ID)
		return
	}

	slog.Info("Recording session saved",
		"id", rec.ID,
		"durationMs", rec.DurationMs,
		"transcriptLength", len(transcript))
}

// HandleResult folds one streaming result into the live transcript. Wire it
// to the session's OnTranscript callback.
func (r *Recorder) HandleResult(res session.Result) {
	r.transcript.Apply(res)
}

// Active reports whether a recording session is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Amplitude returns the most recent amplitude sample, zero when stopped.
func (r *Recorder) Amplitude() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.amplitude
}

// Transcript exposes the live transcript aggregate.
func (r *Recorder) Transcript() *Transcript {
	return &r.transcript
}

func (r *Recorder) setAmplitude(a float64) {
	r.mu.Lock()
	r.amplitude = a
	r.mu.Unlock()
}
