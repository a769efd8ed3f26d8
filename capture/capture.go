// Package capture provides the microphone capture backends. Two
// implementations exist behind one contract: a native PortAudio backend and a
// bridge backend fed by a browser audio graph over WebSocket.
package capture

import (
	"sort"
	"sync"
)

// Backend is the capability contract shared by the audio sources. Chunks are
// PCM16 little-endian mono at 16 kHz; amplitude is the normalized peak of
// each chunk. Emission is fire-and-forget with no backpressure.
type Backend interface {
	// HasPermission reports whether microphone access is available. The
	// native backend probes the device, which may itself trigger the OS
	// permission prompt; the bridge defers the prompt to the browser and
	// always reports true.
	HasPermission() bool

	// Start begins capture. It is idempotent when already started and
	// reports false (after emitting a descriptive error event) on failure.
	Start() bool

	// Stop ends capture, releases platform resources and emits a zero
	// amplitude reset. The bridge returns the path of the assembled WAV
	// artifact; the native backend returns an empty path.
	Stop() string

	// Dispose stops capture if active and releases everything. Safe to
	// call more than once.
	Dispose()

	SubscribeChunks(fn func([]byte)) (cancel func())
	SubscribeAmplitude(fn func(float64)) (cancel func())
	SubscribeErrors(fn func(string)) (cancel func())
}

// signal is a single-purpose broadcast channel: one callback list, delivery
// in subscription order, synchronous with the emitter.
type signal[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

func (s *signal[T]) subscribe(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]func(T))
	}
	id := s.next
	s.next++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *signal[T]) emit(v T) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), len(ids))
	for i, id := range ids {
		fns[i] = s.subs[id]
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (s *signal[T]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = nil
}
