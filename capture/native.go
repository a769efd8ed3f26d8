package capture

import (
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/bosley/dictate/audio"
)

const framesPerBuffer = 1024

// Native captures microphone audio through the default PortAudio input
// device at 16 kHz mono. Echo cancellation and noise suppression are owned by
// the OS audio stack; PortAudio exposes no knobs for them.
type Native struct {
	mu          sync.Mutex
	initialized bool
	active      bool
	disposed    bool
	stream      *portaudio.Stream

	chunks    signal[[]byte]
	amplitude signal[float64]
	errors    signal[string]
}

func NewNative() *Native {
	return &Native{}
}

// HasPermission probes the default input device by opening and immediately
// closing a stream. On platforms that gate microphone access this probe can
// itself raise the OS permission prompt.
func (n *Native) HasPermission() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.ensureInit(); err != nil {
		return false
	}

	probe, err := portaudio.OpenDefaultStream(audio.Channels, 0, float64(audio.SampleRate), framesPerBuffer, func(in []int16) {})
	if err != nil {
		slog.Debug("Microphone probe failed", "error", err)
		return false
	}
	probe.Close()
	return true
}

// Start opens the default input stream and begins emitting chunks. Calling
// Start while already capturing is a no-op that reports true.
func (n *Native) Start() bool {
	n.mu.Lock()
	if n.active {
		n.mu.Unlock()
		return true
	}

	if err := n.ensureInit(); err != nil {
		n.mu.Unlock()
		n.fail("Failed to initialize audio host", err)
		return false
	}

	stream, err := portaudio.OpenDefaultStream(audio.Channels, 0, float64(audio.SampleRate), framesPerBuffer, n.onSamples)
	if err != nil {
		n.mu.Unlock()
		n.fail("Failed to open audio input stream", err)
		return false
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		n.mu.Unlock()
		n.fail("Failed to start audio input stream", err)
		return false
	}

	n.stream = stream
	n.active = true
	n.mu.Unlock()

	slog.Debug("Native capture started", "sampleRate", audio.SampleRate, "framesPerBuffer", framesPerBuffer)
	return true
}

// onSamples runs on the PortAudio capture thread. It only encodes and emits;
// all session state lives on the other side of the signal.
func (n *Native) onSamples(in []int16) {
	pcm := audio.EncodeInt16(in)
	n.chunks.emit(pcm)
	n.amplitude.emit(audio.Amplitude(pcm))
}

// Stop ends capture and emits a zero amplitude reset. The native backend
// does not persist audio, so the artifact path is always empty.
func (n *Native) Stop() string {
	n.mu.Lock()
	if !n.active {
		n.mu.Unlock()
		return ""
	}
	stream := n.stream
	n.stream = nil
	n.active = false
	n.mu.Unlock()

	if err := stream.Stop(); err != nil {
		slog.Error("Failed to stop audio input stream", "error", err)
	}
	if err := stream.Close(); err != nil {
		slog.Error("Failed to close audio input stream", "error", err)
	}

	n.amplitude.emit(0)
	slog.Debug("Native capture stopped")
	return ""
}

// Dispose stops capture if needed and terminates the audio host. Idempotent.
func (n *Native) Dispose() {
	n.Stop()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disposed {
		return
	}
	n.disposed = true

	if n.initialized {
		if err := portaudio.Terminate(); err != nil {
			slog.Error("Failed to terminate audio host", "error", err)
		}
		n.initialized = false
	}

	n.chunks.clear()
	n.amplitude.clear()
	n.errors.clear()
}

func (n *Native) SubscribeChunks(fn func([]byte)) func() {
	return n.chunks.subscribe(fn)
}

func (n *Native) SubscribeAmplitude(fn func(float64)) func() {
	return n.amplitude.subscribe(fn)
}

func (n *Native) SubscribeErrors(fn func(string)) func() {
	return n.errors.subscribe(fn)
}

// ensureInit initializes the PortAudio host once. Callers must hold n.mu.
func (n *Native) ensureInit() error {
	if n.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	n.initialized = true
	n.disposed = false
	return nil
}

func (n *Native) fail(msg string, err error) {
	slog.Error(msg, "error", err)
	n.errors.emit(msg + ": " + err.Error())
}

// ListDevices returns the available audio input devices.
func ListDevices() ([]portaudio.DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	inputDevices := make([]portaudio.DeviceInfo, 0)
	for _, device := range devices {
		if device.MaxInputChannels > 0 {
			inputDevices = append(inputDevices, *device)
		}
	}

	return inputDevices, nil
}
