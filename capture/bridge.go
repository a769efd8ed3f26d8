package capture

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bosley/dictate/audio"
	"github.com/bosley/dictate/metrics"
)

// blockSize is the number of samples accumulated before each
// encode-and-emit cycle. At 16 kHz this bounds emission latency to ~256 ms.
const blockSize = 4096

// BridgeConfig configures the browser bridge backend.
type BridgeConfig struct {
	// ListenAddr is where the ingest server accepts audio-graph sources.
	ListenAddr string

	// ArtifactDir is where assembled WAV exports are written at Stop.
	ArtifactDir string
}

// Bridge is the browser-audio-graph backend: a WebSocket ingest server the
// embedding web page pushes raw float32 sample blocks into. The page cannot
// write native files, so the bridge streams everything it emits into a WAV
// artifact that is finalized when capture stops. Streaming keeps memory flat
// regardless of capture length.
type Bridge struct {
	cfg      BridgeConfig
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics

	mu           sync.Mutex
	active       bool
	server       *http.Server
	listener     net.Listener
	pending      []float64
	artifact     *os.File
	artifactPath string
	artifactLen  uint32

	chunks    signal[[]byte]
	amplitude signal[float64]
	errors    signal[string]
}

func NewBridge(cfg BridgeConfig) *Bridge {
	return &Bridge{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // TODO: restrict to the embedding page's origin
			},
		},
		metrics: metrics.Default(),
	}
}

// HasPermission always reports true: the microphone prompt belongs to the
// browser on the far side of the bridge, and a denial there simply means no
// samples ever arrive.
func (b *Bridge) HasPermission() bool {
	return true
}

// Start begins accepting audio. The ingest server is brought up lazily on
// the first call so the audio source can attach before any capture begins.
// Idempotent while already started.
func (b *Bridge) Start() bool {
	b.mu.Lock()
	if b.active {
		b.mu.Unlock()
		return true
	}

	if err := b.ensureServer(); err != nil {
		b.mu.Unlock()
		slog.Error("Failed to start bridge ingest server", "error", err, "addr", b.cfg.ListenAddr)
		b.errors.emit("failed to start bridge ingest server: " + err.Error())
		return false
	}

	b.pending = nil
	b.active = true
	b.mu.Unlock()

	slog.Debug("Bridge capture started", "addr", b.cfg.ListenAddr)
	return true
}

// Stop ends capture, emits a zero amplitude reset and finalizes the streamed
// WAV artifact by patching its size fields. Returns the artifact path, or an
// empty path when nothing was captured.
func (b *Bridge) Stop() string {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return ""
	}
	b.active = false
	b.pending = nil
	file := b.artifact
	path := b.artifactPath
	written := b.artifactLen
	b.artifact = nil
	b.artifactPath = ""
	b.artifactLen = 0
	b.mu.Unlock()

	b.amplitude.emit(0)
	slog.Debug("Bridge capture stopped", "pcmBytes", written)

	if file == nil {
		return ""
	}

	if err := finalizeArtifact(file, written); err != nil {
		slog.Error("Failed to finalize capture artifact", "error", err, "path", path)
		b.errors.emit("failed to finalize capture artifact: " + err.Error())
		os.Remove(path)
		return ""
	}

	b.metrics.ArtifactsWritten.Inc()
	b.metrics.ArtifactBytes.Add(float64(written))
	slog.Info("Capture artifact written", "path", path, "bytes", written)
	return path
}

// Dispose stops capture and shuts the ingest server down. Idempotent.
func (b *Bridge) Dispose() {
	b.Stop()

	b.mu.Lock()
	server := b.server
	b.server = nil
	b.listener = nil
	b.mu.Unlock()

	if server != nil {
		if err := server.Close(); err != nil {
			slog.Error("Failed to close bridge ingest server", "error", err)
		}
	}

	b.chunks.clear()
	b.amplitude.clear()
	b.errors.clear()
}

func (b *Bridge) SubscribeChunks(fn func([]byte)) func() {
	return b.chunks.subscribe(fn)
}

func (b *Bridge) SubscribeAmplitude(fn func(float64)) func() {
	return b.amplitude.subscribe(fn)
}

func (b *Bridge) SubscribeErrors(fn func(string)) func() {
	return b.errors.subscribe(fn)
}

// Addr returns the ingest server's listen address, or empty before the
// server is up. Useful when ListenAddr binds port 0.
func (b *Bridge) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// ensureServer lazily starts the ingest HTTP server. Callers must hold b.mu.
func (b *Bridge) ensureServer() error {
	if b.server != nil {
		return nil
	}

	listener, err := net.Listen("tcp", b.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", b.cfg.ListenAddr, err)
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws/audio", b.handleSource)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{Handler: router}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("Bridge ingest server error", "error", err)
		}
	}()

	b.server = server
	b.listener = listener
	slog.Info("Bridge ingest server listening", "addr", listener.Addr().String())
	return nil
}

// handleSource owns one connected audio source. Binary frames carry float32
// little-endian samples in [-1, 1]; anything else is ignored.
func (b *Bridge) handleSource(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Bridge source upgrade failed", "error", err)
		return
	}

	sourceID := uuid.New()
	b.metrics.ActiveSources.Inc()
	slog.Debug("Bridge source connected", "sourceID", sourceID, "remoteAddr", conn.RemoteAddr())

	defer func() {
		conn.Close()
		b.metrics.ActiveSources.Dec()
		slog.Debug("Bridge source disconnected", "sourceID", sourceID)
	}()

	conn.SetReadLimit(blockSize * 8)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("Bridge source read error", "error", err, "sourceID", sourceID)
				b.metrics.IngestErrors.Inc()
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if len(data)%4 != 0 {
			slog.Warn("Bridge source sent misaligned sample block", "sourceID", sourceID, "bytes", len(data))
			b.metrics.IngestErrors.Inc()
			continue
		}
		b.ingest(decodeFloat32(data))
	}
}

// ingest buffers raw samples and emits one chunk per full block. Samples
// arriving while capture is not active are dropped.
func (b *Bridge) ingest(samples []float64) {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return
	}

	b.pending = append(b.pending, samples...)

	var emitted [][]byte
	var artifactErr error
	for len(b.pending) >= blockSize {
		pcm := audio.EncodeFrame(b.pending[:blockSize])
		b.pending = b.pending[blockSize:]
		emitted = append(emitted, pcm)
		if artifactErr == nil {
			artifactErr = b.appendArtifact(pcm)
		}
	}
	b.mu.Unlock()

	if artifactErr != nil {
		slog.Error("Failed to persist capture audio", "error", artifactErr)
		b.errors.emit("failed to persist capture audio: " + artifactErr.Error())
	}

	b.metrics.SamplesIngested.Add(float64(len(samples)))
	for _, pcm := range emitted {
		b.chunks.emit(pcm)
		b.amplitude.emit(audio.Amplitude(pcm))
		b.metrics.ChunksEmitted.Inc()
	}
}

// appendArtifact streams one encoded block to the artifact file, opening the
// file on the first block. The file carries a placeholder header until Stop
// patches the final sizes. A write failure discards the artifact but leaves
// live emission untouched. Callers must hold b.mu.
func (b *Bridge) appendArtifact(pcm []byte) error {
	if b.artifact == nil {
		if err := b.openArtifact(); err != nil {
			return err
		}
	}
	if _, err := b.artifact.Write(pcm); err != nil {
		b.artifact.Close()
		os.Remove(b.artifactPath)
		b.artifact = nil
		b.artifactPath = ""
		b.artifactLen = 0
		return fmt.Errorf("failed to append to artifact file: %w", err)
	}
	b.artifactLen += uint32(len(pcm))
	return nil
}

// openArtifact creates a timestamped artifact file with a zero-size header.
// Callers must hold b.mu.
func (b *Bridge) openArtifact() error {
	if err := os.MkdirAll(b.cfg.ArtifactDir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	name := fmt.Sprintf("capture-%s.wav", time.Now().Format("20060102-150405"))
	path := filepath.Join(b.cfg.ArtifactDir, name)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	if _, err := file.Write(audio.EncodeHeader(0)); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write artifact header: %w", err)
	}

	b.artifact = file
	b.artifactPath = path
	b.artifactLen = 0
	slog.Debug("Capture artifact opened", "path", path)
	return nil
}

func finalizeArtifact(file *os.File, written uint32) error {
	if err := audio.UpdateHeader(file, written); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close artifact file: %w", err)
	}
	return nil
}

func decodeFloat32(data []byte) []float64 {
	samples := make([]float64, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = float64(math.Float32frombits(bits))
	}
	return samples
}
