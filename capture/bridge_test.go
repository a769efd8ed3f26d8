package capture

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/bosley/dictate/audio"
)

// testBridge returns a bridge with no ingest server; tests feed samples
// through ingest directly.
func testBridge(t *testing.T) *Bridge {
	t.Helper()
	b := NewBridge(BridgeConfig{
		ListenAddr:  "127.0.0.1:0",
		ArtifactDir: t.TempDir(),
	})
	// Bypass ensureServer: mark active the way Start does.
	b.mu.Lock()
	b.active = true
	b.mu.Unlock()
	return b
}

func constSamples(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestBridgeBuffersUntilFullBlock(t *testing.T) {
	b := testBridge(t)

	var chunks [][]byte
	b.SubscribeChunks(func(c []byte) { chunks = append(chunks, c) })

	b.ingest(constSamples(blockSize-1, 0.5))
	if len(chunks) != 0 {
		t.Fatalf("chunk emitted from partial block: got %d chunks", len(chunks))
	}

	b.ingest(constSamples(1, 0.5))
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks after completing a block, want 1", len(chunks))
	}
	if len(chunks[0]) != blockSize*2 {
		t.Errorf("chunk size = %d bytes, want %d", len(chunks[0]), blockSize*2)
	}
}

func TestBridgeEmitsMultipleBlocks(t *testing.T) {
	b := testBridge(t)

	var chunks int
	b.SubscribeChunks(func([]byte) { chunks++ })

	b.ingest(constSamples(blockSize*3+10, 0.1))
	if chunks != 3 {
		t.Errorf("got %d chunks, want 3", chunks)
	}
}

func TestBridgeEmitsAmplitudePerChunk(t *testing.T) {
	b := testBridge(t)

	var amps []float64
	b.SubscribeAmplitude(func(a float64) { amps = append(amps, a) })

	b.ingest(constSamples(blockSize, 0.5))
	if len(amps) != 1 {
		t.Fatalf("got %d amplitude samples, want 1", len(amps))
	}
	// 0.5 scales to 16383, normalized by 32768.
	want := 16383.0 / 32768.0
	if amps[0] != want {
		t.Errorf("amplitude = %v, want %v", amps[0], want)
	}
}

func TestBridgeDropsSamplesWhenInactive(t *testing.T) {
	b := NewBridge(BridgeConfig{ArtifactDir: t.TempDir()})

	var chunks int
	b.SubscribeChunks(func([]byte) { chunks++ })

	b.ingest(constSamples(blockSize*2, 0.5))
	if chunks != 0 {
		t.Errorf("inactive bridge emitted %d chunks", chunks)
	}
}

func TestBridgeStopWritesArtifact(t *testing.T) {
	b := testBridge(t)
	b.ingest(constSamples(blockSize, 0.25))

	var amps []float64
	b.SubscribeAmplitude(func(a float64) { amps = append(amps, a) })

	path := b.Stop()
	if path == "" {
		t.Fatal("Stop returned no artifact path")
	}
	if len(amps) == 0 || amps[len(amps)-1] != 0 {
		t.Error("Stop did not emit a zero amplitude reset")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	wantData := blockSize * 2
	if len(data) != audio.HeaderSize+wantData {
		t.Fatalf("artifact size = %d, want %d", len(data), audio.HeaderSize+wantData)
	}
	if dataSize := binary.LittleEndian.Uint32(data[40:44]); dataSize != uint32(wantData) {
		t.Errorf("artifact data size field = %d, want %d", dataSize, wantData)
	}
	if filepath.Ext(path) != ".wav" {
		t.Errorf("artifact extension = %q, want .wav", filepath.Ext(path))
	}
}

func TestBridgeStopWithoutAudio(t *testing.T) {
	b := testBridge(t)
	if path := b.Stop(); path != "" {
		t.Errorf("Stop with no captured audio returned path %q", path)
	}
}

func TestBridgeStopTwice(t *testing.T) {
	b := testBridge(t)
	b.ingest(constSamples(blockSize, 0.25))

	first := b.Stop()
	second := b.Stop()
	if first == "" {
		t.Error("first Stop returned no artifact")
	}
	if second != "" {
		t.Errorf("second Stop returned path %q, want empty", second)
	}
}

func TestBridgePartialBlockNotPersisted(t *testing.T) {
	b := testBridge(t)
	// A partial block never completes an encode cycle, so nothing reaches
	// the artifact file and Stop has nothing to finalize.
	b.ingest(constSamples(blockSize/2, 0.5))
	if path := b.Stop(); path != "" {
		t.Errorf("Stop after partial block returned path %q", path)
	}
}

func TestBridgeStreamsArtifactDuringCapture(t *testing.T) {
	b := testBridge(t)
	dir := b.cfg.ArtifactDir

	b.ingest(constSamples(blockSize*2, 0.25))

	// Audio reaches disk while capture is still running; the header carries
	// placeholder sizes until Stop patches them.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read artifact directory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("artifact count during capture = %d, want 1", len(entries))
	}
	wantPath := filepath.Join(dir, entries[0].Name())

	mid, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("failed to read artifact mid-capture: %v", err)
	}
	wantData := blockSize * 2 * 2
	if len(mid) != audio.HeaderSize+wantData {
		t.Fatalf("mid-capture artifact size = %d, want %d", len(mid), audio.HeaderSize+wantData)
	}
	if dataSize := binary.LittleEndian.Uint32(mid[40:44]); dataSize != 0 {
		t.Errorf("mid-capture data size field = %d, want 0 placeholder", dataSize)
	}

	path := b.Stop()
	if path != wantPath {
		t.Errorf("Stop returned %q, want %q", path, wantPath)
	}

	final, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read finalized artifact: %v", err)
	}
	if dataSize := binary.LittleEndian.Uint32(final[40:44]); dataSize != uint32(wantData) {
		t.Errorf("finalized data size field = %d, want %d", dataSize, wantData)
	}
	if total := binary.LittleEndian.Uint32(final[4:8]); total != uint32(wantData+36) {
		t.Errorf("finalized ChunkSize = %d, want %d", total, wantData+36)
	}
}

func TestDecodeFloat32(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-1.0))

	samples := decodeFloat32(raw)
	if len(samples) != 2 {
		t.Fatalf("decoded %d samples, want 2", len(samples))
	}
	if samples[0] != 0.5 || samples[1] != -1.0 {
		t.Errorf("samples = %v, want [0.5 -1]", samples)
	}
}
