package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeHeaderSizeFields(t *testing.T) {
	header := EncodeHeader(100)

	if len(header) != HeaderSize {
		t.Fatalf("header length = %d, want %d", len(header), HeaderSize)
	}

	if total := binary.LittleEndian.Uint32(header[4:8]); total != 136 {
		t.Errorf("ChunkSize = %d, want 136", total)
	}
	if dataSize := binary.LittleEndian.Uint32(header[40:44]); dataSize != 100 {
		t.Errorf("Subchunk2Size = %d, want 100", dataSize)
	}
}

func TestEncodeHeaderMarkers(t *testing.T) {
	header := EncodeHeader(0)

	markers := []struct {
		offset int
		want   string
	}{
		{0, "RIFF"},
		{8, "WAVE"},
		{12, "fmt "},
		{36, "data"},
	}
	for _, m := range markers {
		if got := string(header[m.offset : m.offset+4]); got != m.want {
			t.Errorf("marker at offset %d = %q, want %q", m.offset, got, m.want)
		}
	}

	if format := binary.LittleEndian.Uint16(header[20:22]); format != 1 {
		t.Errorf("AudioFormat = %d, want 1 (PCM)", format)
	}
	if channels := binary.LittleEndian.Uint16(header[22:24]); channels != 1 {
		t.Errorf("NumChannels = %d, want 1", channels)
	}
	if rate := binary.LittleEndian.Uint32(header[24:28]); rate != SampleRate {
		t.Errorf("SampleRate = %d, want %d", rate, SampleRate)
	}
}

func TestEncodeHeaderDeterministic(t *testing.T) {
	if !bytes.Equal(EncodeHeader(1234), EncodeHeader(1234)) {
		t.Error("EncodeHeader is not reproducible for the same input")
	}
}

func TestUpdateHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wav")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer file.Close()

	// Placeholder header followed by data of as-yet-unknown length, the way
	// a streamed capture writes the file.
	if _, err := file.Write(EncodeHeader(0)); err != nil {
		t.Fatalf("failed to write placeholder header: %v", err)
	}
	if _, err := file.Write(make([]byte, 500)); err != nil {
		t.Fatalf("failed to write data: %v", err)
	}
	if err := UpdateHeader(file, 500); err != nil {
		t.Fatalf("UpdateHeader failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if len(data) != HeaderSize+500 {
		t.Fatalf("file length = %d, want %d", len(data), HeaderSize+500)
	}
	if total := binary.LittleEndian.Uint32(data[4:8]); total != 536 {
		t.Errorf("ChunkSize = %d, want 536", total)
	}
	if dataSize := binary.LittleEndian.Uint32(data[40:44]); dataSize != 500 {
		t.Errorf("Subchunk2Size = %d, want 500", dataSize)
	}
}
