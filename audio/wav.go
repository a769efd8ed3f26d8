package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// HeaderSize is the fixed size of an uncompressed PCM WAV header.
const HeaderSize = 44

type WavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

func newHeader(dataSize uint32, sampleRate uint32, numChannels uint16) WavHeader {
	return WavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     dataSize + 36,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    sampleRate,
		ByteRate:      sampleRate * uint32(numChannels) * BitsPerSample / 8,
		BlockAlign:    numChannels * BitsPerSample / 8,
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// EncodeHeader produces the 44-byte header for a mono 16 kHz PCM16 file whose
// data section is dataSize bytes long. The output is deterministic for a
// given input.
func EncodeHeader(dataSize uint32) []byte {
	return EncodeHeaderFormat(dataSize, SampleRate, Channels)
}

// EncodeHeaderFormat is EncodeHeader with an explicit sample rate and channel
// count.
func EncodeHeaderFormat(dataSize uint32, sampleRate uint32, numChannels uint16) []byte {
	header := newHeader(dataSize, sampleRate, numChannels)
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize))
	// binary.Write of a fixed-size struct cannot fail on a bytes.Buffer.
	_ = binary.Write(buf, binary.LittleEndian, header)
	return buf.Bytes()
}

// UpdateHeader patches the two size fields of an already-written WAV file
// once the final data length is known: ChunkSize at offset 4 and
// Subchunk2Size at offset 40. Used when PCM is streamed to the file behind a
// placeholder header.
func UpdateHeader(file *os.File, dataSize uint32) error {
	patches := []struct {
		offset int64
		value  uint32
	}{
		{4, dataSize + 36},
		{40, dataSize},
	}
	for _, p := range patches {
		if _, err := file.Seek(p.offset, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek to header offset %d: %w", p.offset, err)
		}
		if err := binary.Write(file, binary.LittleEndian, p.value); err != nil {
			return fmt.Errorf("failed to patch header at offset %d: %w", p.offset, err)
		}
	}
	return nil
}
