package audio

import "encoding/binary"

const (
	SampleRate    = 16000 // Rate required by the streaming endpoint
	Channels      = 1     // Mono audio
	BitsPerSample = 16    // Using int16 for samples
)

// EncodeFrame converts float samples in [-1, 1] to PCM16 little-endian bytes.
// Samples outside the range are clamped before scaling.
func EncodeFrame(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		}
		if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// EncodeInt16 packs int16 samples as PCM16 little-endian bytes.
func EncodeInt16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

// Amplitude returns the peak absolute sample of a PCM16 little-endian chunk,
// normalized to [0, 1].
func Amplitude(pcm []byte) float64 {
	var peak int
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int(int16(binary.LittleEndian.Uint16(pcm[i:])))
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return float64(peak) / 32768.0
}
