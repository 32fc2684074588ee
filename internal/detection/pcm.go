package detection

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/youpy/go-wav"
	"github.com/zaf/g711"
)

// TelephonySampleRate is the 8 kHz rate of provider media streams.
const TelephonySampleRate = 8000

// DecodeMulaw converts G.711 μ-law bytes to 16-bit PCM samples.
func DecodeMulaw(payload []byte) []int16 {
	lpcm := g711.DecodeUlaw(payload)
	out := make([]int16, len(lpcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(lpcm[2*i:]))
	}
	return out
}

// ToFloat normalizes PCM samples to [-1,1].
func ToFloat(pcm []int16) []float64 {
	out := make([]float64, len(pcm))
	for i, s := range pcm {
		out[i] = float64(s) / 32768
	}
	return out
}

// EncodeWAV wraps mono 16-bit PCM in a WAV container.
func EncodeWAV(pcm []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("detection: invalid sample rate %d", sampleRate)
	}
	var buf bytes.Buffer
	w := wav.NewWriter(&buf, uint32(len(pcm)), 1, uint32(sampleRate), 16)

	samples := make([]wav.Sample, len(pcm))
	for i, s := range pcm {
		samples[i].Values[0] = int(s)
	}
	if err := w.WriteSamples(samples); err != nil {
		return nil, fmt.Errorf("detection: encode wav: %w", err)
	}
	return buf.Bytes(), nil
}
