package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
)

// Tone generation parameters. The output is fixed so the fallback path is
// fully deterministic: same text in, same bytes out.
const (
	toneSampleRate  = 16000
	toneDurationSec = 1.2
	toneFrequencyHz = 440.0
	toneAmplitude   = 0.3
)

// ToneProvider is the provider identifier reported by the tone generator.
const ToneProvider = "tone_fallback_stub"

// Tone is a local synthesizer producing a fixed sine tone in a WAV
// container. It ignores the input text and voice, never touches the network,
// and never fails, which makes it both the synthesis fallback of last resort
// and a standalone stub provider for demos.
type Tone struct{}

var _ Synthesizer = Tone{}

// Synthesize returns the fixed tone: mono 16-bit PCM, 16 kHz, 1.2 s, 440 Hz.
func (Tone) Synthesize(_ context.Context, _, _ string) (*Result, error) {
	frameCount := int(toneSampleRate * toneDurationSec)
	pcm := make([]int16, frameCount)
	for i := range pcm {
		v := toneAmplitude * math.Sin(2*math.Pi*toneFrequencyHz*float64(i)/toneSampleRate)
		pcm[i] = int16(32767 * v)
	}
	return &Result{
		Audio:    encodeWAV(pcm, toneSampleRate),
		MIMEType: "audio/wav",
		Provider: ToneProvider,
	}, nil
}

// encodeWAV wraps mono 16-bit PCM samples in a RIFF/WAVE container.
func encodeWAV(samples []int16, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	dataSize := len(samples) * bitsPerSample / 8
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}
