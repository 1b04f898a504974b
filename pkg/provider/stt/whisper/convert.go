package whisper

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// whisperSampleRate is the only input rate whisper.cpp accepts.
const whisperSampleRate = 16000

// errNotWAV is returned when the native provider receives a non-WAV upload.
var errNotWAV = errors.New("whisper: native provider only accepts PCM WAV audio")

// decodeWAV decodes a PCM WAV recording into 16 kHz mono float32 samples in
// [-1, 1] and reports the recording length in seconds.
func decodeWAV(data []byte) ([]float32, float64, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, 0, errNotWAV
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("whisper: decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, errNotWAV
	}

	mono := intBufferToMono(buf, int(d.BitDepth))
	duration := float64(len(mono)) / float64(buf.Format.SampleRate)
	return resampleLinear(mono, buf.Format.SampleRate, whisperSampleRate), duration, nil
}

// intBufferToMono down-mixes an interleaved integer buffer to mono float32 by
// averaging all channels per frame, normalising by the source bit depth.
func intBufferToMono(buf *audio.IntBuffer, bitDepth int) []float32 {
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 1 {
		channels = buf.Format.NumChannels
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// resampleLinear converts samples from rate `from` to rate `to` by linear
// interpolation. The input is returned unchanged when the rates match.
func resampleLinear(samples []float32, from, to int) []float32 {
	if from == to || len(samples) == 0 || from <= 0 || to <= 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range n {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}
