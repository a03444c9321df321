// Package audio decodes raw speech PCM and plays it through a single exclusive session.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// SampleRate of synthesized speech, in Hz.
	SampleRate = 24000
	// Channels of synthesized speech.
	Channels = 1
	// Encoding names the wire format of synthesized speech.
	Encoding = "s16le"

	bytesPerSample = 2
)

var (
	// ErrPlaybackDecodeFailed reports a payload that is not valid base64 s16le PCM.
	ErrPlaybackDecodeFailed = errors.New("playback decode failed")
	// ErrPlaybackStartFailed reports an output device that refused to start.
	ErrPlaybackStartFailed = errors.New("playback start failed")
)

// Buffer holds decoded samples, one slice per channel, normalized to [-1, 1).
type Buffer struct {
	sampleRate int
	data       [][]float32
}

// DecodeBase64PCM decodes a base64 payload of interleaved signed 16-bit little-endian PCM.
func DecodeBase64PCM(payload string, sampleRate, channels int) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrPlaybackDecodeFailed, err)
	}
	return DecodePCM16(raw, sampleRate, channels)
}

// DecodePCM16 converts interleaved s16le bytes into float samples (sample / 32768).
// A trailing partial frame is dropped.
func DecodePCM16(raw []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: invalid format %d Hz x %d", ErrPlaybackDecodeFailed, sampleRate, channels)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrPlaybackDecodeFailed)
	}
	if len(raw)%bytesPerSample != 0 {
		return nil, fmt.Errorf("%w: odd byte length %d", ErrPlaybackDecodeFailed, len(raw))
	}

	frames := len(raw) / bytesPerSample / channels
	if frames == 0 {
		return nil, fmt.Errorf("%w: payload shorter than one frame", ErrPlaybackDecodeFailed)
	}
	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, frames)
	}
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			off := (f*channels + c) * bytesPerSample
			s := int16(binary.LittleEndian.Uint16(raw[off:]))
			data[c][f] = float32(s) / 32768
		}
	}
	return &Buffer{sampleRate: sampleRate, data: data}, nil
}

// SampleRate returns the buffer's sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// NumChannels returns the number of channels.
func (b *Buffer) NumChannels() int { return len(b.data) }

// Len returns the number of frames.
func (b *Buffer) Len() int {
	if len(b.data) == 0 {
		return 0
	}
	return len(b.data[0])
}

// Channel returns the samples of channel c.
func (b *Buffer) Channel(c int) []float32 { return b.data[c] }

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.sampleRate == 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(b.sampleRate)
}

// PCM16 re-encodes the buffer as interleaved s16le.
func (b *Buffer) PCM16() []byte {
	channels := b.NumChannels()
	out := make([]byte, b.Len()*channels*bytesPerSample)
	for f := 0; f < b.Len(); f++ {
		for c := 0; c < channels; c++ {
			v := math.Round(float64(b.data[c][f]) * 32768)
			v = math.Max(math.MinInt16, math.Min(math.MaxInt16, v))
			off := (f*channels + c) * bytesPerSample
			binary.LittleEndian.PutUint16(out[off:], uint16(int16(v)))
		}
	}
	return out
}
