package audio

import (
	"bytes"
	"fmt"

	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const flacBlockSize = 4096

type FLACEncoder struct{}

func NewFLACEncoder() *FLACEncoder {
	return &FLACEncoder{}
}

// Encode writes mono 16-bit samples as a FLAC stream of verbatim subframes
// with prediction analysis enabled.
func (e *FLACEncoder) Encode(samples []int16, format audio.Format) ([]byte, error) {
	if format.Channels != 1 {
		return nil, fmt.Errorf("flac: only mono is supported, got %d channels", format.Channels)
	}
	var buf bytes.Buffer
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(format.SampleRateHertz),
		NChannels:     uint8(format.Channels),
		BitsPerSample: uint8(format.BitsPerSample),
		NSamples:      uint64(len(samples)),
	}
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	for i := 0; i < len(samples); i += flacBlockSize {
		end := min(i+flacBlockSize, len(samples))
		block := samples[i:end]
		samples32 := make([]int32, len(block))
		for j, s := range block {
			samples32[j] = int32(s)
		}
		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(len(block)),
				SampleRate:    uint32(format.SampleRateHertz),
				Channels:      frame.ChannelsMono,
				BitsPerSample: uint8(format.BitsPerSample),
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples32,
				NSamples:  len(block),
			}},
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing flac frame: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return buf.Bytes(), nil
}
