//go:build opus

package audio

import (
	"fmt"

	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/hraban/opus"
)

// maxOpusFrameMs is the longest frame an opus packet can carry.
const maxOpusFrameMs = 120

type opusPacketDecoder struct {
	dec      *opus.Decoder
	channels int
	pcm      []int16
}

// NewOpusDecoder decodes client opus packets straight to the capture format.
func NewOpusDecoder(format audio.Format) (audio.PacketDecoder, error) {
	dec, err := opus.NewDecoder(format.SampleRateHertz, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &opusPacketDecoder{
		dec:      dec,
		channels: format.Channels,
		pcm:      make([]int16, format.SampleRateHertz*maxOpusFrameMs/1000*format.Channels),
	}, nil
}

func (d *opusPacketDecoder) Decode(packet []byte) ([]int16, error) {
	if len(packet) == 0 {
		return nil, nil
	}
	n, err := d.dec.Decode(packet, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("decode opus packet: %w", err)
	}
	out := make([]int16, n*d.channels)
	copy(out, d.pcm[:n*d.channels])
	return out, nil
}
