//go:build !opus

package audio

import (
	"errors"

	"github.com/foxseedlab/chumon/internal/audio"
)

var ErrOpusUnsupported = errors.New("opus frames require a build with the opus tag")

func NewOpusDecoder(_ audio.Format) (audio.PacketDecoder, error) {
	return nil, ErrOpusUnsupported
}
