package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/foxseedlab/chumon/internal/audio"
)

const wavHeaderSize = 44

type WAVEncoder struct{}

func NewWAVEncoder() *WAVEncoder {
	return &WAVEncoder{}
}

// Encode writes a canonical PCM RIFF/WAVE file.
func (e *WAVEncoder) Encode(samples []int16, format audio.Format) ([]byte, error) {
	if format.BitsPerSample != 16 {
		return nil, fmt.Errorf("wav: unsupported bits per sample %d", format.BitsPerSample)
	}
	dataSize := len(samples) * 2
	blockAlign := format.Channels * format.BitsPerSample / 8

	buf := make([]byte, wavHeaderSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(wavHeaderSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(format.SampleRateHertz))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(format.BytesPerSecond()))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(format.BitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[wavHeaderSize:], encodeLE16(samples))
	return buf, nil
}
