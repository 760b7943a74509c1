package audio

import (
	"context"
	"errors"
	"time"
)

// Format describes the PCM target of a capture.
type Format struct {
	SampleRateHertz int
	Channels        int
	BitsPerSample   int
}

// DefaultFormat is mono 12 kHz 16-bit linear PCM.
func DefaultFormat() Format {
	return Format{
		SampleRateHertz: 12000,
		Channels:        1,
		BitsPerSample:   16,
	}
}

func (f Format) BytesPerSecond() int {
	return f.SampleRateHertz * f.Channels * f.BitsPerSample / 8
}

// DurationOf returns the playback duration of n bytes of PCM in this format.
func (f Format) DurationOf(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

type Encoding string

const (
	EncodingWAV  Encoding = "wav"
	EncodingFLAC Encoding = "flac"
)

func (e Encoding) Valid() bool {
	return e == EncodingWAV || e == EncodingFLAC
}

func (e Encoding) Extension() string {
	return "." + string(e)
}

type FrameEncoding string

const (
	FrameEncodingPCM  FrameEncoding = "l16"
	FrameEncodingOpus FrameEncoding = "opus"
)

type CaptureHandle string

// Artifact is a finalized recording. Data holds the container-encoded file
// and PCM the raw little-endian samples it was encoded from.
type Artifact struct {
	ID       string
	Format   Format
	Encoding Encoding
	Data     []byte
	PCM      []byte
	Duration time.Duration
	Path     string
}

var (
	ErrNoActiveCapture = errors.New("no active capture")
	ErrDeviceBusy      = errors.New("capture device is busy")
	ErrUnknownCapture  = errors.New("unknown capture handle")
)

type Service interface {
	RequestPermission(ctx context.Context) (bool, error)
	StartCapture(ctx context.Context, format Format) (CaptureHandle, error)
	StopCapture(ctx context.Context, handle CaptureHandle) (*Artifact, error)
	AbortCapture(handle CaptureHandle)
}

// PermissionSetter records the client's microphone permission decision.
type PermissionSetter interface {
	SetPermission(granted bool)
}

// FrameSink receives audio frames pushed by the client while a capture is
// open.
type FrameSink interface {
	WriteFrame(encoding FrameEncoding, payload []byte) error
}

type Encoder interface {
	Encode(samples []int16, format Format) ([]byte, error)
}

type PacketDecoder interface {
	Decode(packet []byte) ([]int16, error)
}

type PacketDecoderFactory func(format Format) (PacketDecoder, error)
