package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/google/uuid"
)

// capSlackSeconds keeps frames that arrive just before an auto-stop.
const capSlackSeconds = 5

type CaptureConfig struct {
	Encoding           audio.Encoding
	ArchiveDir         string
	MaxDurationSeconds int
}

// CaptureService buffers audio frames pushed by the client for the single
// open capture and finalizes them into an artifact on stop.
type CaptureService struct {
	cfg        CaptureConfig
	encoders   map[audio.Encoding]audio.Encoder
	newDecoder audio.PacketDecoderFactory

	mu      sync.Mutex
	granted bool
	active  *capture
}

type capture struct {
	handle   audio.CaptureHandle
	format   audio.Format
	maxBytes int
	pcm      bytes.Buffer
	decoder  audio.PacketDecoder
	frames   int
	dropped  int
}

func NewCaptureService(cfg CaptureConfig, newDecoder audio.PacketDecoderFactory) *CaptureService {
	if !cfg.Encoding.Valid() {
		cfg.Encoding = audio.EncodingWAV
	}
	return &CaptureService{
		cfg: cfg,
		encoders: map[audio.Encoding]audio.Encoder{
			audio.EncodingWAV:  NewWAVEncoder(),
			audio.EncodingFLAC: NewFLACEncoder(),
		},
		newDecoder: newDecoder,
	}
}

func (s *CaptureService) SetPermission(granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted = granted
}

func (s *CaptureService) RequestPermission(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granted, nil
}

func (s *CaptureService) StartCapture(_ context.Context, format audio.Format) (audio.CaptureHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return "", audio.ErrDeviceBusy
	}
	c := &capture{
		handle: audio.CaptureHandle(uuid.NewString()),
		format: format,
	}
	if s.cfg.MaxDurationSeconds > 0 {
		c.maxBytes = format.BytesPerSecond() * (s.cfg.MaxDurationSeconds + capSlackSeconds)
	}
	s.active = c
	slog.Info("capture opened", "capture_id", string(c.handle), "sample_rate", format.SampleRateHertz, "channels", format.Channels)
	return c.handle, nil
}

// WriteFrame appends one client frame to the open capture.
func (s *CaptureService) WriteFrame(encoding audio.FrameEncoding, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.active
	if c == nil {
		return audio.ErrNoActiveCapture
	}

	var pcm []byte
	switch encoding {
	case audio.FrameEncodingPCM:
		if len(payload)%2 != 0 {
			return fmt.Errorf("l16 frame has odd length %d", len(payload))
		}
		pcm = payload
	case audio.FrameEncodingOpus:
		if c.decoder == nil {
			if s.newDecoder == nil {
				return fmt.Errorf("opus frames are not supported")
			}
			dec, err := s.newDecoder(c.format)
			if err != nil {
				return err
			}
			c.decoder = dec
		}
		samples, err := c.decoder.Decode(payload)
		if err != nil {
			return err
		}
		pcm = encodeLE16(samples)
	default:
		return fmt.Errorf("unsupported frame encoding %q", encoding)
	}

	c.frames++
	if c.maxBytes > 0 && c.pcm.Len()+len(pcm) > c.maxBytes {
		c.dropped++
		if c.dropped == 1 {
			slog.Warn("capture buffer full; dropping frames", "capture_id", string(c.handle), "pcm_bytes", c.pcm.Len())
		}
		return nil
	}
	c.pcm.Write(pcm)
	return nil
}

func (s *CaptureService) StopCapture(_ context.Context, handle audio.CaptureHandle) (*audio.Artifact, error) {
	s.mu.Lock()
	c := s.active
	if c == nil || c.handle != handle {
		s.mu.Unlock()
		return nil, audio.ErrUnknownCapture
	}
	s.active = nil
	s.mu.Unlock()

	pcm := c.pcm.Bytes()
	encoder := s.encoders[s.cfg.Encoding]
	data, err := encoder.Encode(decodeLE16(pcm), c.format)
	if err != nil {
		return nil, fmt.Errorf("encode %s artifact: %w", s.cfg.Encoding, err)
	}
	artifact := &audio.Artifact{
		ID:       string(c.handle),
		Format:   c.format,
		Encoding: s.cfg.Encoding,
		Data:     data,
		PCM:      pcm,
		Duration: c.format.DurationOf(len(pcm)),
	}
	if s.cfg.ArchiveDir != "" {
		path, err := s.archive(artifact)
		if err != nil {
			slog.Error("failed to archive recording", "error", err, "capture_id", artifact.ID)
		} else {
			artifact.Path = path
		}
	}
	slog.Info("capture finalized",
		"capture_id", artifact.ID,
		"frames", c.frames,
		"dropped_frames", c.dropped,
		"pcm_bytes", len(pcm),
		"encoded_bytes", len(data),
		"duration_ms", artifact.Duration.Milliseconds())
	return artifact, nil
}

func (s *CaptureService) archive(a *audio.Artifact) (string, error) {
	if err := os.MkdirAll(s.cfg.ArchiveDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(s.cfg.ArchiveDir, a.ID+a.Encoding.Extension())
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

func (s *CaptureService) AbortCapture(handle audio.CaptureHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.handle == handle {
		slog.Info("capture aborted", "capture_id", string(handle), "frames", s.active.frames)
		s.active = nil
	}
}
