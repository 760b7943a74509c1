package audio

import (
	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/foxseedlab/chumon/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*CaptureService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewCaptureService(CaptureConfig{
			Encoding:           audio.Encoding(cfg.ArtifactEncoding),
			ArchiveDir:         cfg.ArtifactArchiveDir,
			MaxDurationSeconds: cfg.MaxRecordingDurationSec,
		}, NewOpusDecoder), nil
	})
	do.Provide(injector, func(i do.Injector) (audio.Service, error) {
		return do.MustInvoke[*CaptureService](i), nil
	})
	do.Provide(injector, func(i do.Injector) (audio.FrameSink, error) {
		return do.MustInvoke[*CaptureService](i), nil
	})
}
