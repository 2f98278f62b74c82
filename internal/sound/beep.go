package sound

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const speakerSampleRate = beep.SampleRate(44100)

// beepBackend decodes files in process and mixes them on the shared
// speaker. Sound names need a theme lookup and are not supported.
type beepBackend struct {
	volume float64
	sem    *semaphore.Weighted
	logger *zap.Logger

	initOnce sync.Once
	initErr  error
}

func newBeepBackend(volume float64, logger *zap.Logger) *beepBackend {
	return &beepBackend{
		volume: volume,
		sem:    semaphore.NewWeighted(maxConcurrent),
		logger: logger,
	}
}

func (b *beepBackend) Name() string { return BackendBeep }

func (b *beepBackend) Play(src Source) Outcome {
	if src.File == "" {
		b.logger.Warn("beep backend does not support sound names", zap.String("name", src.Name))
		return Failed
	}
	if !b.sem.TryAcquire(1) {
		return Busy
	}

	streamer, format, err := decodeFile(src.File)
	if err != nil {
		b.sem.Release(1)
		b.logger.Warn("failed to decode sound file", zap.String("file", src.File), zap.Error(err))
		return Failed
	}

	b.initOnce.Do(func() {
		b.initErr = speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10))
	})
	if b.initErr != nil {
		streamer.Close()
		b.sem.Release(1)
		b.logger.Warn("failed to initialize speaker", zap.Error(b.initErr))
		return Failed
	}

	var s beep.Streamer = streamer
	if format.SampleRate != speakerSampleRate {
		s = beep.Resample(4, format.SampleRate, speakerSampleRate, s)
	}
	vol := &effects.Volume{Streamer: s, Base: 2, Volume: b.volume}

	speaker.Play(beep.Seq(vol, beep.Callback(func() {
		streamer.Close()
		b.sem.Release(1)
	})))
	return Played
}

// decodeFile picks a decoder by extension. The returned streamer owns the
// file and closes it.
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(f)
	default:
		err = fmt.Errorf("unsupported sound format %q", ext)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}
	return streamer, format, nil
}
