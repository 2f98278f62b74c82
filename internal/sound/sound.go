// Package sound plays notification sounds through an external player or
// an in-process beep speaker.
package sound

import (
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/llehouerou/noticed/internal/logging"
	"github.com/llehouerou/noticed/internal/notification"
)

// Outcome labels a sound decision for metrics.
type Outcome string

const (
	Disabled    Outcome = "disabled"
	NotAllowed  Outcome = "not-allowed"
	Suppressed  Outcome = "suppressed"
	RateLimited Outcome = "rate-limited"
	NoSource    Outcome = "no-source"
	Busy        Outcome = "busy"
	Played      Outcome = "played"
	Failed      Outcome = "failed"
)

// Backend names accepted in configuration.
const (
	BackendAuto     = "auto"
	BackendBeep     = "beep"
	BackendCanberra = "canberra"
	BackendPwPlay   = "pw-play"
	BackendPaPlay   = "paplay"
	BackendNone     = "none"
)

// DefaultMinInterval is the shortest gap between two played sounds.
const DefaultMinInterval = 150 * time.Millisecond

// Settings configures sound playback.
type Settings struct {
	Enabled     bool
	Backend     string
	DefaultName string
	DefaultFile string
	DefaultDir  string
	MinInterval time.Duration
	Volume      float64
}

// Source is either a themed sound name or a file path.
type Source struct {
	Name string
	File string
}

func (s Source) String() string {
	if s.File != "" {
		return s.File
	}
	return s.Name
}

// Backend starts playback of a source without blocking. It returns Busy
// when its concurrency limit is reached.
type Backend interface {
	Name() string
	Play(src Source) Outcome
}

// Player decides whether and what to play for each notification.
type Player struct {
	enabled     bool
	backend     Backend
	defaultName string
	defaultFile string
	limiter     *rate.Limiter
	now         func() time.Time
	logger      *zap.Logger
}

// New resolves the backend and the default source once.
func New(s Settings, logger *zap.Logger) *Player {
	backend := selectBackend(s, logger)
	if s.Enabled && backend == nil {
		logger.Warn("sound enabled but no playback backend available")
	}
	if backend != nil {
		logger.Debug("sound backend selected", zap.String("backend", backend.Name()))
	}
	return newPlayer(s, backend, time.Now, logger)
}

func newPlayer(s Settings, backend Backend, now func() time.Time, logger *zap.Logger) *Player {
	interval := s.MinInterval
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	return &Player{
		enabled:     s.Enabled,
		backend:     backend,
		defaultName: strings.TrimSpace(s.DefaultName),
		defaultFile: resolveDefaultFile(s, logger),
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
		now:         now,
		logger:      logger,
	}
}

// Supports reports whether sound can actually be played.
func (p *Player) Supports() bool {
	return p != nil && p.enabled && p.backend != nil
}

// Play picks a source from hints or the defaults and starts it.
// allowSound is the store's verdict for this notification.
func (p *Player) Play(hints notification.Hints, allowSound bool) Outcome {
	if !p.Supports() {
		return Disabled
	}
	if !allowSound {
		return NotAllowed
	}
	if v, ok := hints.Bool(notification.HintSuppressSound); ok && v {
		return Suppressed
	}

	if !p.limiter.AllowN(p.now(), 1) {
		return RateLimited
	}

	src, ok := p.source(hints)
	if !ok {
		return NoSource
	}
	outcome := p.backend.Play(src)
	p.logger.Debug("sound requested",
		zap.String("backend", p.backend.Name()),
		logging.SnippetField("source", src.String()),
		zap.String("outcome", string(outcome)),
	)
	return outcome
}

func (p *Player) source(hints notification.Hints) (Source, bool) {
	if v, ok := hints.String(notification.HintSoundFile); ok && strings.TrimSpace(v) != "" {
		path, err := resolveSoundFile(v)
		if err == nil && path != "" {
			return Source{File: path}, true
		}
		p.logger.Debug("ignoring sound-file hint",
			logging.SnippetField("value", v), zap.Error(err))
	}
	if v, ok := hints.String(notification.HintSoundName); ok && strings.TrimSpace(v) != "" {
		return Source{Name: strings.TrimSpace(v)}, true
	}
	if p.defaultFile != "" {
		return Source{File: p.defaultFile}, true
	}
	if p.defaultName != "" {
		return Source{Name: p.defaultName}, true
	}
	return Source{}, false
}

func selectBackend(s Settings, logger *zap.Logger) Backend {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case BackendNone:
		return nil
	case BackendBeep:
		return newBeepBackend(s.Volume, logger)
	case BackendCanberra:
		return newCommandBackend(BackendCanberra, "canberra-gtk-play", logger)
	case BackendPwPlay:
		return newCommandBackend(BackendPwPlay, "pw-play", logger)
	case BackendPaPlay:
		return newCommandBackend(BackendPaPlay, "paplay", logger)
	}

	for _, c := range []struct{ name, program string }{
		{BackendCanberra, "canberra-gtk-play"},
		{BackendPwPlay, "pw-play"},
		{BackendPaPlay, "paplay"},
	} {
		if _, err := exec.LookPath(c.program); err == nil {
			return newCommandBackend(c.name, c.program, logger)
		}
	}
	return newBeepBackend(s.Volume, logger)
}

func resolveDefaultFile(s Settings, logger *zap.Logger) string {
	if f := strings.TrimSpace(s.DefaultFile); f != "" {
		return f
	}
	dir := strings.TrimSpace(s.DefaultDir)
	if dir == "" {
		return ""
	}
	path := firstSoundFile(dir)
	if path != "" {
		logger.Info("using default notification sound file", zap.String("name", filepath.Base(path)))
	}
	return path
}

var audioExtensions = []string{".wav", ".ogg", ".oga", ".mp3", ".flac", ".m4a", ".aac"}

// firstSoundFile returns the lexically first audio file in dir.
func firstSoundFile(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var candidates []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if slices.Contains(audioExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			candidates = append(candidates, filepath.Join(dir, e.Name()))
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	slices.Sort(candidates)
	return candidates[0]
}
