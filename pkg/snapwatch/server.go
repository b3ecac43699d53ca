package snapwatch

import (
	"sync"

	"github.com/tauraamui/snapwatch/pkg/camera"
	"github.com/tauraamui/snapwatch/pkg/configdef"
	"github.com/tauraamui/snapwatch/pkg/detect"
	"github.com/tauraamui/snapwatch/pkg/log"
	"github.com/tauraamui/snapwatch/pkg/snapwatch/process"
	"github.com/tauraamui/snapwatch/pkg/video/videobackend"
)

type Option func(*Server)

// WithSourceFactory replaces how each pipeline gets its own camera client.
func WithSourceFactory(f func(camera.Settings) camera.Client) Option {
	return func(s *Server) { s.newSource = f }
}

func WithDetectorResolver(f func(detect.Settings) (detect.Detector, error)) Option {
	return func(s *Server) { s.resolveDetector = f }
}

// WithKeySource feeds quit keys to windows of a backend resolved from config.
func WithKeySource(keys videobackend.KeySource) Option {
	return func(s *Server) { s.keys = keys }
}

type Server struct {
	config          configdef.Values
	backend         videobackend.Backend
	keys            videobackend.KeySource
	newSource       func(camera.Settings) camera.Client
	resolveDetector func(detect.Settings) (detect.Detector, error)

	mu           sync.Mutex
	pipelines    []*process.Pipeline
	shuttingDown bool
	shutdownOnce sync.Once
	shutdownDone chan interface{}
}

// NewServer resolves configuration straight away. A nil backend is
// resolved from the configured video backend name.
func NewServer(resolver configdef.Resolver, backend videobackend.Backend, opts ...Option) (*Server, error) {
	s := &Server{
		newSource:       camera.NewClient,
		resolveDetector: detect.Resolve,
		shutdownDone:    make(chan interface{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := resolver.Resolve()
	if err != nil {
		return nil, err
	}
	s.config = cfg

	if backend == nil {
		log.Info("Using [%s] video backend", cfg.VideoBackend)
		backend = videobackend.Resolve(cfg.VideoBackend, videobackend.Options{
			WriteConfidence: cfg.Detector.WriteConfidence,
			Keys:            s.keys,
		})
	}
	s.backend = backend

	return s, nil
}

func (s *Server) Config() configdef.Values {
	return s.config
}

// Pipelines returns the live view pipeline followed by the detection pipeline.
func (s *Server) Pipelines() []*process.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*process.Pipeline{}, s.pipelines...)
}

// Shutdown stops every pipeline, including ones never started, and
// refuses any later SetupProcesses.
func (s *Server) Shutdown() chan interface{} {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.shuttingDown = true
		s.mu.Unlock()
		go func() {
			s.shutdownProcesses()
			close(s.shutdownDone)
		}()
	})
	return s.shutdownDone
}

func cameraSettings(c configdef.Camera) camera.Settings {
	return camera.Settings{Address: c.Address, Timeout: c.Timeout()}
}

func windowSettings(v configdef.View) videobackend.WindowSettings {
	return videobackend.WindowSettings{Title: v.Title, QuitKey: v.Key(), PollDelay: v.PollDelay()}
}

func detectorSettings(d configdef.Detector) detect.Settings {
	return detect.Settings{
		Kind:         d.Kind,
		Model:        d.Model,
		Config:       d.Config,
		Names:        d.Names,
		Confidence:   d.Confidence,
		NMSThreshold: d.NMSThreshold,
		InputSize:    d.InputSize,
	}
}
