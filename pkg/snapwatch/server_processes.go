package snapwatch

import (
	"errors"
	"sync"

	"github.com/tauraamui/snapwatch/pkg/detect"
	"github.com/tauraamui/snapwatch/pkg/log"
	"github.com/tauraamui/snapwatch/pkg/snapwatch/process"
)

var ErrShuttingDown = errors.New("server is shutting down")

// SetupProcesses builds the live view and detection pipelines, each with
// a camera client of its own. The detector is loaded by the detection
// pipeline once it runs, so a model that fails to load leaves the live
// view running. Calling it again is a no-op.
func (s *Server) SetupProcesses() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuttingDown {
		return ErrShuttingDown
	}
	if len(s.pipelines) > 0 {
		return nil
	}

	detectorSett := detectorSettings(s.config.Detector)
	live := process.NewPipelineProcess(process.PipelineSettings{
		Source:  s.newSource(cameraSettings(s.config.Camera)),
		Backend: s.backend,
		Window:  windowSettings(s.config.LiveView),
	})
	detection := process.NewPipelineProcess(process.PipelineSettings{
		Source:  s.newSource(cameraSettings(s.config.Camera)),
		Backend: s.backend,
		Window:  windowSettings(s.config.DetectionView),
		NewDetector: func() (detect.Detector, error) {
			return s.resolveDetector(detectorSett)
		},
	})

	for _, proc := range []*process.Pipeline{live, detection} {
		proc.Setup()
		s.pipelines = append(s.pipelines, proc)
	}
	return nil
}

// RunProcesses starts every pipeline and blocks until all of them have
// stopped. A pipeline ending does not stop the others.
func (s *Server) RunProcesses() []error {
	pipelines := s.Pipelines()
	for _, proc := range pipelines {
		proc.Start()
	}

	var errs []error
	for _, proc := range pipelines {
		proc.Wait()
		if err := proc.Err(); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Info("[%s] pipeline finished after %d iterations", proc.Title(), proc.Iterations())
	}
	return errs
}

func (s *Server) shutdownProcesses() {
	pipelines := s.Pipelines()
	wg := sync.WaitGroup{}
	wg.Add(len(pipelines))
	for _, proc := range pipelines {
		go func(wg *sync.WaitGroup, proc process.Process) {
			proc.Stop()
			// a pipeline that never ran still has its window to release
			proc.Start()
			proc.Wait()
			wg.Done()
		}(&wg, proc)
	}
	wg.Wait()
}
