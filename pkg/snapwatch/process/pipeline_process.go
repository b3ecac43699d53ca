package process

import (
	"context"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/tauraamui/snapwatch/pkg/camera"
	"github.com/tauraamui/snapwatch/pkg/detect"
	"github.com/tauraamui/snapwatch/pkg/log"
	"github.com/tauraamui/snapwatch/pkg/video/videobackend"
	"github.com/tauraamui/snapwatch/pkg/video/videoframe"
)

// Iteration describes one completed pass of a pipeline loop.
type Iteration struct {
	Index      int
	State      State
	Detections int
	Err        error
}

type PipelineSettings struct {
	Source  camera.Client
	Backend videobackend.Backend
	// Detector and NewDetector are both nil for the raw view variant.
	Detector detect.Detector
	// NewDetector is called on the pipeline's own goroutine before the
	// first fetch, a failure stops only this pipeline. A detector built
	// this way is closed when the pipeline stops.
	NewDetector func() (detect.Detector, error)
	Window      videobackend.WindowSettings
	OnIteration func(Iteration)
}

// Pipeline loops fetch, decode, [detect, annotate], show and poll quit
// until quit is pressed, a stage fails or it is stopped from outside.
// Nothing it holds is shared with any other pipeline.
type Pipeline struct {
	uuid     string
	sett     PipelineSettings
	ctx      context.Context
	cancel   context.CancelFunc
	stopping chan interface{}
	window   videobackend.Window
	detector detect.Detector
	start    sync.Once

	mu         sync.Mutex
	state      State
	iterations int
	err        error
}

func NewPipelineProcess(settings PipelineSettings) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		uuid:     uuid.NewString(),
		sett:     settings,
		detector: settings.Detector,
		ctx:      ctx, cancel: cancel,
		stopping: make(chan interface{}),
		state:    Running,
	}
}

func (p *Pipeline) UUID() string { return p.uuid }

func (p *Pipeline) Title() string { return p.sett.Window.Title }

func (p *Pipeline) Variant() Variant {
	if p.sett.Detector != nil || p.sett.NewDetector != nil {
		return DetectionView
	}
	return RawView
}

func (p *Pipeline) Setup() Process {
	if p.window == nil {
		p.window = p.sett.Backend.NewWindow(p.sett.Window)
	}
	return p
}

func (p *Pipeline) Start() {
	p.start.Do(func() {
		p.Setup()
		go p.run()
	})
}

// Stop cancels only this pipeline, an in-flight fetch is aborted but
// detection already running is left to finish.
func (p *Pipeline) Stop() {
	log.Info("Stopping [%s] pipeline...", p.Title())
	p.cancel()
}

func (p *Pipeline) Wait() {
	<-p.stopping
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Iterations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.iterations
}

// Err is the failure that ended the pipeline, nil after a quit or a stop.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pipeline) run() {
	// windowing toolkits expect a window to stay on one thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer close(p.stopping)
	defer p.releaseWindow()

	log.Info("Starting [%s] %s pipeline from [%s]...", p.Title(), p.Variant(), p.sett.Source.Address())
	if p.detector == nil && p.sett.NewDetector != nil && p.ctx.Err() == nil {
		detector, err := p.sett.NewDetector()
		if err != nil {
			log.Error("[%s] pipeline stopped: %s", p.Title(), err.Error())
			p.finish(Iteration{State: Stopped, Err: err}, true)
			return
		}
		p.detector = detector
		defer p.releaseDetector()
	}

	for {
		select {
		case <-p.ctx.Done():
			p.finish(Iteration{Index: p.Iterations(), State: Stopped}, false)
			return
		default:
		}

		quit, detections, err := p.iterate()
		it := Iteration{Index: p.incrIterations(), State: Running, Detections: detections}

		switch {
		case err != nil && p.ctx.Err() != nil:
			it.State = Stopped
			p.finish(it, true)
			return
		case err != nil:
			log.Error("[%s] pipeline stopped: %s", p.Title(), err.Error())
			it.State, it.Err = Stopped, err
			p.finish(it, true)
			return
		case quit:
			log.Info("[%s] quit key pressed", p.Title())
			it.State = Stopped
			p.finish(it, true)
			return
		}

		p.notify(it)
	}
}

// iterate runs one pass, every frame it creates is closed before it returns.
func (p *Pipeline) iterate() (quit bool, detections int, err error) {
	data, err := p.sett.Source.Fetch(p.ctx)
	if err != nil {
		return false, 0, err
	}

	frame, err := p.sett.Backend.NewFrameFromBytes(data)
	if err != nil {
		return false, 0, err
	}
	defer frame.Close()

	shown := videoframe.NoCloser(frame)
	if p.detector != nil {
		found, err := p.detector.Detect(frame)
		if err != nil {
			return false, 0, err
		}
		detections = len(found)
		log.Debug("[%s] %d detections", p.Title(), detections)

		annotated, err := p.sett.Backend.Annotate(frame, found)
		if err != nil {
			return false, detections, err
		}
		defer annotated.Close()
		shown = annotated
	}

	if err := p.window.Show(shown); err != nil {
		return false, detections, err
	}

	return p.window.PollQuit(), detections, nil
}

func (p *Pipeline) incrIterations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.iterations++
	return p.iterations
}

func (p *Pipeline) finish(it Iteration, notify bool) {
	p.mu.Lock()
	p.state = Stopped
	p.err = it.Err
	p.mu.Unlock()
	if notify {
		p.notify(it)
	}
}

func (p *Pipeline) notify(it Iteration) {
	if p.sett.OnIteration != nil {
		p.sett.OnIteration(it)
	}
}

func (p *Pipeline) releaseDetector() {
	if err := p.detector.Close(); err != nil {
		log.Error("Unable to release [%s] detector: %v", p.Title(), err)
	}
}

func (p *Pipeline) releaseWindow() {
	if err := p.window.Close(); err != nil {
		log.Error("Unable to close [%s] window: %v", p.Title(), err)
	}
}
