package configurator

import (
	"sync"
)

// HeadlessSurface stands in for a renderer: it keeps the last frame and
// logs whenever the displayed scene or view state changes.
type HeadlessSurface struct {
	logger Logger

	mu        sync.Mutex
	last      Frame
	presented uint64
	scenes    uint64
}

func NewHeadlessSurface(logger Logger) *HeadlessSurface {
	return &HeadlessSurface{logger: orNop(logger)}
}

func (s *HeadlessSurface) Present(frame Frame) {
	s.mu.Lock()
	prev := s.last
	s.last = frame
	s.presented++
	changed := frame.SceneID != prev.SceneID
	if changed && frame.SceneID != "" {
		s.scenes++
	}
	s.mu.Unlock()

	if frame.State != prev.State {
		if frame.Message != "" {
			s.logger.Infof("View %s: %s", frame.State, frame.Message)
		} else {
			s.logger.Infof("View %s", frame.State)
		}
	}
	if changed && frame.Scene != nil {
		s.logger.Debugf("Presenting %s", frame.Scene)
	}
}

// Last returns the most recent frame and how many frames were presented.
func (s *HeadlessSurface) Last() (Frame, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.presented
}

// Scenes counts distinct scenes presented so far.
func (s *HeadlessSurface) Scenes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenes
}
