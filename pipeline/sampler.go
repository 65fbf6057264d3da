package pipeline

import "time"

// FrameSampler throttles a monotonic stream of frame timestamps down to at
// most one frame per interval.
type FrameSampler struct {
	interval time.Duration
	last     time.Time
	primed   bool
}

func NewFrameSampler(interval time.Duration) *FrameSampler {
	return &FrameSampler{interval: interval}
}

// Accept reports whether the frame taken at ts should be processed. The first
// frame after construction or Reset is always accepted.
func (s *FrameSampler) Accept(ts time.Time) bool {
	if !s.primed || ts.Sub(s.last) >= s.interval {
		s.last = ts
		s.primed = true
		return true
	}
	return false
}

func (s *FrameSampler) Reset() {
	s.last = time.Time{}
	s.primed = false
}
