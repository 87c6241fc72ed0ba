package models

// ProgressEvent is a closed variant: [Partial] or [Completed].
type ProgressEvent interface {
	progressEvent()
}

// Partial reports job progress in percent (0..100).
type Partial struct {
	Percentage float64
}

// Completed is the single terminal event of a progress channel.
type Completed struct {
	Image ImageResult
}

func (Partial) progressEvent()   {}
func (Completed) progressEvent() {}

// ClampPercentage bounds p to [0, 100].
func ClampPercentage(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
