package camera

import "time"

//go:generate mockgen -destination=mock_clock_test.go -package=camera github.com/nerrad567/gray-logic-cameras/internal/bridges/camera Clock,Ticker

// Clock abstracts time so poll cycles can be driven from tests.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker is the part of time.Ticker the scheduler uses.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Ticker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) Chan() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()                  { r.t.Stop() }
