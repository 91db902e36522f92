package omlclient

import (
	"time"

	"github.com/oml-collect/oml/internal/omllog"
)

// Inject is the hot path (spec.md §4.1): takes the MP's lock, iterates
// every attached MS, feeds each MS's filters the field value they are
// attached to, then runs ms_process. Never blocks on network I/O and
// never returns an error for a network or backpressure reason -- those
// surface only as the BufferedWriter's loss counter (SPEC_FULL.md §A.3).
func (c *Client) Inject(mp *MeasurementPoint, values []Value) {
	if c.noop || !mp.active {
		return
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, ms := range mp.streams {
		for _, ff := range ms.filters {
			if ff.fieldIndex >= len(values) {
				continue
			}
			v := values[ff.fieldIndex]
			field := mp.Fields[ff.fieldIndex]
			if v.Kind != field.Kind {
				omllog.Warnf("omlclient: MP %q field %q: injected kind %s != declared kind %s, skipping", mp.Name, field.Name, v.Kind, field.Kind)
				continue
			}
			if err := ff.f.Input(toFilterValue(v.DeepCopy())); err != nil {
				omllog.Warnf("omlclient: MP %q MS %q filter input: %v", mp.Name, ms.Name, err)
			}
		}
		c.msProcess(ms)
	}
}

// msProcess increments the MS's sample counter; threshold-mode streams
// emit once the counter reaches Threshold. Periodic-mode streams never
// emit from here -- their own ticker goroutine calls emit (spec.md §4.1).
func (c *Client) msProcess(ms *MeasurementStream) {
	if ms.Period > 0 {
		return
	}
	ms.counter++
	if ms.counter < ms.Threshold {
		return
	}
	ms.counter = 0
	if err := ms.emit(time.Now()); err != nil {
		omllog.Warnf("omlclient: MS %q emit: %v", ms.Name, err)
	}
}

// startPeriodicTimer runs ms's periodic emit on its own ticker goroutine,
// taking mp's lock around every tick (spec.md §4.1, §4.5 "filter timer
// thread"), until Close signals ms.stopTimer.
func (c *Client) startPeriodicTimer(mp *MeasurementPoint, ms *MeasurementStream) {
	ms.stopTimer = make(chan struct{})
	go func() {
		t := time.NewTicker(ms.Period)
		defer t.Stop()
		for {
			select {
			case <-ms.stopTimer:
				return
			case now := <-t.C:
				mp.mu.Lock()
				if !mp.active {
					mp.mu.Unlock()
					return
				}
				if err := ms.emit(now); err != nil {
					omllog.Warnf("omlclient: MS %q periodic emit: %v", ms.Name, err)
				}
				mp.mu.Unlock()
			}
		}
	}()
}
