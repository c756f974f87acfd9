/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package estimator

// windowSample is one exchange as seen by the windowed estimators. Invalid
// exchanges still occupy a slot so that the window keeps covering consecutive
// indices; selection and regression only look at valid slots.
type windowSample struct {
	index  uint64
	t1     float64
	delay  float64
	offset float64
	valid  bool
}

// slidingWindow is a bounded circular buffer over the exchange stream,
// sliding by one exchange per add. Oldest-first iteration order.
type slidingWindow struct {
	size        int
	currentSize int
	head        int // position the next sample is written to
	samples     []windowSample
}

func newSlidingWindow(size int) *slidingWindow {
	if size < 1 {
		size = 1
	}
	return &slidingWindow{
		size:    size,
		samples: make([]windowSample, size),
	}
}

func (w *slidingWindow) add(s windowSample) {
	w.samples[w.head] = s
	w.head = (w.head + 1) % w.size
	if w.currentSize < w.size {
		w.currentSize++
	}
}

// do calls f for every sample currently in the window, oldest first.
func (w *slidingWindow) do(f func(s *windowSample)) {
	start := w.head - w.currentSize
	if start < 0 {
		start += w.size
	}
	for i := 0; i < w.currentSize; i++ {
		f(&w.samples[(start+i)%w.size])
	}
}

func (w *slidingWindow) Full() bool {
	return w.currentSize == w.size
}
