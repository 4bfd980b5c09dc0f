//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package cyclemanager

import (
	"time"
)

type CycleTicker interface {
	Start()
	Stop()
	C() <-chan time.Time
	// called with bool value whenever cycle function finished execution
	// true - indicates cycle function actually did some processing
	// false - cycle function returned without doing anything
	CycleExecuted(executed bool)
}

type fixedIntervalTicker struct {
	interval time.Duration
	ticker   *time.Ticker
}

// NewFixedTicker ticks every interval once started, regardless of whether
// the cycles did any work.
func NewFixedTicker(interval time.Duration) CycleTicker {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	ticker.Stop()

	return &fixedIntervalTicker{
		interval: interval,
		ticker:   ticker,
	}
}

func (t *fixedIntervalTicker) Start() {
	t.ticker.Reset(t.interval)
}

func (t *fixedIntervalTicker) Stop() {
	t.ticker.Stop()
}

func (t *fixedIntervalTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t *fixedIntervalTicker) CycleExecuted(executed bool) {
}
