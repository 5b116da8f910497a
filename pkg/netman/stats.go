// Copyright (c) 2017 OysterPack, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package netman

import (
	"sync"
	"sync/atomic"
)

// ConnectionInfo is a read-and-reset sample of one channel's traffic counters
type ConnectionInfo struct {
	SentBytes        uint64
	SentMessages     uint64
	ReceivedBytes    uint64
	ReceivedMessages uint64
}

type counterPair struct {
	bytes    atomic.Uint64
	messages atomic.Uint64
}

func (a *counterPair) record(n int) {
	a.bytes.Add(uint64(n))
	a.messages.Add(1)
}

// trafficStats tracks per-channel (bytes, messages) pairs for sent and
// received traffic. Updates are atomic fetch-adds; sampling exchanges the
// counters with zero so that each sample reports the traffic since the last.
type trafficStats struct {
	mutex    sync.RWMutex
	sent     map[string]*counterPair
	received map[string]*counterPair
}

func newTrafficStats() *trafficStats {
	return &trafficStats{
		sent:     map[string]*counterPair{},
		received: map[string]*counterPair{},
	}
}

func (a *trafficStats) pair(counters map[string]*counterPair, name string) *counterPair {
	a.mutex.RLock()
	pair := counters[name]
	a.mutex.RUnlock()
	if pair != nil {
		return pair
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if pair := counters[name]; pair != nil {
		return pair
	}
	pair = &counterPair{}
	counters[name] = pair
	return pair
}

func (a *trafficStats) recordSent(name string, n int) {
	a.pair(a.sent, name).record(n)
}

func (a *trafficStats) recordReceived(name string, n int) {
	a.pair(a.received, name).record(n)
}

// sample returns the per-channel traffic since the last sample and zeroes the
// counters atomically
func (a *trafficStats) sample() map[string]ConnectionInfo {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	total := map[string]ConnectionInfo{}
	for name, pair := range a.sent {
		info := total[name]
		info.SentBytes = pair.bytes.Swap(0)
		info.SentMessages = pair.messages.Swap(0)
		total[name] = info
	}
	for name, pair := range a.received {
		info := total[name]
		info.ReceivedBytes = pair.bytes.Swap(0)
		info.ReceivedMessages = pair.messages.Swap(0)
		total[name] = info
	}
	return total
}

func (a *trafficStats) reset() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.sent = map[string]*counterPair{}
	a.received = map[string]*counterPair{}
}
