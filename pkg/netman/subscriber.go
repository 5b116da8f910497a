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
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oysterpack/netman.go/pkg/commons/collections/sets"
	"github.com/oysterpack/netman.go/pkg/logging"
	"github.com/oysterpack/netman.go/pkg/netman/transport"
)

// Subscriber drives one receive loop for a pub/sub connection and dispatches
// each message to the callback registered for its topic. The "" topic is a
// catch-all: it receives every message, after the topic's own callback.
//
// The first callback starts the worker; removing the last one stops it.
type Subscriber struct {
	mgr *NetworkManager

	connection string

	mutex     sync.Mutex
	callbacks map[string]Callback

	running atomic.Bool
	done    chan struct{}
}

func newSubscriber(mgr *NetworkManager, connection string) *Subscriber {
	return &Subscriber{
		mgr:        mgr,
		connection: connection,
		callbacks:  map[string]Callback{},
	}
}

// Connection returns the pub/sub connection the subscriber drains
func (a *Subscriber) Connection() string {
	return a.connection
}

// IsRunning returns true while the worker is running
func (a *Subscriber) IsRunning() bool {
	return a.running.Load()
}

// AddCallback registers a callback for the topic ("" = catch-all).
// The worker is started if it is not already running.
func (a *Subscriber) AddCallback(callback Callback, topic string) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if _, exists := a.callbacks[topic]; exists {
		return &CallbackAlreadyRegisteredError{Connection: a.connection, Topic: topic}
	}
	a.callbacks[topic] = callback
	if !a.running.Load() {
		a.startup()
	}
	return nil
}

// RemoveCallback removes the topic's callback.
// Removing the last callback shuts the worker down.
func (a *Subscriber) RemoveCallback(topic string) error {
	a.mutex.Lock()
	if _, exists := a.callbacks[topic]; !exists {
		a.mutex.Unlock()
		return &CallbackNotRegisteredError{Connection: a.connection, Topic: topic}
	}
	delete(a.callbacks, topic)
	empty := len(a.callbacks) == 0
	a.mutex.Unlock()
	if empty {
		a.Shutdown()
	}
	return nil
}

// HasCallback returns true if a callback is registered for the topic
func (a *Subscriber) HasCallback(topic string) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	_, exists := a.callbacks[topic]
	return exists
}

// NumCallbacks returns the number of registered callbacks
func (a *Subscriber) NumCallbacks() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return len(a.callbacks)
}

// Topics returns the topics that have callbacks registered
func (a *Subscriber) Topics() sets.Strings {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	topics := sets.NewStrings()
	for topic := range a.callbacks {
		topics.Add(topic)
	}
	return topics
}

// Shutdown stops the worker and clears all callbacks. Idempotent.
func (a *Subscriber) Shutdown() {
	if a.running.Load() {
		a.running.Store(false)
		<-a.done
	}
	a.mutex.Lock()
	a.callbacks = map[string]Callback{}
	a.mutex.Unlock()
}

// startup is called with the mutex held
func (a *Subscriber) startup() {
	a.running.Store(true)
	a.done = make(chan struct{})
	go a.run(a.done)
}

func (a *Subscriber) run(done chan struct{}) {
	defer close(done)
	for a.running.Load() {
		response, err := a.mgr.ReceiveFrom(a.connection, transport.NoBlock)
		if err != nil {
			if errors.Is(err, transport.ErrReceiveTimeoutExpired) {
				time.Sleep(listenBackoff)
				continue
			}
			logger.Warn().Str(logging.EVENT, EVENT_RECEIVE_FAILED).
				Str(logging.CONNECTION, a.connection).Err(err).Msg("")
			time.Sleep(listenBackoff)
			continue
		}
		a.dispatch(response)
	}
}

func (a *Subscriber) dispatch(response transport.Response) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if callback := a.callbacks[response.Metadata]; callback != nil {
		callback(response)
	}
	if response.Metadata != "" {
		if callback := a.callbacks[""]; callback != nil {
			callback(response)
		}
	}
}
