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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oysterpack/netman.go/pkg/logging"
	"github.com/oysterpack/netman.go/pkg/netman/transport"
)

// worker back-off after a receive timeout
const listenBackoff = 10 * time.Millisecond

// Listener drives callback-style receive for one key - a connection name or
// a topic. It owns a single worker goroutine that polls the facade with
// non-blocking receives and hands each message to the installed callback.
//
// Start/Stop are serialized by the facade's registration mutex. SetCallback
// is safe to call at any time: the callback swap is atomic with respect to
// dispatch, so a callback never observes a message after it was replaced.
type Listener struct {
	mgr *NetworkManager

	key string

	callbackMutex sync.Mutex
	callback      Callback

	listening atomic.Bool
	done      chan struct{}
}

func newListener(mgr *NetworkManager) *Listener {
	return &Listener{mgr: mgr}
}

// Key returns the key the listener was last started for
func (a *Listener) Key() string {
	return a.key
}

// IsListening returns true while the worker is running
func (a *Listener) IsListening() bool {
	return a.listening.Load()
}

// Start begins the worker for the key.
// Starting an already running listener on the same key is a soft warning.
// Starting on a different key fails: stop the listener first.
func (a *Listener) Start(key string) error {
	if a.listening.Load() {
		if a.key == key {
			logger.Warn().Str(logging.EVENT, EVENT_ALREADY_LISTENING).Str(logging.NAME, key).
				Msg("listener is already running")
			return nil
		}
		return &OperationFailedError{Message: fmt.Sprintf("listener is running for %v - stop it before starting for %v", a.key, key)}
	}
	a.key = key
	a.listening.Store(true)
	a.done = make(chan struct{})
	go a.run(a.done)
	logger.Debug().Str(logging.EVENT, EVENT_LISTENER_STARTED).Str(logging.NAME, key).Msg("")
	return nil
}

// Stop requests the worker to stop, waits for it to exit, and clears the
// callback. Stopping a stopped listener is a soft warning.
func (a *Listener) Stop() {
	if !a.listening.Load() {
		logger.Warn().Str(logging.EVENT, EVENT_NOT_LISTENING).Str(logging.NAME, a.key).
			Msg("listener is not running")
		return
	}
	a.listening.Store(false)
	<-a.done
	a.SetCallback(nil)
	logger.Debug().Str(logging.EVENT, EVENT_LISTENER_STOPPED).Str(logging.NAME, a.key).Msg("")
}

// SetCallback installs or replaces the callback.
// A nil callback disarms dispatch while the worker keeps draining.
func (a *Listener) SetCallback(callback Callback) {
	a.callbackMutex.Lock()
	a.callback = callback
	a.callbackMutex.Unlock()
}

func (a *Listener) run(done chan struct{}) {
	defer close(done)
	for a.listening.Load() {
		response, err := a.mgr.ReceiveFrom(a.key, transport.NoBlock)
		if err != nil {
			if errors.Is(err, transport.ErrReceiveTimeoutExpired) {
				time.Sleep(listenBackoff)
				continue
			}
			// non-timeout failures are transient from the worker's perspective
			logger.Warn().Str(logging.EVENT, EVENT_RECEIVE_FAILED).Str(logging.NAME, a.key).Err(err).Msg("")
			time.Sleep(listenBackoff)
			continue
		}
		a.dispatch(response)
	}
}

func (a *Listener) dispatch(response transport.Response) {
	a.callbackMutex.Lock()
	defer a.callbackMutex.Unlock()
	if a.callback != nil {
		a.callback(response)
	}
}
