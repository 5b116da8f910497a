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

package netman_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oysterpack/netman.go/pkg/netman"
	"github.com/oysterpack/netman.go/pkg/netman/transport"
	"github.com/oysterpack/netman.go/pkg/netman/transport/inproc"
)

func newManager(t *testing.T, connections netman.Connections) *netman.NetworkManager {
	t.Helper()
	mgr := netman.New(inproc.Factory())
	if err := mgr.Configure(connections); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mgr.Reset)
	return mgr
}

// pubsub catalog: 2 channels fan into topic "baz"
func pubsubConnections(t *testing.T) netman.Connections {
	prefix := "inproc://" + t.Name()
	return netman.Connections{
		{Name: "foo", Address: prefix + "-foo"},
		{Name: "bar", Address: prefix + "-bar", Topics: []string{"bax", "bay", "baz"}},
		{Name: "rab", Address: prefix + "-rab", Topics: []string{"bav", "baw", "baz"}},
	}
}

// poll until the condition holds or the deadline expires
func eventually(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return condition()
}

func TestCatalogBasics(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	if !mgr.IsConnection("foo") {
		t.Error("foo should be a connection")
	}
	if mgr.IsPubSubConnection("foo") {
		t.Error("foo has no topics")
	}
	if !mgr.IsPubSubConnection("bar") {
		t.Error("bar should be a pub/sub connection")
	}
	if !mgr.IsTopic("baz") {
		t.Error("baz should be a topic")
	}
	if mgr.IsConnection("baz") || mgr.IsTopic("foo") {
		t.Error("connection and topic name spaces must be disjoint")
	}
	if mgr.IsConnection("unknown") || mgr.IsTopic("unknown") {
		t.Error("unknown keys are neither connections nor topics")
	}

	address, err := mgr.ConnectionString("foo")
	if err != nil {
		t.Fatal(err)
	}
	if address != "inproc://"+t.Name()+"-foo" {
		t.Errorf("connection string : %v", address)
	}

	addresses, err := mgr.ConnectionStrings("baz")
	if err != nil {
		t.Fatal(err)
	}
	expected := map[string]bool{
		"inproc://" + t.Name() + "-bar": true,
		"inproc://" + t.Name() + "-rab": true,
	}
	if len(addresses) != 2 || !expected[addresses[0]] || !expected[addresses[1]] {
		t.Errorf("topic connection strings : %v", addresses)
	}
}

func TestNameCollisions(t *testing.T) {
	scenarios := []struct {
		name        string
		connections netman.Connections
		collision   string
	}{
		{
			name: "duplicate connection names",
			connections: netman.Connections{
				{Name: "foo", Address: "inproc://a"},
				{Name: "foo", Address: "inproc://b"},
			},
			collision: "foo",
		},
		{
			name: "topic collides with an earlier connection name",
			connections: netman.Connections{
				{Name: "foo", Address: "inproc://a"},
				{Name: "bar", Address: "inproc://b", Topics: []string{"foo"}},
			},
			collision: "foo",
		},
		{
			name: "connection name collides with an earlier topic",
			connections: netman.Connections{
				{Name: "bar", Address: "inproc://b", Topics: []string{"foo"}},
				{Name: "foo", Address: "inproc://a"},
			},
			collision: "foo",
		},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) {
			mgr := netman.New(inproc.Factory())
			err := mgr.Configure(scenario.connections)
			collision := &netman.NameCollisionError{}
			if !errors.As(err, &collision) {
				t.Fatalf("expected NameCollisionError : %v", err)
			}
			if collision.Name != scenario.collision {
				t.Errorf("collision should identify the offending name : %v", collision.Name)
			}

			// the facade must be left empty
			for _, connection := range scenario.connections {
				if mgr.IsConnection(connection.Name) {
					t.Errorf("partial configuration should have been unwound : %v", connection.Name)
				}
			}
			if err := mgr.Configure(netman.Connections{{Name: "ok", Address: "inproc://ok"}}); err != nil {
				t.Errorf("facade should be configurable after a collision : %v", err)
			}
			mgr.Reset()
		})
	}
}

func TestConfigureTwice(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	err := mgr.Configure(netman.Connections{{Name: "oof", Address: "inproc://oof"}})
	alreadyConfigured := &netman.AlreadyConfiguredError{}
	if !errors.As(err, &alreadyConfigured) {
		t.Fatalf("expected AlreadyConfiguredError : %v", err)
	}
	// state must be unchanged
	if mgr.IsConnection("oof") {
		t.Error("rejected configuration should not alter state")
	}
	if !mgr.IsConnection("foo") {
		t.Error("original configuration should remain")
	}
}

func TestReset(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	if err := mgr.StartListening("foo"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.SendTo("foo", []byte("hello"), time.Second, ""); err != nil {
		t.Fatal(err)
	}
	if !mgr.IsConnectionOpen("foo", netman.Send) {
		t.Error("sender endpoint should be open")
	}

	mgr.Reset()

	if mgr.IsListening("foo") {
		t.Error("listeners should be stopped after reset")
	}
	if mgr.IsConnectionOpen("foo", netman.Send) || mgr.IsConnectionOpen("foo", netman.Recv) {
		t.Error("endpoints should be dropped after reset")
	}
	if mgr.IsConnection("foo") {
		t.Error("catalog should be empty after reset")
	}
	if stats := mgr.SampleStats(); len(stats) != 0 {
		t.Errorf("counters should be cleared after reset : %v", stats)
	}

	// configure again after reset
	if err := mgr.Configure(pubsubConnections(t)); err != nil {
		t.Fatal(err)
	}
}

func TestUnknownNames(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	notFound := &netman.ConnectionNotFoundError{}

	if err := mgr.SendTo("unknown", []byte("x"), time.Second, ""); !errors.As(err, &notFound) {
		t.Errorf("SendTo : %v", err)
	}
	if err := mgr.StartListening("unknown"); !errors.As(err, &notFound) {
		t.Errorf("StartListening : %v", err)
	}
	if _, err := mgr.ConnectionString("unknown"); !errors.As(err, &notFound) {
		t.Errorf("ConnectionString : %v", err)
	}
	if _, err := mgr.ReceiveFrom("unknown", time.Second); !errors.As(err, &notFound) {
		t.Errorf("ReceiveFrom : %v", err)
	}

	topicNotFound := &netman.TopicNotFoundError{}
	if err := mgr.Subscribe("unknown"); !errors.As(err, &topicNotFound) {
		t.Errorf("Subscribe : %v", err)
	}
	if _, err := mgr.ConnectionStrings("unknown"); !errors.As(err, &topicNotFound) {
		t.Errorf("ConnectionStrings : %v", err)
	}
}

func TestPointToPointCallback(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	if err := mgr.StartListening("foo"); err != nil {
		t.Fatal(err)
	}
	if !mgr.IsListening("foo") {
		t.Error("listener should be active")
	}

	received := struct {
		sync.Mutex
		data []byte
	}{}
	err := mgr.RegisterCallback("foo", func(response transport.Response) {
		received.Lock()
		received.data = append([]byte{}, response.Data...)
		received.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := mgr.SendTo("foo", []byte("hello"), time.Second, ""); err != nil {
		t.Fatal(err)
	}

	delivered := eventually(t, 5*time.Second, func() bool {
		received.Lock()
		defer received.Unlock()
		return string(received.data) == "hello"
	})
	if !delivered {
		t.Error("callback should have observed the sent bytes")
	}

	if err := mgr.StopListening("foo"); err != nil {
		t.Fatal(err)
	}
	if mgr.IsListening("foo") {
		t.Error("listener should be stopped")
	}
}

func TestPubSubTopicFanIn(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	if err := mgr.Subscribe("baz"); err != nil {
		t.Fatal(err)
	}

	received := struct {
		sync.Mutex
		messages []string
	}{}
	err := mgr.RegisterCallback("baz", func(response transport.Response) {
		received.Lock()
		received.messages = append(received.messages, string(response.Data))
		received.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	// wait for the topic receiver to come up before publishing
	if !eventually(t, 5*time.Second, func() bool { return mgr.IsConnectionOpen("baz", netman.Recv) }) {
		t.Fatal("topic receiver should have been created by the listener")
	}

	if err := mgr.SendTo("bar", []byte("m1"), time.Second, "baz"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.SendTo("rab", []byte("m2"), time.Second, "baz"); err != nil {
		t.Fatal(err)
	}
	// distinct topic - must not be delivered to the baz subscriber
	if err := mgr.SendTo("bar", []byte("m3"), time.Second, "bax"); err != nil {
		t.Fatal(err)
	}

	fannedIn := eventually(t, 5*time.Second, func() bool {
		received.Lock()
		defer received.Unlock()
		return len(received.messages) >= 2
	})
	if !fannedIn {
		t.Fatal("messages from both publishers should fan in")
	}

	time.Sleep(50 * time.Millisecond) // would deliver m3 if filtering were broken
	received.Lock()
	defer received.Unlock()
	seen := map[string]bool{}
	for _, message := range received.messages {
		seen[message] = true
	}
	if !seen["m1"] || !seen["m2"] {
		t.Errorf("expected m1 and m2 : %v", received.messages)
	}
	if seen["m3"] {
		t.Errorf("m3 was published on a different topic : %v", received.messages)
	}

	if err := mgr.Unsubscribe("baz"); err != nil {
		t.Fatal(err)
	}
	if mgr.IsListening("baz") {
		t.Error("topic listener should be stopped")
	}
}

func TestSendToUnknownTopicWarnsAndSends(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	if err := mgr.Subscribe("baz"); err != nil {
		t.Fatal(err)
	}
	if !eventually(t, 5*time.Second, func() bool { return mgr.IsConnectionOpen("baz", netman.Recv) }) {
		t.Fatal("topic receiver should have been created")
	}

	// "nope" is not configured for bar: warn, but still hand to the transport
	if err := mgr.SendTo("bar", []byte("m"), time.Second, "nope"); err != nil {
		t.Errorf("unknown topic should warn, not fail : %v", err)
	}
}

func TestThreadSafeSends(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	received := struct {
		sync.Mutex
		payloads map[string]bool
	}{payloads: map[string]bool{}}

	if err := mgr.StartListening("foo"); err != nil {
		t.Fatal(err)
	}
	err := mgr.RegisterCallback("foo", func(response transport.Response) {
		received.Lock()
		defer received.Unlock()
		if len(response.Data) != 5 {
			t.Errorf("corrupt payload : %q", response.Data)
			return
		}
		received.payloads[string(response.Data)] = true
	})
	if err != nil {
		t.Fatal(err)
	}

	const senders = 1000
	wg := sync.WaitGroup{}
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := mgr.SendTo("foo", []byte(fmt.Sprintf("%05d", i)), 5*time.Second, ""); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	complete := eventually(t, 10*time.Second, func() bool {
		received.Lock()
		defer received.Unlock()
		return len(received.payloads) == senders
	})
	if !complete {
		received.Lock()
		defer received.Unlock()
		t.Errorf("all payloads should arrive intact : %v / %v", len(received.payloads), senders)
	}
}

func TestListenerRace(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	const contenders = 1000
	var successes, alreadyRegistered int64
	counts := sync.Mutex{}
	wg := sync.WaitGroup{}
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.StartListening("foo")
			counts.Lock()
			defer counts.Unlock()
			if err == nil {
				successes++
				return
			}
			already := &netman.ListenerAlreadyRegisteredError{}
			if errors.As(err, &already) {
				alreadyRegistered++
			} else {
				t.Errorf("unexpected error : %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("exactly one contender should win : %v", successes)
	}
	if alreadyRegistered != contenders-1 {
		t.Errorf("the rest should fail with ListenerAlreadyRegistered : %v", alreadyRegistered)
	}
}

func TestReceiveFromTimeout(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	if _, err := mgr.ReceiveFrom("foo", transport.NoBlock); !errors.Is(err, transport.ErrReceiveTimeoutExpired) {
		t.Errorf("receive on an idle channel should time out : %v", err)
	}
	if _, err := mgr.ReceiveFrom("foo", 10*time.Millisecond); !errors.Is(err, transport.ErrReceiveTimeoutExpired) {
		t.Errorf("timed receive on an idle channel should time out : %v", err)
	}
}

func TestRegisterCallbackRequiresListener(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	notRegistered := &netman.ListenerNotRegisteredError{}
	if err := mgr.RegisterCallback("foo", func(transport.Response) {}); !errors.As(err, &notRegistered) {
		t.Errorf("RegisterCallback without a listener : %v", err)
	}

	notFound := &netman.ConnectionNotFoundError{}
	if err := mgr.RegisterCallback("unknown", func(transport.Response) {}); !errors.As(err, &notFound) {
		t.Errorf("RegisterCallback on an unknown key : %v", err)
	}

	if err := mgr.StopListening("foo"); !errors.As(err, &notRegistered) {
		t.Errorf("StopListening without a listener : %v", err)
	}
	if err := mgr.Unsubscribe("baz"); !errors.As(err, &notRegistered) {
		t.Errorf("Unsubscribe without a listener : %v", err)
	}
}

func TestDuplicateListener(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	if err := mgr.StartListening("foo"); err != nil {
		t.Fatal(err)
	}
	already := &netman.ListenerAlreadyRegisteredError{}
	if err := mgr.StartListening("foo"); !errors.As(err, &already) {
		t.Errorf("second StartListening should fail : %v", err)
	}
	if err := mgr.Subscribe("baz"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Subscribe("baz"); !errors.As(err, &already) {
		t.Errorf("second Subscribe should fail : %v", err)
	}
}

func TestClearCallback(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	if err := mgr.StartListening("foo"); err != nil {
		t.Fatal(err)
	}

	delivered := struct {
		sync.Mutex
		count int
	}{}
	err := mgr.RegisterCallback("foo", func(transport.Response) {
		delivered.Lock()
		delivered.count++
		delivered.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := mgr.SendTo("foo", []byte("one"), time.Second, ""); err != nil {
		t.Fatal(err)
	}
	if !eventually(t, 5*time.Second, func() bool {
		delivered.Lock()
		defer delivered.Unlock()
		return delivered.count == 1
	}) {
		t.Fatal("first message should be dispatched")
	}

	// disarm dispatch - the worker keeps draining
	if err := mgr.ClearCallback("foo"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.SendTo("foo", []byte("two"), time.Second, ""); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	delivered.Lock()
	count := delivered.count
	delivered.Unlock()
	if count != 1 {
		t.Errorf("cleared callback should not be invoked : %v", count)
	}
	if !mgr.IsListening("foo") {
		t.Error("clearing the callback should not stop the listener")
	}
}

func TestStartPublisher(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	if err := mgr.StartPublisher("bar"); err != nil {
		t.Fatal(err)
	}
	if !mgr.IsConnectionOpen("bar", netman.Send) {
		t.Error("publisher endpoint should be open")
	}

	operationFailed := &netman.OperationFailedError{}
	if err := mgr.StartPublisher("foo"); !errors.As(err, &operationFailed) {
		t.Errorf("eager publish on a point-to-point channel should fail : %v", err)
	}
	notFound := &netman.ConnectionNotFoundError{}
	if err := mgr.StartPublisher("unknown"); !errors.As(err, &notFound) {
		t.Errorf("eager publish on an unknown channel should fail : %v", err)
	}
}

func TestSampleStats(t *testing.T) {
	mgr := newManager(t, pubsubConnections(t))

	for i := 0; i < 3; i++ {
		if err := mgr.SendTo("foo", []byte("hello"), time.Second, ""); err != nil {
			t.Fatal(err)
		}
	}
	response, err := mgr.ReceiveFrom("foo", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if string(response.Data) != "hello" {
		t.Fatalf("payload : %s", response.Data)
	}

	stats := mgr.SampleStats()
	info := stats["foo"]
	if info.SentMessages != 3 || info.SentBytes != 15 {
		t.Errorf("sent counters : %+v", info)
	}
	if info.ReceivedMessages != 1 || info.ReceivedBytes != 5 {
		t.Errorf("received counters : %+v", info)
	}

	// read-and-reset semantics
	stats = mgr.SampleStats()
	info = stats["foo"]
	if info.SentMessages != 0 || info.SentBytes != 0 || info.ReceivedMessages != 0 {
		t.Errorf("sampling should zero the counters : %+v", info)
	}
}

func TestGlobalInstance(t *testing.T) {
	mgr := netman.Get()
	if mgr == nil {
		t.Fatal("global instance should be created on first access")
	}
	if mgr != netman.Get() {
		t.Error("Get should always return the same instance")
	}
}
