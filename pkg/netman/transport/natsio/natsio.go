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

// Package natsio provides a NATS-backed transport plugin.
//
// Connection strings have the form "nats://host:port/subject". The subject is
// the channel's base subject; Publisher-role senders append ".topic" and
// Subscriber-role receivers subscribe to "subject.topic" per topic filter, so
// topic routing rides on NATS subject matching. Reconnect handling is left to
// the NATS client, which is configured to always reconnect.
package natsio

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"
	"github.com/oysterpack/netman.go/pkg/netman/transport"
)

// FactoryName is the name the plugin registers itself under
const FactoryName = "natsio"

// connect options applied to every connection
var (
	DefaultConnectTimeout   = nats.Timeout(5 * time.Second)
	DefaultReConnectTimeout = nats.ReconnectWait(2 * time.Second)
	AlwaysReconnect         = nats.MaxReconnects(-1)
)

// ErrNotConnected is returned when an endpoint is used before connect or after close
var ErrNotConnected = errors.New("NotConnected")

// capacity of the receive-side message buffer
const msgChanCapacity = 1024

func init() {
	transport.Factories.MustRegister(FactoryName, Factory())
}

// Factory returns the NATS transport factory
func Factory() transport.Factory {
	return factory{}
}

type factory struct{}

func (a factory) NewSender(role transport.Role) transport.Sender {
	return &sender{role: role}
}

func (a factory) NewReceiver(role transport.Role) transport.Receiver {
	r := &receiver{msgs: make(chan *nats.Msg, msgChanCapacity)}
	if role == transport.RoleSubscriber {
		return &subscriber{receiver: r, topicSubs: map[string][]*nats.Subscription{}}
	}
	r.bindBase = true
	return r
}

// ParseAddress splits a connection string of the form nats://host:port/subject
// into the server URL and the base subject.
func ParseAddress(address string) (serverURL string, subject string, err error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "nats" && u.Scheme != "tls" {
		return "", "", fmt.Errorf("unsupported connection string scheme : %v", u.Scheme)
	}
	subject = strings.Trim(u.Path, "/")
	if subject == "" {
		return "", "", fmt.Errorf("connection string is missing a subject : %v", address)
	}
	subject = strings.ReplaceAll(subject, "/", ".")
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), subject, nil
}

// SubjectTopic maps a delivered NATS subject back to the message topic.
// The base subject itself carries no topic.
func SubjectTopic(base string, subject string) string {
	if subject == base {
		return ""
	}
	if strings.HasPrefix(subject, base+".") {
		return subject[len(base)+1:]
	}
	return ""
}

func connect(serverURL string) (*nats.Conn, error) {
	return nats.Connect(serverURL,
		nats.Name("netman-"+nuid.Next()),
		DefaultConnectTimeout,
		DefaultReConnectTimeout,
		AlwaysReconnect,
	)
}

// sender implements transport.Sender for both the Sender and Publisher roles
type sender struct {
	role    transport.Role
	subject string
	nc      *nats.Conn
}

func (a *sender) ConnectForSends(config transport.Config) error {
	addresses := config.Addresses()
	if len(addresses) != 1 {
		return errors.New("natsio senders require exactly one connection string")
	}
	serverURL, subject, err := ParseAddress(addresses[0])
	if err != nil {
		return err
	}
	nc, err := connect(serverURL)
	if err != nil {
		return err
	}
	a.subject = subject
	a.nc = nc
	return nil
}

func (a *sender) Send(data []byte, timeout time.Duration, topic string) error {
	if a.nc == nil {
		return ErrNotConnected
	}
	subject := a.subject
	if a.role == transport.RolePublisher && topic != "" {
		subject = subject + "." + topic
	}
	if err := a.nc.Publish(subject, data); err != nil {
		return err
	}
	if timeout > 0 {
		return a.nc.FlushTimeout(timeout)
	}
	return nil
}

func (a *sender) Close() error {
	if a.nc != nil {
		a.nc.Close()
		a.nc = nil
	}
	return nil
}

// conn pairs a NATS connection with the base subject it was addressed with
type conn struct {
	nc      *nats.Conn
	subject string
}

// receiver implements transport.Receiver.
// All subscriptions feed one buffered channel, which Receive drains with the
// caller's deadline.
type receiver struct {
	msgs     chan *nats.Msg
	bindBase bool
	conns    []*conn
	subs     []*nats.Subscription
}

func (a *receiver) ConnectForReceives(config transport.Config) error {
	addresses := config.Addresses()
	if len(addresses) == 0 {
		return errors.New("natsio receivers require at least one connection string")
	}
	for _, address := range addresses {
		serverURL, subject, err := ParseAddress(address)
		if err != nil {
			a.Close()
			return err
		}
		nc, err := connect(serverURL)
		if err != nil {
			a.Close()
			return err
		}
		a.conns = append(a.conns, &conn{nc: nc, subject: subject})
	}
	if a.bindBase {
		if err := a.bind(); err != nil {
			a.Close()
			return err
		}
	}
	return nil
}

// bind subscribes each connection to its base subject (Receiver role)
func (a *receiver) bind() error {
	for _, c := range a.conns {
		sub, err := c.nc.ChanSubscribe(c.subject, a.msgs)
		if err != nil {
			return err
		}
		a.subs = append(a.subs, sub)
	}
	return nil
}

func (a *receiver) topic(subject string) string {
	for _, c := range a.conns {
		if subject == c.subject || strings.HasPrefix(subject, c.subject+".") {
			return SubjectTopic(c.subject, subject)
		}
	}
	return ""
}

func (a *receiver) Receive(timeout time.Duration) (transport.Response, error) {
	if len(a.conns) == 0 {
		return transport.Response{}, ErrNotConnected
	}
	if timeout == transport.NoBlock {
		select {
		case msg := <-a.msgs:
			return transport.Response{Data: msg.Data, Metadata: a.topic(msg.Subject)}, nil
		default:
			return transport.Response{}, transport.ErrReceiveTimeoutExpired
		}
	}
	if timeout < 0 {
		msg := <-a.msgs
		return transport.Response{Data: msg.Data, Metadata: a.topic(msg.Subject)}, nil
	}
	select {
	case msg := <-a.msgs:
		return transport.Response{Data: msg.Data, Metadata: a.topic(msg.Subject)}, nil
	case <-time.After(timeout):
		return transport.Response{}, transport.ErrReceiveTimeoutExpired
	}
}

func (a *receiver) Close() error {
	for _, sub := range a.subs {
		sub.Unsubscribe()
	}
	a.subs = nil
	for _, c := range a.conns {
		c.nc.Close()
	}
	a.conns = nil
	return nil
}

// subscriber implements transport.Subscriber on top of receiver.
// The base subjects are not bound; only subscribed topics are delivered.
type subscriber struct {
	*receiver
	topicSubs map[string][]*nats.Subscription
}

func (a *subscriber) Subscribe(topic string) error {
	if len(a.conns) == 0 {
		return ErrNotConnected
	}
	if _, exists := a.topicSubs[topic]; exists {
		return nil
	}
	var subs []*nats.Subscription
	for _, c := range a.conns {
		sub, err := c.nc.ChanSubscribe(c.subject+"."+topic, a.msgs)
		if err != nil {
			for _, s := range subs {
				s.Unsubscribe()
			}
			return err
		}
		subs = append(subs, sub)
	}
	a.topicSubs[topic] = subs
	return nil
}

func (a *subscriber) Unsubscribe(topic string) error {
	subs, exists := a.topicSubs[topic]
	if !exists {
		return nil
	}
	delete(a.topicSubs, topic)
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			return err
		}
	}
	return nil
}

func (a *subscriber) Close() error {
	for _, subs := range a.topicSubs {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}
	a.topicSubs = map[string][]*nats.Subscription{}
	return a.receiver.Close()
}
