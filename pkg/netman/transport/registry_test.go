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

package transport_test

import (
	"testing"
	"time"

	"github.com/oysterpack/netman.go/pkg/netman/transport"
)

type nopFactory struct{}

func (a nopFactory) NewSender(role transport.Role) transport.Sender     { return nopSender{} }
func (a nopFactory) NewReceiver(role transport.Role) transport.Receiver { return nopReceiver{} }

type nopSender struct{}

func (a nopSender) ConnectForSends(config transport.Config) error { return nil }
func (a nopSender) Send(data []byte, timeout time.Duration, topic string) error {
	return nil
}
func (a nopSender) Close() error { return nil }

type nopReceiver struct{}

func (a nopReceiver) ConnectForReceives(config transport.Config) error { return nil }
func (a nopReceiver) Receive(timeout time.Duration) (transport.Response, error) {
	return transport.Response{}, transport.ErrReceiveTimeoutExpired
}
func (a nopReceiver) Close() error { return nil }

func TestFactoryRegistry(t *testing.T) {
	registry := transport.NewFactoryRegistry()

	if registry.Factory("nop") != nil {
		t.Error("no factory should be registered yet")
	}
	if registry.Default() != nil {
		t.Error("empty registry should have no default")
	}

	registry.MustRegister("nop", nopFactory{})
	if registry.Factory("nop") == nil {
		t.Error("factory should be registered")
	}
	if registry.Default() == nil {
		t.Error("a sole registered factory should be the default")
	}

	registry.MustRegister("nop2", nopFactory{})
	if registry.Default() != nil {
		t.Error("with 2 factories and no explicit default there should be no default")
	}
	if err := registry.SetDefault("unknown"); err != transport.ErrFactoryNotRegistered {
		t.Errorf("setting an unknown default should fail : %v", err)
	}
	if err := registry.SetDefault("nop2"); err != nil {
		t.Fatal(err)
	}
	if registry.Default() == nil {
		t.Error("default factory should be set")
	}

	names := registry.Names()
	if len(names) != 2 || names[0] != "nop" || names[1] != "nop2" {
		t.Errorf("names should be sorted : %v", names)
	}

	if registry.Unregister("nop2") == nil {
		t.Error("unregister should return the factory")
	}
	if registry.Default() != nil && len(registry.Names()) > 1 {
		t.Error("unregistering the default should clear it")
	}
}

func TestFactoryRegistry_MustRegisterPanicsOnDup(t *testing.T) {
	registry := transport.NewFactoryRegistry()
	registry.MustRegister("nop", nopFactory{})
	defer func() {
		if p := recover(); p == nil {
			t.Error("duplicate registration should have panicked")
		}
	}()
	registry.MustRegister("nop", nopFactory{})
}

func TestConfigAddresses(t *testing.T) {
	config := transport.Config{ConnectionString: "inproc://a"}
	if addrs := config.Addresses(); len(addrs) != 1 || addrs[0] != "inproc://a" {
		t.Errorf("single connection string : %v", addrs)
	}

	config = transport.Config{ConnectionStrings: []string{"inproc://a", "inproc://b"}}
	if addrs := config.Addresses(); len(addrs) != 2 {
		t.Errorf("connection string list : %v", addrs)
	}

	config = transport.Config{}
	if addrs := config.Addresses(); len(addrs) != 0 {
		t.Errorf("empty config : %v", addrs)
	}
}

func TestRoleString(t *testing.T) {
	roles := map[transport.Role]string{
		transport.RoleSender:     "Sender",
		transport.RoleReceiver:   "Receiver",
		transport.RolePublisher:  "Publisher",
		transport.RoleSubscriber: "Subscriber",
	}
	for role, name := range roles {
		if role.String() != name {
			t.Errorf("%v != %v", role, name)
		}
	}
}
