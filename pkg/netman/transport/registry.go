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

package transport

import (
	"errors"
	"sort"
	"sync"
)

// Factories is the global FactoryRegistry.
// Transport plugin packages register themselves here, typically from init().
var Factories = NewFactoryRegistry()

// registry errors
var (
	ErrFactoryAlreadyRegistered = errors.New("FactoryAlreadyRegistered")
	ErrFactoryNotRegistered     = errors.New("FactoryNotRegistered")
)

// FactoryRegistry tracks transport plugin factories by name
type FactoryRegistry interface {
	// MustRegister will panic if a Factory is already registered under the same name
	MustRegister(name string, factory Factory)

	// Unregister will remove the Factory registered under the specified name and return it
	Unregister(name string) Factory

	// Factory will return the Factory registered under the specified name
	Factory(name string) Factory

	// Names returns the names of all registered factories, sorted
	Names() []string

	// SetDefault marks the named factory as the process default.
	// An error is returned if no factory is registered under the name.
	SetDefault(name string) error

	// Default returns the process default factory.
	// If no default was set and exactly one factory is registered, that factory is the default.
	// nil is returned otherwise.
	Default() Factory
}

// NewFactoryRegistry creates a new empty FactoryRegistry
func NewFactoryRegistry() FactoryRegistry {
	return &factoryRegistry{factories: make(map[string]Factory)}
}

type factoryRegistry struct {
	sync.RWMutex
	factories   map[string]Factory
	defaultName string
}

func (a *factoryRegistry) MustRegister(name string, factory Factory) {
	a.Lock()
	defer a.Unlock()
	if a.factories[name] != nil {
		logger.Panic().Err(ErrFactoryAlreadyRegistered).Str("name", name).Msg("")
	}
	a.factories[name] = factory
}

func (a *factoryRegistry) Unregister(name string) Factory {
	a.Lock()
	defer a.Unlock()
	factory := a.factories[name]
	delete(a.factories, name)
	if a.defaultName == name {
		a.defaultName = ""
	}
	return factory
}

func (a *factoryRegistry) Factory(name string) Factory {
	a.RLock()
	defer a.RUnlock()
	return a.factories[name]
}

func (a *factoryRegistry) Names() []string {
	a.RLock()
	defer a.RUnlock()
	names := make([]string, 0, len(a.factories))
	for name := range a.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *factoryRegistry) SetDefault(name string) error {
	a.Lock()
	defer a.Unlock()
	if a.factories[name] == nil {
		return ErrFactoryNotRegistered
	}
	a.defaultName = name
	return nil
}

func (a *factoryRegistry) Default() Factory {
	a.RLock()
	defer a.RUnlock()
	if a.defaultName != "" {
		return a.factories[a.defaultName]
	}
	if len(a.factories) == 1 {
		for _, factory := range a.factories {
			return factory
		}
	}
	return nil
}
