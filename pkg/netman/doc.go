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

// Package netman is the process-wide messaging facade.
//
// Applications refer to channels by logical name and topic rather than by
// wire address. The NetworkManager owns the channel catalog, lazily creates
// transport endpoints on first use, serializes concurrent sends per channel,
// and drives callback-style receives through background listeners.
//
// A channel with topics is a pub/sub channel (Publisher/Subscriber transport
// roles); a channel without topics is point-to-point (Sender/Receiver roles).
// Channel names and topic names share one key space and must be disjoint.
//
// The facade goes through a simple lifecycle: Configure moves it from empty
// to configured, Reset tears everything down so that Configure may be called
// again. All other operations require a configured facade.
package netman
