// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package hub manages the lifecycle of a connection to a hub endpoint.

The central type is Manager, which wraps a transport created by a Provider
and takes care of everything around it: establishing the connection,
retrying failed attempts, collapsing concurrent connection requests into a
single shared attempt, reconnecting automatically when the connection drops,
and disposing cleanly.

# Connection lifecycle

A manager moves through five states: disconnected, connecting, connected,
reconnecting, and disconnecting. The current state is always readable via
State, and StateChanges returns a subscription that delivers the current
state followed by every transition.

Connect establishes the connection and blocks until it is up or the attempt
is cancelled. Failed attempts are retried on an interval, with each
individual attempt bounded by a start timeout, so a provider that stalls
does not wedge the manager. When several goroutines call Connect at once,
one of them drives the attempt and the rest await the same outcome.

Disconnect tears the connection down gracefully and switches off
auto-reconnect; a later Connect starts from scratch. DisconnectImmediate
skips the graceful stop for abrupt shutdown paths. Close disposes the
manager permanently.

# Invocations

InvokeRaw calls a hub method and returns the raw JSON result, establishing
the connection first when needed. Invoke is the typed convenience on top of
it: any failure yields the zero value instead of an error, which suits
callers that treat a missing answer and an empty answer the same way.

# Transports

The manager is transport-agnostic. A Provider builds a Transport for an
endpoint; the transport owns the wire protocol and reports unexpected
closures on its Closed channel, which is what drives reconnection. The
production transport lives in the transport subpackage.
*/
package hub
