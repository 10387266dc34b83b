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

// Package transport implements the hub wire protocol over WebSocket.
//
// The protocol is JSON frames separated by a 0x1e record separator. A
// connection opens with a handshake naming the protocol and version, then
// exchanges invocation, completion, and ping frames.
package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// recordSeparator terminates every frame on the wire.
const recordSeparator = 0x1e

// Frame types.
const (
	// typeInvocation carries a method call.
	typeInvocation = 1
	// typeCompletion carries the result or error for an invocation.
	typeCompletion = 3
	// typePing is a bidirectional keepalive.
	typePing = 6
)

// handshakeRequest opens a connection.
type handshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// handshakeResponse acknowledges a handshake. An empty object means the
// server accepted; a populated error means it did not.
type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// hubMessage is the envelope shared by all post-handshake frames. Fields
// beyond Type are populated per frame type.
type hubMessage struct {
	Type         int               `json:"type"`
	InvocationID string            `json:"invocationId,omitempty"`
	Target       string            `json:"target,omitempty"`
	Arguments    []json.RawMessage `json:"arguments,omitempty"`
	Result       json.RawMessage   `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// encodeFrame marshals v and appends the record separator.
func encodeFrame(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return append(data, recordSeparator), nil
}

// splitFrames breaks a WebSocket message into its individual frames. A
// message usually carries one frame, but servers may batch several.
func splitFrames(data []byte) [][]byte {
	var frames [][]byte
	for _, part := range bytes.Split(data, []byte{recordSeparator}) {
		if len(part) == 0 {
			continue
		}
		frames = append(frames, part)
	}
	return frames
}

// invocationArguments packages an invocation payload as the wire-level
// argument list. A nil payload becomes an empty list; anything else is a
// single argument.
func invocationArguments(payload any) ([]json.RawMessage, error) {
	if payload == nil {
		return []json.RawMessage{}, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return []json.RawMessage{raw}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode invocation payload: %w", err)
	}
	return []json.RawMessage{data}, nil
}
