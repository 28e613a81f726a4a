/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package client

import (
	"fmt"

	"github.com/tcnet-go/tcnet/protocol"
)

// requestContext is embedded in every request-scoped error so callers can
// see which peer/dataType/layer a failure applied to. TimeoutError and
// ProtocolError carry all three; the PeerGoneError produced by an OptOut or
// an idle sweep carries only the peer, and the ShutdownError produced by
// Disconnect carries none of them (all fields are zero).
type requestContext struct {
	PeerNodeID uint16
	DataType   protocol.DataSubType
	Layer      uint8
}

func (c requestContext) String() string {
	return fmt.Sprintf("peer=%d dataType=%s layer=%d", c.PeerNodeID, c.DataType, c.Layer)
}

// ProtocolError reports that the peer answered a request with an Error
// notification instead of data.
type ProtocolError struct {
	requestContext
	Code protocol.ErrorCode
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("tcnet: %s: peer returned %s", e.requestContext, e.Code)
}

// TimeoutError reports that a pending request exceeded its deadline.
type TimeoutError struct {
	requestContext
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tcnet: %s: timed out", e.requestContext)
}

// PeerGoneError reports that the targeted peer was evicted before a reply
// arrived.
type PeerGoneError struct {
	requestContext
}

func (e *PeerGoneError) Error() string {
	return fmt.Sprintf("tcnet: %s: peer gone", e.requestContext)
}

// NoPeerError reports that the façade could not pick a peer for a request.
type NoPeerError struct {
	DataType protocol.DataSubType
	Layer    uint8
}

func (e *NoPeerError) Error() string {
	return fmt.Sprintf("tcnet: dataType=%s layer=%d: no peer available", e.DataType, e.Layer)
}

// ShutdownError reports that a pending request was aborted by Disconnect.
type ShutdownError struct {
	requestContext
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("tcnet: %s: client shut down", e.requestContext)
}

// IoError wraps a socket bind/send/receive failure. A bind failure is
// returned by Connect and a send failure by the call that sent. A receive
// failure ends that receive loop and, through the shared errgroup context,
// every other background loop of the client; the client keeps no failed
// state, so later API calls are not failed with this error.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("tcnet: io: %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}
