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

package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hubbridge/hubbridge/internal/hub"
)

// BridgeMetrics records connection lifecycle and invocation telemetry.
// It satisfies the bridge's invocation observer so every tool-driven hub
// call produces a counter increment, a latency sample, and a span.
type BridgeMetrics struct {
	tracer trace.Tracer

	connectsTotal    metric.Int64Counter
	reconnectsTotal  metric.Int64Counter
	invocationsTotal metric.Int64Counter
	invokeDuration   metric.Float64Histogram
}

// NewBridgeMetrics creates the bridge instruments on the given meter
// provider.
func NewBridgeMetrics(meterProvider metric.MeterProvider, tracer trace.Tracer) (*BridgeMetrics, error) {
	meter := meterProvider.Meter("hubbridge")

	m := &BridgeMetrics{tracer: tracer}

	var err error
	m.connectsTotal, err = meter.Int64Counter(
		"hubbridge_connects_total",
		metric.WithDescription("Total number of successful hub connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	m.reconnectsTotal, err = meter.Int64Counter(
		"hubbridge_reconnects_total",
		metric.WithDescription("Total number of automatic reconnection attempts"),
		metric.WithUnit("{reconnect}"),
	)
	if err != nil {
		return nil, err
	}

	m.invocationsTotal, err = meter.Int64Counter(
		"hubbridge_invocations_total",
		metric.WithDescription("Total number of hub method invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, err
	}

	m.invokeDuration, err = meter.Float64Histogram(
		"hubbridge_invocation_duration_seconds",
		metric.WithDescription("Hub invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveInvocation records the outcome of one hub invocation and emits a
// span covering it. The span is reconstructed from the measured duration
// since the observation happens after the call completes.
func (m *BridgeMetrics) ObserveInvocation(ctx context.Context, method string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	)
	m.invocationsTotal.Add(ctx, 1, attrs)
	m.invokeDuration.Record(ctx, duration.Seconds(), attrs)

	start := time.Now().Add(-duration)
	_, span := m.tracer.Start(ctx, "hub.invoke",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.String("rpc.method", method),
		),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// WatchStates consumes connection state transitions and counts connects
// and reconnect attempts. It returns when the channel closes, which
// happens when the manager shuts down.
func (m *BridgeMetrics) WatchStates(ctx context.Context, states <-chan hub.State) {
	var reconnecting bool
	for state := range states {
		switch state {
		case hub.StateReconnecting:
			reconnecting = true
			m.reconnectsTotal.Add(ctx, 1)
		case hub.StateConnected:
			m.connectsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.Bool("reconnect", reconnecting),
			))
			reconnecting = false
		}
	}
}
