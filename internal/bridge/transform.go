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

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// transformTimeout bounds a single jq transform evaluation.
	transformTimeout = 1 * time.Second

	// transformMaxInput caps the hub result size fed into a transform (10MB).
	transformMaxInput = 10 * 1024 * 1024
)

// Transformer applies configured jq expressions to hub results before
// they are returned to the assistant.
type Transformer struct {
	timeout      time.Duration
	maxInputSize int64
}

// NewTransformer creates a transformer with the default timeout and input
// size limit.
func NewTransformer() *Transformer {
	return &Transformer{
		timeout:      transformTimeout,
		maxInputSize: transformMaxInput,
	}
}

// Apply runs the jq expression against the raw JSON result and returns the
// transformed value re-encoded as JSON. An empty expression passes the
// result through untouched.
func (t *Transformer) Apply(ctx context.Context, expression string, raw json.RawMessage) (json.RawMessage, error) {
	if expression == "" {
		return raw, nil
	}

	if int64(len(raw)) > t.maxInputSize {
		return nil, fmt.Errorf("result size (%d bytes) exceeds transform limit (%d bytes)",
			len(raw), t.maxInputSize)
	}

	var data interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("result is not valid JSON: %w", err)
		}
	}

	result, err := t.execute(ctx, expression, data)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transformed result: %w", err)
	}
	return out, nil
}

// Validate checks that a jq expression parses and compiles. Used by config
// validation to catch syntax errors before a tool is ever invoked.
func Validate(expression string) error {
	if expression == "" {
		return nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}
	if _, err := gojq.Compile(query); err != nil {
		return fmt.Errorf("jq compilation failed: %w", err)
	}
	return nil
}

// execute evaluates a jq expression with timeout protection. A single
// result is returned directly; multiple results become an array.
func (t *Transformer) execute(ctx context.Context, expression string, data interface{}) (interface{}, error) {
	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	resultChan := make(chan interface{}, 1)
	errorChan := make(chan error, 1)

	go func() {
		iter := code.RunWithContext(execCtx, data)

		var results []interface{}
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				errorChan <- err
				return
			}
			results = append(results, v)
		}

		switch len(results) {
		case 0:
			resultChan <- nil
		case 1:
			resultChan <- results[0]
		default:
			resultChan <- results
		}
	}()

	select {
	case result := <-resultChan:
		return result, nil
	case err := <-errorChan:
		return nil, err
	case <-execCtx.Done():
		return nil, fmt.Errorf("transform timeout after %v", t.timeout)
	}
}
