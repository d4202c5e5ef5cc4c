// Copyright 2026 Google LLC. All Rights Reserved.
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

package quota

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrServiceUnavailable matches (via errors.Is) every *UnavailableError.
	ErrServiceUnavailable = errors.New("quota service unavailable")

	// ErrConfiguration matches (via errors.Is) every *ConfigError.
	ErrConfiguration = errors.New("quota configuration error")

	// ErrTooMuchContention is wrapped in the *UnavailableError returned when the limiter gives up
	// after losing too many compare-and-replace races.
	ErrTooMuchContention = errors.New("too many concurrent bucket updates")
)

// QuotaExceededError is returned when a principal has no slot left. Waiting (at most
// HoursUntilReset hours) is the only remedy.
type QuotaExceededError struct {
	Key             Key
	HoursUntilReset int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %v (resets within %d hour(s))", e.Key, e.HoursUntilReset)
}

// GRPCStatus maps the error to codes.ResourceExhausted.
func (e *QuotaExceededError) GRPCStatus() *status.Status {
	return status.New(codes.ResourceExhausted, e.Error())
}

// UnavailableError reports that the bucket store or config source could not serve a request.
type UnavailableError struct {
	// Op is the operation that failed, e.g. "etcd get".
	Op  string
	Err error
}

// Unavailable wraps err in an *UnavailableError, unless it already is one.
func Unavailable(op string, err error) error {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrServiceUnavailable, e.Err)
}

// Unwrap allows errors.Is to match both ErrServiceUnavailable and the cause.
func (e *UnavailableError) Unwrap() []error {
	return []error{ErrServiceUnavailable, e.Err}
}

// GRPCStatus maps the error to codes.Unavailable, or to the context's code if the cause is a
// cancelled or expired context.
func (e *UnavailableError) GRPCStatus() *status.Status {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return status.FromContextError(e.Err)
	}
	return status.New(codes.Unavailable, e.Error())
}

// ConfigError reports a malformed or missing quota parameter.
type ConfigError struct {
	Key Key
	// Field names the offending parameter, e.g. "capacity".
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s of %v", ErrConfiguration, e.Field, e.Key)
	}
	return fmt.Sprintf("%v: %s of %v: %v", ErrConfiguration, e.Field, e.Key, e.Err)
}

// Unwrap allows errors.Is to match both ErrConfiguration and the cause.
func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// GRPCStatus maps the error to codes.FailedPrecondition.
func (e *ConfigError) GRPCStatus() *status.Status {
	return status.New(codes.FailedPrecondition, e.Error())
}

// hoursUntilReset rounds a refresh interval up to whole hours.
func hoursUntilReset(intervalMinutes int) int {
	return (intervalMinutes + 59) / 60
}
