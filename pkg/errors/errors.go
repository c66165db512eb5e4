/*
 * Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2024-2025 The StrataSTOR Authors and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

func (e *PgbError) Error() string {
	// Metadata is meant for structured consumption (API responses, logging);
	// including all of it would make messages too verbose for standard logs.
	msg := fmt.Sprintf("[%s-%d] %s", e.Domain, e.Code, e.Message)
	if e.Details != "" {
		msg += " - " + e.Details
	}
	if e.Metadata != nil {
		if stderr, ok := e.Metadata["stderr"]; ok && stderr != "" {
			msg += "\nCommand output: " + stderr
		}
	}
	return msg
}

func (e *PgbError) WithMetadata(key, value string) *PgbError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// New creates a new PgbError
func New(code ErrorCode, details string) *PgbError {
	def, ok := errorDefinitions[code]
	if !ok {
		return &PgbError{
			Code:       code,
			Domain:     "UNKNOWN",
			Kind:       KindDriver,
			Message:    "Unknown error",
			Details:    details,
			HTTPStatus: http.StatusInternalServerError,
		}
	}

	return &PgbError{
		Code:       code,
		Domain:     def.domain,
		Kind:       def.kind,
		Message:    def.message,
		Details:    details,
		HTTPStatus: def.httpStatus,
	}
}

// Is implements the interface for errors.Is
func (e *PgbError) Is(target error) bool {
	if t, ok := target.(*PgbError); ok {
		return e.Code == t.Code && e.Domain == t.Domain
	}
	return false
}

// Wrap wraps an existing error with a new code, preserving metadata and
// recording the wrapped error's identity.
func Wrap(err error, code ErrorCode) *PgbError {
	if pe, ok := err.(*PgbError); ok {
		newErr := New(code, pe.Details)
		for k, v := range pe.Metadata {
			newErr.WithMetadata(k, v)
		}
		newErr.WithMetadata("wrapped_code", fmt.Sprintf("%d", pe.Code))
		newErr.WithMetadata("wrapped_domain", string(pe.Domain))
		newErr.WithMetadata("wrapped_message", pe.Message)
		return newErr
	}
	return New(code, err.Error())
}

// IsPgbError checks if an error is a PgbError
func IsPgbError(err error) bool {
	_, ok := err.(*PgbError)
	return ok
}

// NewCommandError helper for command execution errors
func NewCommandError(cmd string, exitCode int, stderr string) *PgbError {
	return New(CommandExecution, "Command execution failed").
		WithMetadata("command", cmd).
		WithMetadata("exit_code", fmt.Sprintf("%d", exitCode)).
		WithMetadata("stderr", stderr)
}

// GetCode extracts the error code from an error if it's a PgbError
// If not a PgbError, returns 0 and false
func GetCode(err error) (ErrorCode, bool) {
	if err == nil {
		return 0, false
	}

	var pgbErr *PgbError
	if errors.As(err, &pgbErr) {
		return pgbErr.Code, true
	}

	return 0, false
}

// GetKind returns the taxonomy kind of an error. Non-PgbError values
// classify as driver failures.
func GetKind(err error) Kind {
	if err == nil {
		return ""
	}

	var pgbErr *PgbError
	if errors.As(err, &pgbErr) {
		return pgbErr.Kind
	}
	return KindDriver
}

// IsKind reports whether err classifies as the given kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// Stderr returns the captured stderr of a command error, if any.
func Stderr(err error) string {
	var pgbErr *PgbError
	if errors.As(err, &pgbErr) && pgbErr.Metadata != nil {
		return pgbErr.Metadata["stderr"]
	}
	return ""
}
