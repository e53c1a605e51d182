// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detector

import (
	"errors"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("AI_DETECTION_VALIDATION_ERROR")

	// ErrDetection matches every *DetectionError.
	ErrDetection = errors.New("AI_DETECTION_ERROR")

	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError reports input rejected before any computation.
type ValidationError struct {
	// Reason describes what was wrong with the input.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Reason
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DetectionError reports an unexpected failure during detection.
type DetectionError struct {
	// Op is the pipeline stage that failed.
	Op string

	// Cause is the original error.
	Cause error
}

// Error implements the error interface.
func (e *DetectionError) Error() string {
	msg := ErrDetection.Error() + ": " + e.Op
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is reports whether target is ErrDetection.
func (e *DetectionError) Is(target error) bool {
	return target == ErrDetection
}

// Unwrap returns the underlying error.
func (e *DetectionError) Unwrap() error {
	return e.Cause
}
