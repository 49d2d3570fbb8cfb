// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package regalloc

import (
	"errors"
	"net/http"

	"github.com/AleutianAI/regalloc/services/regalloc/binding"
	"github.com/AleutianAI/regalloc/services/regalloc/config"
	"github.com/AleutianAI/regalloc/services/regalloc/driver"
	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
	"github.com/AleutianAI/regalloc/services/regalloc/schedule"
	"github.com/AleutianAI/regalloc/services/regalloc/storage"
)

// Sentinel errors for the regalloc service.
var (
	// ErrStorageDisabled indicates a run store operation without a store.
	ErrStorageDisabled = errors.New("run storage is disabled")

	// ErrScheduleTooLarge indicates more variables or a longer cycle horizon
	// than the service accepts.
	ErrScheduleTooLarge = errors.New("schedule exceeds size limit")
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidSchedule  = "INVALID_SCHEDULE"
	CodeRunNotFound      = "RUN_NOT_FOUND"
	CodeStorageDisabled  = "STORAGE_DISABLED"
	CodeAllocationFailed = "ALLOCATION_FAILED"
)

// OperationError records which stage of an allocation failed.
type OperationError struct {
	// Component is the failing package, e.g. "schedule" or "driver".
	Component string

	// Operation is the failing call.
	Operation string

	// Err is the underlying error.
	Err error
}

func (e *OperationError) Error() string {
	return e.Component + "." + e.Operation + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// classify maps a service error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, schedule.ErrEmptySchedule),
		errors.Is(err, lifetime.ErrUseBeforeDef),
		errors.Is(err, lifetime.ErrLifetimeOutOfBounds),
		errors.Is(err, lifetime.ErrDuplicateVar),
		errors.Is(err, ErrScheduleTooLarge):
		return http.StatusBadRequest, CodeInvalidSchedule
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, driver.ErrInvalidParams),
		errors.Is(err, binding.ErrUnknownArch):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, storage.ErrRunNotFound):
		return http.StatusNotFound, CodeRunNotFound
	case errors.Is(err, ErrStorageDisabled):
		return http.StatusServiceUnavailable, CodeStorageDisabled
	default:
		return http.StatusInternalServerError, CodeAllocationFailed
	}
}
