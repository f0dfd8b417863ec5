// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package catalog

import "errors"

var (
	// ErrTaskNotFound indicates the task type is absent from the task catalog.
	ErrTaskNotFound = errors.New("catalog: task type not found")
	// ErrCatalogUnavailable signals the model catalog could not be queried.
	ErrCatalogUnavailable = errors.New("catalog: model catalog unavailable")
	// ErrNoTelemetry indicates no telemetry collaborator or no data for the window.
	ErrNoTelemetry = errors.New("catalog: no telemetry available")
)
