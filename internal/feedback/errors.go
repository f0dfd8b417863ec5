// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package feedback

import "errors"

var (
	// ErrInsufficientData means too few samples fell inside the analysis
	// window. Callers treat this as a no-op result, not a failure.
	ErrInsufficientData = errors.New("feedback: insufficient data for adjustment")
	// ErrStoreDisabled indicates the durable archive is not configured.
	ErrStoreDisabled = errors.New("feedback: archive store not enabled")
)
