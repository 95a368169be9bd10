// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package engine

import "errors"

// ErrInvalidInput marks an ingest payload that failed validation.
var ErrInvalidInput = errors.New("engine: invalid event input")
