// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package raven

// DropReason is why an event was not delivered.
type DropReason string

const (
	// ReasonQueueOverflow means every transport handle was busy.
	ReasonQueueOverflow DropReason = "queue_overflow"
	// ReasonShutdown means the client was shutting down.
	ReasonShutdown DropReason = "shutdown"
	// ReasonInternalError means the event could not be built or encoded.
	ReasonInternalError DropReason = "internal_sdk_error"
	// ReasonNetworkError means the request failed (connection error or timeout).
	ReasonNetworkError DropReason = "network_error"
	// ReasonSendError means the ingestion endpoint returned an error status.
	ReasonSendError DropReason = "send_error"
)

// Stats counts the outcome of every event passed to the client.
type Stats struct {
	// Sent is the number of events accepted by the ingestion endpoint.
	Sent int64
	// Dropped is the number of undelivered events, by reason.
	Dropped map[DropReason]int64
}
