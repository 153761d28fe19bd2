// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package transport

import (
	"strconv"
	"strings"
	"time"
)

const (
	// ProtocolVersion is the version of the ingestion protocol spoken by the client.
	ProtocolVersion = "2.0"
	// ClientName identifies the client implementation and version.
	ClientName = "raven-go/1.0"
	// AuthHeaderName is the request header carrying the auth header value.
	AuthHeaderName = "X-Sentry-Auth"
)

// AuthHeader builds the value of the X-Sentry-Auth header.
func AuthHeader(publicKey, privateKey string, now time.Time) string {
	var b strings.Builder
	b.Grow(128 + len(publicKey) + len(privateKey))

	b.WriteString("Sentry sentry_version=")
	b.WriteString(ProtocolVersion)
	b.WriteString(", sentry_timestamp=")
	b.WriteString(strconv.FormatInt(now.Unix(), 10))
	b.WriteString(", sentry_key=")
	b.WriteString(publicKey)
	b.WriteString(", sentry_secret=")
	b.WriteString(privateKey)
	b.WriteString(", sentry_client=")
	b.WriteString(ClientName)

	return b.String()
}
