// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package raven

import (
	"fmt"
	"strings"

	"github.com/dpeckett/raven/packet"
)

// Severity is the kind of log message reported by the host.
type Severity int

const (
	SeverityError Severity = iota
	SeverityAssert
	SeverityWarning
	SeverityLog
	SeverityException
)

var severityNames = map[Severity]string{
	SeverityError:     "Error",
	SeverityAssert:    "Assert",
	SeverityWarning:   "Warning",
	SeverityLog:       "Log",
	SeverityException: "Exception",
}

var severityLevels = map[Severity]packet.Level{
	SeverityError:     packet.LevelError,
	SeverityAssert:    packet.LevelError,
	SeverityWarning:   packet.LevelWarning,
	SeverityLog:       packet.LevelInfo,
	SeverityException: packet.LevelError,
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// LevelFor maps a host severity to the event level. Unknown severities are
// reported as errors.
func LevelFor(s Severity) packet.Level {
	if level, ok := severityLevels[s]; ok {
		return level
	}
	return packet.LevelError
}

// ParseSeverity parses a severity name, case insensitively.
func ParseSeverity(name string) (Severity, error) {
	for s, n := range severityNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown severity: %q", name)
}
