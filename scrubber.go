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
	"regexp"

	"github.com/dpeckett/raven/packet"
)

// Scrubber removes sensitive information from event text before it leaves
// the process. Implementations must be safe for concurrent use.
type Scrubber interface {
	Scrub(s string) string
}

// ScrubberFunc adapts a function to the Scrubber interface.
type ScrubberFunc func(s string) string

func (f ScrubberFunc) Scrub(s string) string {
	return f(s)
}

const redacted = "[REDACTED]"

var defaultScrubPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|token)[=:\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)bearer\s+[\w\-\.=]+`),
	regexp.MustCompile(`(?i)(password|passwd|secret|credential)[=:\s]+['"]?[^\s'",]+['"]?`),
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
}

type patternScrubber struct {
	patterns []*regexp.Regexp
}

// NewPatternScrubber returns a scrubber that redacts credentials, email
// addresses and card numbers, plus anything matching the extra patterns.
func NewPatternScrubber(extra ...*regexp.Regexp) Scrubber {
	patterns := make([]*regexp.Regexp, 0, len(defaultScrubPatterns)+len(extra))
	patterns = append(patterns, defaultScrubPatterns...)
	patterns = append(patterns, extra...)

	return &patternScrubber{patterns: patterns}
}

func (s *patternScrubber) Scrub(text string) string {
	for _, pattern := range s.patterns {
		text = pattern.ReplaceAllString(text, redacted)
	}
	return text
}

func scrubPacket(s Scrubber, p *packet.Packet) {
	p.Message = s.Scrub(p.Message)
	p.Culprit = s.Scrub(p.Culprit)

	if p.Exception != nil {
		p.Exception.Type = s.Scrub(p.Exception.Type)
		p.Exception.Value = s.Scrub(p.Exception.Value)
		p.Exception.Module = s.Scrub(p.Exception.Module)
	}

	// Degraded frames carry the raw trace line.
	for i := range p.StackTrace.Frames {
		if p.StackTrace.Frames[i].Degraded() {
			p.StackTrace.Frames[i].Function = s.Scrub(p.StackTrace.Frames[i].Function)
		}
	}

	for k, v := range p.Tags {
		p.Tags[k] = s.Scrub(v)
	}
}
