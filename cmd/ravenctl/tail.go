// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"

	"github.com/dpeckett/raven"
	"github.com/dpeckett/raven/internal/config"
	"github.com/dpeckett/raven/internal/logscan"
	"github.com/hpcloud/tail"
)

func runTail(ctx context.Context, logger *slog.Logger, client *raven.Client, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("tail", flag.ContinueOnError)
	path := fs.String("f", "", "path to the log file to follow")
	fromStart := fs.Bool("from-start", false, "report events already in the file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		return errors.New("a log file is required (-f)")
	}

	tailConf := tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Logger:    tail.DiscardingLogger,
	}
	if !*fromStart {
		tailConf.Location = &tail.SeekInfo{Whence: io.SeekEnd}
	}

	t, err := tail.TailFile(*path, tailConf)
	if err != nil {
		return err
	}
	defer t.Cleanup()

	logger.Info("Following log file", slog.String("path", *path))

	minLevel := cfg.Level()
	capture := func(ev raven.Event) {
		if raven.LevelFor(ev.Severity).AtLeast(minLevel) {
			client.Capture(ev)
		}
	}

	var scanner logscan.Scanner
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping", slog.String("path", *path))
			_ = t.Stop()

			if ev, ok := scanner.Flush(); ok {
				capture(ev)
			}
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				if ev, ok := scanner.Flush(); ok {
					capture(ev)
				}
				return t.Err()
			}

			if line.Err != nil {
				logger.Warn("Failed to read line", slog.Any("error", line.Err))
				continue
			}

			if ev, ok := scanner.Feed(line.Text); ok {
				capture(ev)
			}
		}
	}
}
