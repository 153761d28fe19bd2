// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command ravenctl reports Unity log errors to an error tracking endpoint.
//
//	ravenctl [-c raven.yaml] [-env .env] [-v] send -m "message" [-severity error] [-trace file]
//	ravenctl [-c raven.yaml] [-env .env] [-v] tail -f Player.log [-from-start]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dpeckett/raven"
	"github.com/dpeckett/raven/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ravenctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("ravenctl", flag.ContinueOnError)
	configPath := fs.String("c", "raven.yaml", "path to config file")
	envPath := fs.String("env", ".env", "path to environment file")
	verbose := fs.Bool("v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return errors.New("expected a command: send or tail")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := config.LoadEnv(*envPath); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	conf, err := cfg.ClientConfiguration()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := raven.NewClient(ctx, logger, conf)

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "send":
		err = runSend(client, cmdArgs)
	case "tail":
		err = runTail(ctx, logger, client, cfg, cmdArgs)
	default:
		err = fmt.Errorf("unknown command: %q", cmd)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := client.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("Failed to shut down client", slog.Any("error", shutdownErr))
	}

	stats := client.Stats()
	logger.Info("Done", slog.Int64("sent", stats.Sent), slog.Any("dropped", stats.Dropped))

	if err == nil && cmd == "send" && stats.Sent == 0 {
		err = errors.New("event was not delivered")
	}

	return err
}

func runSend(client *raven.Client, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	message := fs.String("m", "", "event message")
	severityName := fs.String("severity", "Error", "event severity (error, assert, warning, log, exception)")
	tracePath := fs.String("trace", "", "file containing the raw stack trace, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *message == "" {
		return errors.New("a message is required (-m)")
	}

	severity, err := raven.ParseSeverity(*severityName)
	if err != nil {
		return err
	}

	trace, err := readTrace(*tracePath)
	if err != nil {
		return err
	}

	client.CaptureEvent(*message, trace, severity)
	return nil
}

func readTrace(path string) (string, error) {
	var (
		data []byte
		err  error
	)

	switch path {
	case "":
		return "", nil
	case "-":
		data, err = io.ReadAll(os.Stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read stack trace: %w", err)
	}

	return string(data), nil
}
