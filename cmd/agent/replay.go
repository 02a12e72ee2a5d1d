// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ihlog"
)

// replayKernelLog selects the kernel log as replay source.
const replayKernelLog = "kmsg"

type entrySource interface {
	ParseFile(path string) ([]ihlog.Entry, error)
	ParseKernelLogs(ctx context.Context) ([]ihlog.Entry, error)
}

func newEntrySource() entrySource {
	return ihlog.NewParser()
}

type submitter interface {
	Submit(rec *ih.Record) bool
}

// replayLog feeds the entries found in from to engine, at most rps per
// second when rps is positive. Cancellation ends the replay early without
// error.
func replayLog(ctx context.Context, engine submitter, src entrySource, from string, rps float64) error {
	var (
		entries []ihlog.Entry
		err     error
	)
	if from == replayKernelLog {
		entries, err = src.ParseKernelLogs(ctx)
	} else {
		entries, err = src.ParseFile(from)
	}
	if err != nil {
		return fmt.Errorf("failed to read replay source %s: %w", from, err)
	}

	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	queued := 0
	for i := range entries {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		} else if ctx.Err() != nil {
			break
		}
		if engine.Submit(&entries[i].Record) {
			queued++
		} else {
			klog.V(4).InfoS("replayed entry not queued", "line", entries[i].Line, "entry", entries[i].Record.String())
		}
	}

	klog.InfoS("replay finished", "source", from, "entries", len(entries), "queued", queued)
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
