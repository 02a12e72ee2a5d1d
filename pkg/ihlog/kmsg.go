// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package ihlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	// DefaultKmsgPath is the default path to the kernel message buffer.
	DefaultKmsgPath = "/dev/kmsg"

	// kmsgReadTimeout is the maximum time to spend reading from /dev/kmsg.
	kmsgReadTimeout = 5 * time.Second
)

// KmsgReader reads kernel messages from /dev/kmsg.
type KmsgReader struct {
	path string
}

// NewKmsgReader creates a new reader for the kernel message buffer.
func NewKmsgReader() *KmsgReader {
	return &KmsgReader{path: DefaultKmsgPath}
}

// NewKmsgReaderWithPath creates a reader with a custom path (for testing).
func NewKmsgReaderWithPath(path string) *KmsgReader {
	return &KmsgReader{path: path}
}

// KmsgRecord is one parsed /dev/kmsg record.
type KmsgRecord struct {
	Priority  int
	Sequence  uint64
	Timestamp time.Duration
	Message   string
}

// ReadRecords reads the available records from the buffer and returns
// those whose message satisfies keep.
func (r *KmsgReader) ReadRecords(ctx context.Context, keep func(string) bool) ([]KmsgRecord, error) {
	file, err := os.OpenFile(r.path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: permission denied reading %s "+
				"(requires CAP_SYSLOG or root): %w", ErrKmsgUnavailable, r.path, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrKmsgUnavailable, err)
	}
	defer func() {
		_ = file.Close()
	}()

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek in %s: %w", r.path, err)
	}

	readCtx, cancel := context.WithTimeout(ctx, kmsgReadTimeout)
	defer cancel()

	var records []KmsgRecord
	done := make(chan error, 1)
	go func() {
		done <- scanRecords(readCtx, file, keep, func(rec KmsgRecord) {
			records = append(records, rec)
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return records, fmt.Errorf("error reading %s: %w", r.path, err)
		}
		return records, nil
	case <-readCtx.Done():
		// Closing the file unblocks the scanner; what was read so far stands.
		_ = file.Close()
		<-done
		return records, nil
	}
}

// scanRecords feeds every parsable record of r accepted by keep to emit
// until r is drained or ctx is done. Continuation lines (leading space,
// KEY=value device properties) and malformed records are skipped.
func scanRecords(ctx context.Context, r io.Reader, keep func(string) bool, emit func(KmsgRecord)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if strings.HasPrefix(line, " ") {
			continue
		}
		record, err := parseKmsgRecord(line)
		if err != nil {
			continue
		}
		if keep == nil || keep(record.Message) {
			emit(*record)
		}
	}
	err := scanner.Err()
	// /dev/kmsg reports EAGAIN once the buffer is drained.
	if err == nil || errors.Is(err, syscall.EAGAIN) || ctx.Err() != nil {
		return nil
	}
	return err
}

// parseKmsgRecord parses a single /dev/kmsg record.
// Format: priority,sequence,timestamp,flags;message
func parseKmsgRecord(line string) (*KmsgRecord, error) {
	header, message, ok := strings.Cut(line, ";")
	if !ok {
		return nil, fmt.Errorf("invalid kmsg format: missing semicolon")
	}

	fields := strings.Split(header, ",")
	if len(fields) < 3 {
		return nil, fmt.Errorf("invalid kmsg header: expected 3+ fields")
	}

	priority, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid priority: %w", err)
	}

	seq, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid sequence: %w", err)
	}

	tsUsec, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	return &KmsgRecord{
		// The low three bits are the level, the rest the facility.
		Priority:  priority & 7,
		Sequence:  seq,
		Timestamp: time.Duration(tsUsec) * time.Microsecond,
		Message:   message,
	}, nil
}

// IsAvailable checks if the buffer is readable.
func (r *KmsgReader) IsAvailable() bool {
	file, err := os.OpenFile(r.path, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}
