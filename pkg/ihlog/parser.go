// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package ihlog recovers interrupt handler ring entries from kernel logs
// and trace files so they can be replayed through the engine.
//
// The compute driver dumps every entry it processes at debug level as
//
//	client id 0x14, source id 181, vmid 8, pasid 0x8001. raw data:
//	    14B5,        0,        0,     8001,     1234,        0,        0,        0.
//
// Trace files may instead hold one entry per line as eight hex words
// separated by spaces or commas, with or without a 0x prefix.
package ihlog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
)

// Entry is one ring entry recovered from a log.
type Entry struct {
	// Line is the 1-based line number in the source, 0 for kmsg records.
	Line int `json:"line,omitempty"`
	// Timestamp is the kernel time since boot, when the log carries one.
	Timestamp time.Duration `json:"timestamp,omitempty"`
	Record    ih.Record     `json:"record"`
	Raw       string        `json:"raw"`
}

// Parser extracts ring entries from log text.
type Parser struct {
	// dumpRegex matches the "%8X, ... %8X." raw data line.
	dumpRegex *regexp.Regexp

	// timestampRegex extracts the [seconds.microseconds] prefix, after an
	// optional <level> from dmesg --raw.
	timestampRegex *regexp.Regexp

	kmsg *KmsgReader
}

// NewParser creates a parser with compiled patterns reading the default
// kernel message buffer.
func NewParser() *Parser {
	return NewParserWithKmsg(NewKmsgReader())
}

// NewParserWithKmsg creates a parser reading kernel messages from kmsg.
func NewParserWithKmsg(kmsg *KmsgReader) *Parser {
	word := `\s*([0-9A-Fa-f]{1,8})`
	dump := strings.Repeat(word+`,`, ih.EntryWords-1) + word + `\.\s*$`
	return &Parser{
		dumpRegex:      regexp.MustCompile(dump),
		timestampRegex: regexp.MustCompile(`^(?:<\d+>)?\[\s*(\d+\.\d+)\]\s*`),
		kmsg:           kmsg,
	}
}

// Parse reads every line of r and returns the entries found. Lines that
// carry no entry are skipped.
func (p *Parser) Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if e, ok := p.ParseLine(text); ok {
			e.Line = line
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("failed to read log at line %d: %w", line, err)
	}
	return entries, nil
}

// ParseFile parses the log or trace file at path.
func (p *Parser) ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return p.Parse(f)
}

// ParseLine recovers an entry from one line of dmesg output, a kmsg
// record or a trace file.
func (p *Parser) ParseLine(line string) (Entry, bool) {
	var ts time.Duration
	body := line

	if rec, err := parseKmsgRecord(line); err == nil {
		ts = rec.Timestamp
		body = rec.Message
	} else if m := p.timestampRegex.FindStringSubmatch(line); m != nil {
		if seconds, err := strconv.ParseFloat(m[1], 64); err == nil {
			ts = time.Duration(seconds * float64(time.Second))
		}
		body = line[len(m[0]):]
	}

	if rec, ok := p.parseDump(body); ok {
		return Entry{Timestamp: ts, Record: rec, Raw: line}, true
	}
	if rec, err := ParseWords(body); err == nil {
		return Entry{Timestamp: ts, Record: rec, Raw: line}, true
	}
	return Entry{}, false
}

func (p *Parser) parseDump(s string) (ih.Record, bool) {
	m := p.dumpRegex.FindStringSubmatch(s)
	if m == nil {
		return ih.Record{}, false
	}
	var rec ih.Record
	for i := range rec {
		v, err := strconv.ParseUint(m[i+1], 16, 32)
		if err != nil {
			return ih.Record{}, false
		}
		rec[i] = uint32(v)
	}
	return rec, true
}

// ParseWords parses exactly eight hex words separated by commas or
// whitespace. A 0x prefix and a trailing period are accepted.
func ParseWords(s string) (ih.Record, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != ih.EntryWords {
		return ih.Record{}, fmt.Errorf("%w: want %d words, got %d",
			ErrMalformedEntry, ih.EntryWords, len(fields))
	}

	var rec ih.Record
	for i, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		v, err := strconv.ParseUint(f, 16, 32)
		if err != nil {
			return ih.Record{}, fmt.Errorf("%w: word %d %q", ErrMalformedEntry, i, fields[i])
		}
		rec[i] = uint32(v)
	}
	return rec, nil
}

// ParseKernelLogs reads entries from the kernel log. It prefers
// /dev/kmsg and falls back to the dmesg command.
func (p *Parser) ParseKernelLogs(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	if p.kmsg.IsAvailable() {
		records, err := p.kmsg.ReadRecords(ctx, func(msg string) bool {
			return p.dumpRegex.MatchString(msg)
		})
		if err == nil {
			klog.V(4).InfoS("read kernel messages", "count", len(records), "source", p.kmsg.path)
			entries := make([]Entry, 0, len(records))
			for _, r := range records {
				if rec, ok := p.parseDump(r.Message); ok {
					entries = append(entries, Entry{Timestamp: r.Timestamp, Record: rec, Raw: r.Message})
				}
			}
			return entries, nil
		}
		klog.V(2).InfoS("failed to read kernel message buffer, falling back to dmesg",
			"error", err)
	} else {
		klog.V(4).InfoS("kernel message buffer not available, using dmesg")
	}

	return p.ParseDmesg(ctx)
}

// ParseDmesg executes dmesg and parses the entries it prints.
func (p *Parser) ParseDmesg(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	// The entry dump is printed at debug level, so no --level filter.
	cmd := exec.CommandContext(ctx, "dmesg", "--raw")
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "Permission denied") ||
			strings.Contains(err.Error(), "permission denied") {
			return nil, fmt.Errorf("%w: permission denied "+
				"(try running with sudo or as root): %w", ErrDmesg, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrDmesg, err)
	}

	return p.Parse(strings.NewReader(string(output)))
}
