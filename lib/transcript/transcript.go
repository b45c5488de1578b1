// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcript records the dispatches a gateway session observed
// so a failed run can be diagnosed after the nodes are gone.
//
// A transcript file is a zstd-compressed stream of CBOR [Record] items,
// one per dispatch, in arrival order. Files are named
// "<session>.cbor.zst" under the run directory.
package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/paracord-chat/fedcheck/lib/codec"
)

// Extension is appended to the session name.
const Extension = ".cbor.zst"

// Record is one observed dispatch.
type Record struct {
	Session    string    `cbor:"session"`
	Sequence   int64     `cbor:"seq"`
	Type       string    `cbor:"type"`
	ReceivedAt time.Time `cbor:"received_at"`

	// Payload is the dispatch's raw JSON "d" field.
	Payload []byte `cbor:"payload"`

	// Matched is set when the dispatch satisfied the Await that
	// received it. Dispatches held back for later are recorded unmatched.
	Matched bool `cbor:"matched,omitempty"`
}

// Writer appends records to a transcript file. It is safe for
// concurrent use.
type Writer struct {
	mu         sync.Mutex
	path       string
	file       *os.File
	buffered   *bufio.Writer
	compressor *zstd.Encoder
	encoder    *codec.Encoder
	closed     bool
}

// Create opens dir/<session>.cbor.zst for writing, creating dir.
func Create(dir, session string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}
	path := filepath.Join(dir, session+Extension)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}
	buffered := bufio.NewWriter(file)
	compressor, err := zstd.NewWriter(buffered, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("transcript: zstd writer: %w", err)
	}
	return &Writer{
		path:       path,
		file:       file,
		buffered:   buffered,
		compressor: compressor,
		encoder:    codec.NewEncoder(compressor),
	}, nil
}

// Path returns the transcript's file path.
func (w *Writer) Path() string { return w.path }

// Write appends record.
func (w *Writer) Write(record Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("transcript: write to closed transcript %s", w.path)
	}
	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("transcript: encoding record: %w", err)
	}
	return nil
}

// Close flushes and closes the file. Calling Close again returns nil.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return errors.Join(
		w.compressor.Close(),
		w.buffered.Flush(),
		w.file.Close(),
	)
}

// Read decodes every record in the transcript at path.
func Read(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}
	defer file.Close()

	decompressor, err := zstd.NewReader(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("transcript: zstd reader: %w", err)
	}
	defer decompressor.Close()

	decoder := codec.NewDecoder(decompressor)
	var records []Record
	for {
		var record Record
		err := decoder.Decode(&record)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("transcript: %s: record %d: %w", path, len(records), err)
		}
		records = append(records, record)
	}
}
