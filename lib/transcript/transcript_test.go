// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWriteRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")
	writer, err := Create(dir, "b-admin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	received := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{Session: "b-admin", Sequence: 1, Type: "READY", ReceivedAt: received, Payload: []byte(`{}`)},
		{Session: "b-admin", Sequence: 2, Type: "MESSAGE_CREATE", ReceivedAt: received.Add(time.Second),
			Payload: []byte(`{"content":"hello"}`), Matched: true},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := writer.Write(records[0]); err == nil {
		t.Error("Write after Close succeeded")
	}

	got, err := Read(filepath.Join(dir, "b-admin"+Extension))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d records, want 2", len(got))
	}
	if got[1].Type != "MESSAGE_CREATE" || !got[1].Matched || string(got[1].Payload) != `{"content":"hello"}` {
		t.Errorf("second record = %+v", got[1])
	}
	if !got[1].ReceivedAt.Equal(records[1].ReceivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", got[1].ReceivedAt, records[1].ReceivedAt)
	}
}

func TestReadEmptyTranscript(t *testing.T) {
	dir := t.TempDir()
	writer, err := Create(dir, "idle")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got, err := Read(writer.Path())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("read %d records from an empty transcript", len(got))
	}
}
