// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	first := map[string]any{"t": "MESSAGE_CREATE", "s": 7, "d": map[string]any{"id": "1", "content": "hello"}}
	second := map[string]any{"d": map[string]any{"content": "hello", "id": "1"}, "s": 7, "t": "MESSAGE_CREATE"}

	a, err := Marshal(first)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(second)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal maps with different insertion order encoded differently")
	}
}

func TestAnyDecodesToStringMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"user": map[string]any{"id": "42"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if _, ok := outer["user"].(map[string]any); !ok {
		t.Fatalf("nested value %T, want map[string]any", outer["user"])
	}
}

func TestStreamRoundtrip(t *testing.T) {
	type frame struct {
		Seq  int64  `cbor:"seq"`
		Type string `cbor:"type"`
	}
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, value := range []frame{{1, "READY"}, {2, "MESSAGE_CREATE"}} {
		if err := encoder.Encode(value); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	var got []frame
	for range 2 {
		var value frame
		if err := decoder.Decode(&value); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		got = append(got, value)
	}
	if got[1].Type != "MESSAGE_CREATE" || got[1].Seq != 2 {
		t.Errorf("second frame = %+v", got[1])
	}
}
