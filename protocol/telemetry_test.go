package protocol

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEventFrameRoundTrip(t *testing.T) {
	rec := EventRecord{Type: 4, Tick: 123456, Value1: 1, Value2: 3}
	frame := EncodeEventFrame(0, rec)

	if int(frame[MessagePositionLen]) != len(frame) {
		t.Errorf("length byte %d, frame is %d bytes", frame[MessagePositionLen], len(frame))
	}
	if frame[len(frame)-1] != MessageValueSync {
		t.Errorf("frame does not end with sync: %v", frame)
	}

	fifo := NewFifoBuffer(256)
	fifo.Write(frame)

	var got []Frame
	dec := NewFrameDecoder()
	dec.Decode(fifo, func(f Frame) { got = append(got, f) })

	if len(got) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(got))
	}
	if got[0].Kind != KindEvent || got[0].Event != rec {
		t.Errorf("Expected %+v, got %+v", rec, got[0])
	}
	if !fifo.IsEmpty() {
		t.Errorf("decoder left %d bytes", fifo.Available())
	}
}

func TestDecoderPartialAndSequence(t *testing.T) {
	out := NewScratchOutput()
	enc := NewEncoder(out)
	enc.Hello(3)
	enc.Event(EventRecord{Type: 1, Tick: 0})
	enc.Debug("boot ok")
	stream := append([]byte(nil), out.Result()...)

	fifo := NewFifoBuffer(256)
	dec := NewFrameDecoder()
	var got []Frame
	handle := func(f Frame) { got = append(got, f) }

	// Feed byte by byte: partial frames must wait
	for _, b := range stream {
		fifo.Write([]byte{b})
		dec.Decode(fifo, handle)
	}

	if len(got) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(got))
	}
	if got[0].Kind != KindHello || got[0].Text != Version || got[0].Strategy != 3 {
		t.Errorf("bad hello frame: %+v", got[0])
	}
	if got[2].Kind != KindDebug || got[2].Text != "boot ok" {
		t.Errorf("bad debug frame: %+v", got[2])
	}
	for i, f := range got {
		if f.Sequence != uint8(i) {
			t.Errorf("frame %d has sequence %d", i, f.Sequence)
		}
	}
	if dec.Dropped != 0 {
		t.Errorf("Expected no drops, got %d", dec.Dropped)
	}
}

func TestDecoderResync(t *testing.T) {
	good := EncodeEventFrame(0, EventRecord{Type: 2, Tick: 10})
	after := EncodeEventFrame(1, EventRecord{Type: 5, Tick: 12})

	fifo := NewFifoBuffer(256)
	fifo.Write([]byte{0x00, 0x42, MessageValueSync})
	fifo.Write(good)
	fifo.Write([]byte{0x33, 0x44, MessageValueSync})
	fifo.Write(after)

	var got []Frame
	dec := NewFrameDecoder()
	dec.Decode(fifo, func(f Frame) { got = append(got, f) })

	if len(got) != 2 {
		t.Fatalf("Expected 2 good frames, got %d", len(got))
	}
	if got[0].Event.Type != 2 || got[1].Event.Type != 5 {
		t.Errorf("wrong frames survived: %+v", got)
	}
	if dec.Dropped != 2 {
		t.Errorf("Expected 2 garbage runs dropped, got %d", dec.Dropped)
	}
}

func TestDecoderBadCRC(t *testing.T) {
	frame := EncodeEventFrame(0, EventRecord{Type: 3, Tick: 11})
	frame[3] ^= 0x55

	fifo := NewFifoBuffer(256)
	fifo.Write(frame)

	dec := NewFrameDecoder()
	dec.Decode(fifo, func(f Frame) {
		t.Errorf("corrupt frame delivered: %+v", f)
	})
	if dec.Dropped == 0 {
		t.Error("CRC failure was not counted")
	}
}

func TestDebugTruncated(t *testing.T) {
	out := NewScratchOutput()
	NewEncoder(out).Debug(strings.Repeat("x", 200))
	frame := out.Result()
	if len(frame) > MessageLengthMax {
		t.Fatalf("frame of %d bytes exceeds the maximum", len(frame))
	}

	f, err := ParsePayload(frame[MessageHeaderSize : len(frame)-MessageTrailerSize])
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if len(f.Text) == 0 || len(f.Text) >= 200 {
		t.Errorf("Expected truncated text, got %d bytes", len(f.Text))
	}
}

func TestParsePayloadRejects(t *testing.T) {
	testCases := [][]byte{
		{},
		{0x09},
		{KindEvent, 1, 2},
		{KindDebug, 5, 'a'},
		{KindEvent, 1, 2, 3, 4, 5},
	}
	for i, payload := range testCases {
		if _, err := ParsePayload(payload); err != ErrBadFrame {
			t.Errorf("case %d: expected ErrBadFrame, got %v", i, err)
		}
	}
}

func TestEncoderRefusesFrameThatDoesNotFit(t *testing.T) {
	out := NewScratchOutput()
	enc := NewEncoder(out)
	// 2 header + kind + type + 3*5 VLQ bytes + 3 trailer
	rec := EventRecord{Type: 1, Tick: 0xFFFFFFFF, Value1: 0xFFFFFFFF, Value2: 0xFFFFFFFF}
	const frameLen = 22

	written := 0
	var err error
	for written < 100 {
		if err = enc.Event(rec); err != nil {
			break
		}
		written++
	}
	if !errors.Is(err, ErrOutputFull) {
		t.Fatalf("Expected ErrOutputFull, got %v", err)
	}
	if written != MessageMax/frameLen {
		t.Errorf("Expected %d frames before full, got %d", MessageMax/frameLen, written)
	}
	if out.CurPosition() != written*frameLen {
		t.Errorf("refused frame left %d bytes behind", out.CurPosition()-written*frameLen)
	}

	fifo := NewFifoBuffer(256)
	dec := NewFrameDecoder()
	var got []Frame
	handle := func(f Frame) { got = append(got, f) }
	fifo.Write(out.Result())
	dec.Decode(fifo, handle)

	// After a flush the refused frame goes out with the next sequence number
	out.Reset()
	if err := enc.Event(rec); err != nil {
		t.Fatalf("Event after flush: %v", err)
	}
	fifo.Write(out.Result())
	dec.Decode(fifo, handle)

	if len(got) != written+1 {
		t.Fatalf("Expected %d frames, got %d", written+1, len(got))
	}
	if dec.Dropped != 0 {
		t.Errorf("Expected a gapless sequence, %d dropped", dec.Dropped)
	}
	for i, f := range got {
		if f.Event != rec {
			t.Errorf("frame %d: expected %+v, got %+v", i, rec, f.Event)
		}
	}
}

func TestDebugTruncatesOnRuneBoundary(t *testing.T) {
	// Two-byte runes starting at odd offsets put a continuation byte at
	// the cut
	msg := "x" + strings.Repeat("é", 40)

	out := NewScratchOutput()
	if err := NewEncoder(out).Debug(msg); err != nil {
		t.Fatalf("Debug: %v", err)
	}
	frame := out.Result()
	f, err := ParsePayload(frame[MessageHeaderSize : len(frame)-MessageTrailerSize])
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if !utf8.ValidString(f.Text) {
		t.Errorf("truncated text is not valid UTF-8: %q", f.Text)
	}
	if !strings.HasPrefix(msg, f.Text) || len(f.Text) != 55 {
		t.Errorf("Expected the first 55 bytes, got %d: %q", len(f.Text), f.Text)
	}
}
