package protocol

import (
	"errors"
	"unicode/utf8"
)

var (
	// ErrBadFrame is returned for a frame that passed the CRC but whose
	// payload cannot be decoded.
	ErrBadFrame = errors.New("malformed telemetry frame")

	// ErrOutputFull is returned when a frame does not fit in the space
	// left in the output buffer. Nothing is written; flush and retry.
	ErrOutputFull = errors.New("telemetry output full")

	// ErrFrameTooLarge is returned for a payload longer than one frame
	ErrFrameTooLarge = errors.New("telemetry frame too large")
)

// Encoder builds telemetry frames on the device. It is not safe for use
// from interrupt context; the event sink runs on the main loop.
type Encoder struct {
	seq    uint8
	output OutputBuffer
	frame  ScratchOutput
}

// NewEncoder creates an encoder writing frames to output
func NewEncoder(output OutputBuffer) *Encoder {
	return &Encoder{output: output}
}

// EncodeFrame wraps whatever payload writes in a frame and appends it to
// the output. A frame is written whole or not at all, and the sequence
// number only advances for frames that were written.
func (e *Encoder) EncodeFrame(payload func(output OutputBuffer)) error {
	f := &e.frame
	f.Reset()

	seq := (e.seq & MessageSeqMask) | MessageDest
	f.Output([]byte{0, seq})

	payload(f)

	// Length covers header, payload and trailer
	length := f.CurPosition() + MessageTrailerSize
	if length > MessageLengthMax {
		return ErrFrameTooLarge
	}
	if length > e.output.Free() {
		return ErrOutputFull
	}
	f.Update(MessagePositionLen, uint8(length))

	crc := CRC16(f.Result())
	f.Output([]byte{
		uint8((crc & 0xFF00) >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})

	e.output.Output(f.Result())
	e.seq++
	return nil
}

// Event encodes one firmware event
func (e *Encoder) Event(rec EventRecord) error {
	return e.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, KindEvent)
		EncodeVLQUint(output, uint32(rec.Type))
		EncodeVLQUint(output, rec.Tick)
		EncodeVLQUint(output, rec.Value1)
		EncodeVLQUint(output, rec.Value2)
	})
}

// Debug encodes a debug line, truncated on a rune boundary to fit one
// frame
func (e *Encoder) Debug(msg string) error {
	const maxText = MessageLengthMax - MessageLengthMin - 3
	if len(msg) > maxText {
		cut := maxText
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return e.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, KindDebug)
		EncodeVLQString(output, msg)
	})
}

// Hello announces the format version and input strategy after boot
func (e *Encoder) Hello(strategy uint8) error {
	return e.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, KindHello)
		EncodeVLQString(output, Version)
		EncodeVLQUint(output, uint32(strategy))
	})
}

// EncodeEventFrame returns a standalone frame for rec
func EncodeEventFrame(seq uint8, rec EventRecord) []byte {
	out := NewScratchOutput()
	enc := &Encoder{seq: seq, output: out}
	enc.Event(rec)
	return append([]byte(nil), out.Result()...)
}

// FrameDecoder recovers frames from a byte stream, resynchronizing on the
// sync byte after corruption.
type FrameDecoder struct {
	synchronized bool
	haveSeq      bool
	nextSeq      uint8

	// Dropped counts frames that were corrupt or skipped in the sequence
	Dropped int
}

// NewFrameDecoder creates a decoder that starts synchronized
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{synchronized: true}
}

// Decode parses every complete frame available in input, calls handle for
// each and pops the consumed bytes. A partial frame is left in place.
func (d *FrameDecoder) Decode(input InputBuffer, handle func(Frame)) {
	data := input.Data()

	for len(data) > 0 {
		if !d.synchronized {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			d.synchronized = true
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			d.desync()
			continue
		}
		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			d.desync()
			continue
		}
		if len(data) < msgLen {
			break
		}
		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}
		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.desync()
			continue
		}

		payload := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]

		seq &= MessageSeqMask
		if d.haveSeq && seq != d.nextSeq {
			d.Dropped += int((seq - d.nextSeq) & MessageSeqMask)
		}
		d.haveSeq = true
		d.nextSeq = (seq + 1) & MessageSeqMask

		frame, err := ParsePayload(payload)
		if err != nil {
			d.Dropped++
			continue
		}
		frame.Sequence = seq
		if handle != nil {
			handle(frame)
		}
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (d *FrameDecoder) desync() {
	d.synchronized = false
	d.Dropped++
}

// ParsePayload decodes the record inside a frame
func ParsePayload(payload []byte) (Frame, error) {
	var f Frame
	data := payload

	kind, err := DecodeVLQUint(&data)
	if err != nil {
		return f, ErrBadFrame
	}
	f.Kind = uint8(kind)

	switch f.Kind {
	case KindEvent:
		var vals [4]uint32
		for i := range vals {
			if vals[i], err = DecodeVLQUint(&data); err != nil {
				return f, ErrBadFrame
			}
		}
		f.Event = EventRecord{Type: uint8(vals[0]), Tick: vals[1], Value1: vals[2], Value2: vals[3]}
	case KindDebug:
		if f.Text, err = DecodeVLQString(&data); err != nil {
			return f, ErrBadFrame
		}
	case KindHello:
		if f.Text, err = DecodeVLQString(&data); err != nil {
			return f, ErrBadFrame
		}
		strategy, err := DecodeVLQUint(&data)
		if err != nil {
			return f, ErrBadFrame
		}
		f.Strategy = uint8(strategy)
	default:
		return f, ErrBadFrame
	}
	if len(data) != 0 {
		return f, ErrBadFrame
	}
	return f, nil
}
