// Package protocol implements the telemetry link between a light engine
// and a host: VLQ-encoded records in CRC-checked, sync-terminated frames.
package protocol

// Version of the telemetry format
const Version = "1"

// Frame layout: [len][seq] payload [crc hi][crc lo][sync]
const (
	MessageMax         = 128 // Scratch buffer size, enough for several frames
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10

	// Message sequence masks
	MessageSeqMask = 0x0F
)

// Record kinds, the first VLQ of every payload
const (
	KindEvent = 1 // type, tick, value1, value2
	KindDebug = 2 // length-prefixed text
	KindHello = 3 // format version, input strategy
)

// EventRecord mirrors one entry of the firmware event ring
type EventRecord struct {
	Type   uint8
	Tick   uint32
	Value1 uint32
	Value2 uint32
}

// Frame is one decoded telemetry frame
type Frame struct {
	Sequence uint8
	Kind     uint8
	Event    EventRecord
	Text     string
	Strategy uint8
}
