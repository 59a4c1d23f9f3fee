package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// vlqMaxLen is the longest encoding of a uint32: five 7-bit groups
const vlqMaxLen = 5

// EncodeVLQUint writes v as 7-bit groups, most significant first, with the
// high bit set on every group but the last. Values below 128 take one byte.
func EncodeVLQUint(output OutputBuffer, v uint32) {
	var buf [vlqMaxLen]byte
	i := len(buf) - 1
	buf[i] = byte(v & 0x7F)
	for v >>= 7; v != 0; v >>= 7 {
		i--
		buf[i] = byte(v&0x7F) | 0x80
	}
	output.Output(buf[i:])
}

// DecodeVLQUint decodes one value and advances data past it. Encodings
// with a leading zero group, more than five groups or more than 32 bits
// are rejected.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	var v uint32
	for i := 0; ; i++ {
		if i == vlqMaxLen {
			return 0, ErrInvalidVLQ
		}
		if len(*data) == 0 {
			return 0, ErrBufferTooSmall
		}
		c := (*data)[0]
		*data = (*data)[1:]

		if i == 0 && c == 0x80 {
			return 0, ErrInvalidVLQ
		}
		if v>>25 != 0 {
			return 0, ErrInvalidVLQ
		}
		v = v<<7 | uint32(c&0x7F)
		if c&0x80 == 0 {
			return v, nil
		}
	}
}

// EncodeVLQString encodes a string with a VLQ length prefix
func EncodeVLQString(output OutputBuffer, s string) {
	EncodeVLQUint(output, uint32(len(s)))
	output.Output([]byte(s))
}

// DecodeVLQString decodes a length-prefixed string
func DecodeVLQString(data *[]byte) (string, error) {
	length, err := DecodeVLQUint(data)
	if err != nil {
		return "", err
	}
	if length > uint32(len(*data)) {
		return "", ErrBufferTooSmall
	}
	s := string((*data)[:length])
	*data = (*data)[length:]
	return s, nil
}
