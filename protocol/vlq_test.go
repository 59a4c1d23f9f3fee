package protocol

import (
	"bytes"
	"testing"
)

func TestVLQUintEncoding(t *testing.T) {
	testCases := []struct {
		value uint32
		bytes []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x00}},
		{300, []byte{0x82, 0x2C}},
		{0x3FFF, []byte{0xFF, 0x7F}},
		{0x4000, []byte{0x81, 0x80, 0x00}},
		{0xFFFFFFFF, []byte{0x8F, 0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, tc := range testCases {
		out := NewScratchOutput()
		EncodeVLQUint(out, tc.value)
		if !bytes.Equal(out.Result(), tc.bytes) {
			t.Errorf("EncodeVLQUint(%d) = % X, expected % X", tc.value, out.Result(), tc.bytes)
		}

		data := append(append([]byte(nil), tc.bytes...), 0xEE)
		got, err := DecodeVLQUint(&data)
		if err != nil || got != tc.value {
			t.Errorf("DecodeVLQUint(% X) = %d, %v", tc.bytes, got, err)
		}
		if len(data) != 1 || data[0] != 0xEE {
			t.Errorf("decoder consumed the wrong number of bytes, left % X", data)
		}
	}
}

func TestVLQUintRejects(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", []byte{}, ErrBufferTooSmall},
		{"truncated", []byte{0x81}, ErrBufferTooSmall},
		{"leading zero group", []byte{0x80, 0x01}, ErrInvalidVLQ},
		{"overflow", []byte{0x90, 0x80, 0x80, 0x80, 0x00}, ErrInvalidVLQ},
		{"too long", []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}, ErrInvalidVLQ},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.data
			if _, err := DecodeVLQUint(&data); err != tc.err {
				t.Errorf("Expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestVLQString(t *testing.T) {
	out := NewScratchOutput()
	EncodeVLQString(out, "moon")
	EncodeVLQString(out, "")
	data := out.Result()

	for _, want := range []string{"moon", ""} {
		got, err := DecodeVLQString(&data)
		if err != nil || got != want {
			t.Errorf("Expected %q, got %q (%v)", want, got, err)
		}
	}
	if len(data) != 0 {
		t.Errorf("%d bytes left over", len(data))
	}

	short := []byte{0x05, 'a', 'b'}
	if _, err := DecodeVLQString(&short); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}
