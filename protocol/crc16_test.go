package protocol

import "testing"

func TestCRC16(t *testing.T) {
	testCases := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{"empty", []byte{}, 0xFFFF},
		{"check string", []byte("123456789"), 0x6F91},
		{"zero", []byte{0x00}, 0x0F87},
		{"ones", []byte{0xFF}, 0x00FF},
		{"frame header", []byte{5, MessageDest}, 0x9E81},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CRC16(tc.data); got != tc.expected {
				t.Errorf("CRC16(%v) = 0x%04X, expected 0x%04X", tc.data, got, tc.expected)
			}
		})
	}
}

func TestCRC16DetectsSingleBitFlips(t *testing.T) {
	frame := []byte{0x09, MessageDest, KindEvent, 0x03, 0x14}
	want := CRC16(frame)

	for i := range frame {
		for bit := 0; bit < 8; bit++ {
			frame[i] ^= 1 << bit
			if CRC16(frame) == want {
				t.Errorf("flip of byte %d bit %d not detected", i, bit)
			}
			frame[i] ^= 1 << bit
		}
	}
}
