package protocol

// InputBuffer is a byte queue the frame decoder consumes from
type InputBuffer interface {
	// Data returns the available data slice
	Data() []byte

	// Available returns the number of bytes available
	Available() int

	// Pop removes n bytes from the front of the buffer
	Pop(n int)
}

// OutputBuffer is where frames are assembled. Update lets the encoder
// patch the length byte once the payload is known.
type OutputBuffer interface {
	// Output writes data to the buffer
	Output(data []byte)

	// CurPosition returns the current write position
	CurPosition() int

	// Update modifies a byte at a specific position
	Update(pos int, val byte)

	// DataSince returns data from a specific position to current
	DataSince(pos int) []byte

	// Free returns the number of bytes that can still be written
	Free() int
}

// ScratchOutput implements OutputBuffer using a fixed-size scratch buffer
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{pos: 0}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < len(s.buf) {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

func (s *ScratchOutput) Free() int {
	return len(s.buf) - s.pos
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is a ring between the serial reader and the frame decoder.
// Data always hands the decoder a contiguous view: when the stored bytes
// wrap they are rotated back to the start of the ring first.
type FifoBuffer struct {
	buf   []byte
	lin   []byte // rotation scratch, allocated on first wrap
	start int    // index of the oldest byte
	count int
}

// NewFifoBuffer creates a FifoBuffer holding up to capacity bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns how much was taken
func (f *FifoBuffer) Write(data []byte) int {
	n := min(len(data), f.Free())
	end := (f.start + f.count) % len(f.buf)
	c := copy(f.buf[end:], data[:n])
	copy(f.buf, data[c:n])
	f.count += n
	return n
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	return f.count
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.count
}

// Data returns the stored bytes as one slice, valid until the next Write
func (f *FifoBuffer) Data() []byte {
	if f.start+f.count > len(f.buf) {
		f.rotate()
	}
	return f.buf[f.start : f.start+f.count]
}

func (f *FifoBuffer) rotate() {
	if f.lin == nil {
		f.lin = make([]byte, len(f.buf))
	}
	c := copy(f.lin, f.buf[f.start:])
	copy(f.lin[c:], f.buf[:f.count-c])
	copy(f.buf, f.lin[:f.count])
	f.start = 0
}

// Pop removes n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	n = min(n, f.count)
	f.count -= n
	if f.count == 0 {
		f.start = 0
		return
	}
	f.start = (f.start + n) % len(f.buf)
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.count == 0
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.start = 0
	f.count = 0
}
