package chunk

// Buffer is a growable byte cursor. Reads advance a position that callers
// may save and restore, so a failed parse attempt consumes nothing.
type Buffer struct {
	data []byte
	pos  int
}

// Feed appends bytes to the end of the buffer.
func (b *Buffer) Feed(p []byte) {
	b.data = append(b.data, p...)
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.pos
}

// Pos returns the current read position.
func (b *Buffer) Pos() int {
	return b.pos
}

// SetPos rewinds (or advances) the read position.
func (b *Buffer) SetPos(pos int) {
	b.pos = pos
}

// ReadByte returns the next byte, or ErrNeedMore without consuming.
func (b *Buffer) ReadByte() (byte, error) {
	if b.Len() < 1 {
		return 0, ErrNeedMore
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}

// Read returns a copy of the next n bytes, or ErrNeedMore without consuming.
func (b *Buffer) Read(n int) ([]byte, error) {
	if b.Len() < n {
		return nil, ErrNeedMore
	}
	out := make([]byte, n)
	copy(out, b.data[b.pos:b.pos+n])
	b.pos += n
	return out, nil
}

// Compact drops consumed bytes so the backing array can be reused.
func (b *Buffer) Compact() {
	if b.pos == 0 {
		return
	}
	n := copy(b.data, b.data[b.pos:])
	b.data = b.data[:n]
	b.pos = 0
}
