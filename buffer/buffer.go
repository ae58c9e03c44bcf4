// Buffer raw link data.
//
// Bytes arriving from the FPGA link are accumulated in a Queue for the
// duration of a capture and then drained, oldest first, by the frame
// decoder.  The queue is the only thing the decoder knows about the
// byte source, so captures can be replayed from files or test buffers
// without any hardware attached.
package buffer

import (
	"io"
)

// compactAt is how many consumed bytes we tolerate at the head of the
// queue before sliding the unread tail back to the start.
const compactAt = 64 * 1024

// A Queue is a FIFO of bytes.  Writes append at the tail and ReadByte
// pops from the head.  The zero value is an empty queue ready to use.
// A Queue is not safe for concurrent use.
type Queue struct {
	buf  []byte // queued bytes; buf[head:] are unread
	head int    // index of next byte to be read
	in   uint64 // total bytes written since last Reset
}

// NewQueue returns a queue holding a copy of b.
func NewQueue(b []byte) *Queue {
	q := &Queue{}
	q.Write(b)
	return q
}

// Write appends p to the tail of the queue.  It never fails.
func (q *Queue) Write(p []byte) (n int, err error) {
	if q.head >= compactAt && q.head*2 >= len(q.buf) {
		q.buf = append(q.buf[:0], q.buf[q.head:]...)
		q.head = 0
	}
	q.buf = append(q.buf, p...)
	q.in += uint64(len(p))
	return len(p), nil
}

// ReadByte pops the oldest byte, or returns io.EOF if the queue is empty.
func (q *Queue) ReadByte() (byte, error) {
	if q.head >= len(q.buf) {
		return 0, io.EOF
	}
	b := q.buf[q.head]
	q.head++
	return b, nil
}

// Len is the number of unread bytes.
func (q *Queue) Len() int {
	return len(q.buf) - q.head
}

// Total is the number of bytes written since the queue was created or
// last Reset, including those already read.
func (q *Queue) Total() uint64 {
	return q.in
}

// Bytes returns the unread bytes without consuming them.  The slice
// aliases the queue's storage and is only valid until the next Write.
func (q *Queue) Bytes() []byte {
	return q.buf[q.head:]
}

// Reset empties the queue, keeping its storage.
func (q *Queue) Reset() {
	q.buf = q.buf[:0]
	q.head = 0
	q.in = 0
}
