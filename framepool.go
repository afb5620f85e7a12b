package uvlink

// replyFrameSize covers the answer to every command except a Save with
// "Data", whose geometry arrays are read into a buffer of their own.
const replyFrameSize = 4 * 1024

// framePool lends receive buffers for command replies. Buffers are
// allocated on first use and at most count of them are kept.
type framePool struct {
	free chan []byte
}

func newFramePool(count int) *framePool {
	return &framePool{free: make(chan []byte, count)}
}

// borrow returns a buffer of exactly n bytes. When pooled is false the
// frame was too large for the pool and the caller keeps the buffer.
func (fp *framePool) borrow(n int) (buf []byte, pooled bool) {
	if n > replyFrameSize {
		return make([]byte, n), false
	}
	select {
	case buf = <-fp.free:
	default:
		buf = make([]byte, replyFrameSize)
	}
	return buf[:n], true
}

// giveBack returns a pooled buffer. It is dropped when the pool is full.
func (fp *framePool) giveBack(buf []byte) {
	select {
	case fp.free <- buf[:replyFrameSize]:
	default:
	}
}
