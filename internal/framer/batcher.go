package framer

import "github.com/loykin/mlexec/internal/sink"

// Batcher groups records and hands a full group to emit. Each emitted
// slice is owned by the receiver.
type Batcher struct {
	size int
	buf  []sink.Record
	emit func([]sink.Record)
}

func NewBatcher(size int, emit func([]sink.Record)) *Batcher {
	if size <= 0 {
		size = 1
	}
	return &Batcher{size: size, emit: emit, buf: make([]sink.Record, 0, size)}
}

func (b *Batcher) Add(r sink.Record) {
	b.buf = append(b.buf, r)
	if len(b.buf) >= b.size {
		b.Flush()
	}
}

// Flush emits buffered records, if any.
func (b *Batcher) Flush() {
	if len(b.buf) == 0 {
		return
	}
	out := b.buf
	b.buf = make([]sink.Record, 0, b.size)
	b.emit(out)
}

func (b *Batcher) Len() int { return len(b.buf) }
