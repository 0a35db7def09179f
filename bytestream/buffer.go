package bytestream

import (
	"bytes"
	"io"
	"sync"

	"github.com/Mylifeismyhome/wsio/util"
)

// NPos is returned by the search operations when nothing is found.
const NPos = -1

// Policy decides what the Async operations do when the buffer lock is held.
type Policy uint8

const (
	// PolicyWait blocks until the lock is released.
	PolicyWait Policy = iota

	// PolicyTry fails fast with ErrBusy.
	PolicyTry
)

// Buffer is a growable byte container addressed by offsets relative to its logical begin.
//
// Bytes can be added or removed at both ends, read at arbitrary offsets and searched for single values or
// patterns. Plain methods assume exclusive access. Every mutating or searching method has an Async twin that
// holds the buffer's lock for the duration of the call; callers sharing a Buffer between goroutines must use
// the Async family throughout.
type Buffer struct {
	ri   int // logical begin inside data
	data []byte

	limit  int // 0 means unbounded
	policy Policy
	mu     sync.Mutex
}

var (
	_ io.Reader     = &Buffer{}
	_ io.Writer     = &Buffer{}
	_ io.ByteWriter = &Buffer{}
	_ io.WriterTo   = &Buffer{}
)

func New() *Buffer {
	return &Buffer{data: make([]byte, 0, 512)}
}

// NewFrom returns a Buffer holding a copy of p.
func NewFrom(p []byte) *Buffer {
	b := &Buffer{data: make([]byte, 0, len(p))}
	b.data = append(b.data, p...)
	return b
}

// SetLimit caps the number of bytes the buffer may hold. Growth past the limit fails with ErrOutOfMemory.
func (b *Buffer) SetLimit(n int) {
	if n < 0 {
		n = 0
	}
	b.limit = n
}

func (b *Buffer) Limit() int {
	return b.limit
}

// SetPolicy must be called before the buffer is shared.
func (b *Buffer) SetPolicy(p Policy) {
	b.policy = p
}

func (b *Buffer) Size() int {
	return len(b.data) - b.ri
}

// Bytes returns the retrievable bytes. The slice aliases the buffer and is valid until the next mutation.
func (b *Buffer) Bytes() []byte {
	return b.data[b.ri:]
}

// Pointer returns the bytes starting at offset, or nil if offset is out of bound.
func (b *Buffer) Pointer(offset int) []byte {
	if offset < 0 || offset > b.Size() {
		return nil
	}
	return b.data[b.ri+offset:]
}

// Available reports whether there is anything to read.
func (b *Buffer) Available() bool {
	return b.Size() > 0
}

func (b *Buffer) reserve(n int) error {
	if b.limit > 0 && b.Size()+n > b.limit {
		return ErrOutOfMemory
	}
	if b.ri > 0 && len(b.data)+n > cap(b.data) {
		b.compact()
	}
	return nil
}

func (b *Buffer) compact() {
	n := copy(b.data, b.data[b.ri:])
	b.data = b.data[:n]
	b.ri = 0
}

func (b *Buffer) checkRange(offset, size int) error {
	if offset < 0 || size < 0 || offset+size > b.Size() {
		return ErrOutOfBound
	}
	return nil
}

// Push appends p at the logical end.
func (b *Buffer) Push(p []byte) error {
	if err := b.reserve(len(p)); err != nil {
		return err
	}
	b.data = append(b.data, p...)
	return nil
}

func (b *Buffer) PushByte(c byte) error {
	if err := b.reserve(1); err != nil {
		return err
	}
	b.data = append(b.data, c)
	return nil
}

// PushBack inserts p before the logical begin.
func (b *Buffer) PushBack(p []byte) error {
	if b.limit > 0 && b.Size()+len(p) > b.limit {
		return ErrOutOfMemory
	}
	if len(p) <= b.ri {
		b.ri -= len(p)
		copy(b.data[b.ri:], p)
		return nil
	}
	b.compact()
	b.data = util.InsertSlice(b.data, 0, p...)
	return nil
}

func (b *Buffer) PushBackByte(c byte) error {
	return b.PushBack([]byte{c})
}

// Pop removes n bytes from the front.
func (b *Buffer) Pop(n int) error {
	if err := b.checkRange(0, n); err != nil {
		return err
	}
	b.ri += n
	if b.ri == len(b.data) {
		b.data = b.data[:0]
		b.ri = 0
	}
	return nil
}

// PopBack removes n bytes from the end.
func (b *Buffer) PopBack(n int) error {
	if err := b.checkRange(0, n); err != nil {
		return err
	}
	b.data = b.data[:len(b.data)-n]
	if b.ri == len(b.data) {
		b.data = b.data[:0]
		b.ri = 0
	}
	return nil
}

// Copy reads len(dst) bytes starting at offset without removing them.
func (b *Buffer) Copy(dst []byte, offset int) (int, error) {
	if err := b.checkRange(offset, len(dst)); err != nil {
		return 0, err
	}
	return copy(dst, b.data[b.ri+offset:]), nil
}

// Pull copies len(dst) bytes starting at offset into dst and removes them.
func (b *Buffer) Pull(dst []byte, offset int) (int, error) {
	n, err := b.Copy(dst, offset)
	if err != nil {
		return 0, err
	}
	return n, b.Erase(offset, n)
}

// PullBack is Pull with offset counted backwards from the logical end.
func (b *Buffer) PullBack(dst []byte, offset int) (int, error) {
	if offset < 0 || offset+len(dst) > b.Size() {
		return 0, ErrOutOfBound
	}
	return b.Pull(dst, b.Size()-offset-len(dst))
}

// Move transfers [offset, offset+size) to the end of dst. Nothing is removed if dst cannot take the bytes.
func (b *Buffer) Move(dst *Buffer, size, offset int) error {
	if err := b.checkRange(offset, size); err != nil {
		return err
	}
	p := b.data[b.ri+offset : b.ri+offset+size]
	if dst == b {
		// Push may compact the storage p points into.
		p = bytes.Clone(p)
	}
	if err := dst.Push(p); err != nil {
		return err
	}
	return b.Erase(offset, size)
}

// Erase removes [start, start+size).
func (b *Buffer) Erase(start, size int) error {
	if err := b.checkRange(start, size); err != nil {
		return err
	}
	if start == 0 {
		return b.Pop(size)
	}
	i := b.ri + start
	n := copy(b.data[i:], b.data[i+size:])
	b.data = b.data[:i+n]
	return nil
}

// Flush drops every byte but keeps the storage.
func (b *Buffer) Flush() {
	b.data = b.data[:0]
	b.ri = 0
}

// Resize truncates the buffer or extends it with zero bytes.
func (b *Buffer) Resize(n int) error {
	if n < 0 {
		return ErrOutOfBound
	}
	size := b.Size()
	if n <= size {
		b.data = b.data[:b.ri+n]
		return nil
	}
	if err := b.reserve(n - size); err != nil {
		return err
	}
	old := len(b.data)
	b.data = util.ExtendSlice(b.data, b.ri+n)
	clear(b.data[old:])
	return nil
}

// Close releases the underlying storage.
func (b *Buffer) Close() {
	b.data = nil
	b.ri = 0
}

// Compare compares the bytes at offset against pattern, looking no further than end.
// The result is 0 if pattern starts at offset, otherwise -1 or +1 in lexicographic order.
func (b *Buffer) Compare(pattern []byte, offset, end int) int {
	region := b.region(offset, end)
	if region == nil {
		return -1
	}
	if len(region) > len(pattern) {
		region = region[:len(pattern)]
	}
	return bytes.Compare(region, pattern)
}

func (b *Buffer) region(offset, end int) []byte {
	size := b.Size()
	if end == NPos || end > size {
		end = size
	}
	if offset < 0 || offset > end {
		return nil
	}
	return b.data[b.ri+offset : b.ri+end]
}

// IndexOf returns the first index of c in [offset, end), or NPos. An end of NPos searches to the end.
func (b *Buffer) IndexOf(c byte, offset, end int) int {
	region := b.region(offset, end)
	if i := bytes.IndexByte(region, c); i >= 0 {
		return offset + i
	}
	return NPos
}

func (b *Buffer) IndexOfPattern(p []byte, offset, end int) int {
	region := b.region(offset, end)
	if len(p) == 0 || region == nil {
		return NPos
	}
	if i := bytes.Index(region, p); i >= 0 {
		return offset + i
	}
	return NPos
}

// IndexOfBack returns the last index of c in [offset, end), or NPos.
func (b *Buffer) IndexOfBack(c byte, offset, end int) int {
	region := b.region(offset, end)
	if i := bytes.LastIndexByte(region, c); i >= 0 {
		return offset + i
	}
	return NPos
}

func (b *Buffer) IndexOfPatternBack(p []byte, offset, end int) int {
	region := b.region(offset, end)
	if len(p) == 0 || region == nil {
		return NPos
	}
	if i := bytes.LastIndex(region, p); i >= 0 {
		return offset + i
	}
	return NPos
}

// Read drains up to len(dst) bytes from the front.
func (b *Buffer) Read(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if b.Size() == 0 {
		return 0, io.EOF
	}
	n := copy(dst, b.Bytes())
	return n, b.Pop(n)
}

func (b *Buffer) Write(p []byte) (int, error) {
	if err := b.Push(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (b *Buffer) WriteByte(c byte) error {
	return b.PushByte(c)
}

// WriteTo drains the buffer into w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Bytes())
	if n > 0 {
		_ = b.Pop(n)
	}
	return int64(n), err
}
