package bytestream

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPushPop(t *testing.T) {
	assert := assert.New(t)

	b := New()
	assert.False(b.Available())

	assert.NoError(b.Push([]byte("world")))
	assert.NoError(b.PushBack([]byte("hello ")))
	assert.Equal("hello world", string(b.Bytes()))

	assert.NoError(b.PushByte('!'))
	assert.NoError(b.PushBackByte('>'))
	assert.Equal(">hello world!", string(b.Bytes()))

	assert.NoError(b.Pop(1))
	assert.NoError(b.PopBack(1))
	assert.Equal("hello world", string(b.Bytes()))
	assert.Equal(11, b.Size())

	// PushBack reuses the space freed by Pop.
	assert.NoError(b.Pop(6))
	assert.NoError(b.PushBack([]byte("hello ")))
	assert.Equal("hello world", string(b.Bytes()))

	assert.ErrorIs(b.Pop(12), ErrOutOfBound)
	assert.ErrorIs(b.PopBack(12), ErrOutOfBound)
	assert.Equal(11, b.Size())

	assert.NoError(b.Pop(11))
	assert.Equal(0, b.Size())
}

func TestBufferIndexOf(t *testing.T) {
	assert := assert.New(t)

	b := NewFrom([]byte("hello world"))

	assert.Equal(6, b.IndexOfPattern([]byte("world"), 0, NPos))
	assert.Equal(NPos, b.IndexOfPattern([]byte("xyz"), 0, NPos))
	assert.Equal(NPos, b.IndexOfPattern([]byte("world"), 0, 10))
	assert.Equal(NPos, b.IndexOfPattern([]byte("hello"), 1, NPos))

	assert.Equal(2, b.IndexOf('l', 0, NPos))
	assert.Equal(3, b.IndexOf('l', 3, NPos))
	assert.Equal(9, b.IndexOfBack('l', 0, NPos))
	assert.Equal(3, b.IndexOfBack('l', 0, 9))
	assert.Equal(NPos, b.IndexOf('z', 0, NPos))

	assert.Equal(7, b.IndexOfPatternBack([]byte("o"), 0, NPos))
	assert.Equal(4, b.IndexOfPatternBack([]byte("o"), 0, 7))

	assert.Equal(NPos, b.IndexOf('h', 20, NPos))
}

func TestBufferCompare(t *testing.T) {
	assert := assert.New(t)

	b := NewFrom([]byte("GET / HTTP/1.1"))
	assert.Equal(0, b.Compare([]byte("GET"), 0, NPos))
	assert.Equal(0, b.Compare([]byte("HTTP/"), 6, NPos))
	assert.NotEqual(0, b.Compare([]byte("POST"), 0, NPos))
	assert.NotEqual(0, b.Compare([]byte("HTTP/1.1"), 6, 10))
}

func TestBufferCopyPull(t *testing.T) {
	assert := assert.New(t)

	b := NewFrom([]byte("0123456789"))

	dst := make([]byte, 3)
	n, err := b.Copy(dst, 2)
	assert.NoError(err)
	assert.Equal(3, n)
	assert.Equal("234", string(dst))
	assert.Equal(10, b.Size())

	n, err = b.Pull(dst, 2)
	assert.NoError(err)
	assert.Equal(3, n)
	assert.Equal("234", string(dst))
	assert.Equal("0156789", string(b.Bytes()))

	n, err = b.PullBack(dst, 1)
	assert.NoError(err)
	assert.Equal(3, n)
	assert.Equal("678", string(dst))
	assert.Equal("0159", string(b.Bytes()))

	_, err = b.Copy(make([]byte, 5), 0)
	assert.ErrorIs(err, ErrOutOfBound)
	_, err = b.Pull(dst, 2)
	assert.ErrorIs(err, ErrOutOfBound)
	_, err = b.PullBack(dst, 2)
	assert.ErrorIs(err, ErrOutOfBound)
	assert.Equal("0159", string(b.Bytes()))
}

func TestBufferMoveErase(t *testing.T) {
	assert := assert.New(t)

	src := NewFrom([]byte("header|payload"))
	dst := NewFrom([]byte(">"))

	assert.NoError(src.Move(dst, 7, 7))
	assert.Equal("header|", string(src.Bytes()))
	assert.Equal(">payload", string(dst.Bytes()))

	assert.ErrorIs(src.Move(dst, 8, 0), ErrOutOfBound)

	assert.NoError(src.Erase(3, 3))
	assert.Equal("hea|", string(src.Bytes()))
	assert.ErrorIs(src.Erase(3, 2), ErrOutOfBound)

	limited := New()
	limited.SetLimit(2)
	assert.ErrorIs(src.Move(limited, 3, 0), ErrOutOfMemory)
	assert.Equal("hea|", string(src.Bytes()))
}

func TestBufferMoveToItself(t *testing.T) {
	b := NewFrom([]byte("xxabcdef"))
	require.NoError(t, b.Pop(2))

	require.NoError(t, b.Move(b, 3, 0))
	assert.Equal(t, "defabc", string(b.Bytes()))

	require.NoError(t, b.MoveAsync(b, 2, 1))
	assert.Equal(t, "dabcef", string(b.Bytes()))
}

func TestBufferResizeFlushClose(t *testing.T) {
	assert := assert.New(t)

	b := NewFrom([]byte("abcdef"))
	assert.NoError(b.Resize(3))
	assert.Equal("abc", string(b.Bytes()))

	assert.NoError(b.Resize(5))
	assert.Equal([]byte{'a', 'b', 'c', 0, 0}, b.Bytes())

	assert.ErrorIs(b.Resize(-1), ErrOutOfBound)

	b.Flush()
	assert.Equal(0, b.Size())

	assert.NoError(b.Push([]byte("x")))
	b.Close()
	assert.Equal(0, b.Size())
	assert.NoError(b.Push([]byte("y")))
	assert.Equal("y", string(b.Bytes()))
}

func TestBufferLimit(t *testing.T) {
	assert := assert.New(t)

	b := New()
	b.SetLimit(4)
	assert.NoError(b.Push([]byte("abcd")))
	assert.ErrorIs(b.PushByte('e'), ErrOutOfMemory)
	assert.ErrorIs(b.PushBack([]byte("z")), ErrOutOfMemory)
	assert.ErrorIs(b.Resize(5), ErrOutOfMemory)
	assert.Equal(StatusOutOfMemory, StatusOf(b.Push([]byte("e"))))
	assert.Equal("abcd", string(b.Bytes()))
}

func TestBufferPointer(t *testing.T) {
	b := NewFrom([]byte("abc"))
	assert.Equal(t, "bc", string(b.Pointer(1)))
	assert.Empty(t, b.Pointer(3))
	assert.Nil(t, b.Pointer(4))
}

func TestBufferUTF8(t *testing.T) {
	assert := assert.New(t)

	assert.True(NewFrom([]byte("héllo, 世界")).IsUTF8())
	assert.False(NewFrom([]byte{0xF0, 0x28, 0x8C, 0x28}).IsUTF8())
	assert.False(NewFrom([]byte{0xC0, 0xAF}).IsUTF8())       // overlong
	assert.False(NewFrom([]byte{0xED, 0xA0, 0x80}).IsUTF8()) // surrogate half

	b := NewFrom([]byte{'a', 0xFF, 'b'})
	assert.NoError(b.ToUTF8())
	assert.True(b.IsUTF8())
	assert.Equal("a�b", string(b.Bytes()))
}

func TestBufferIO(t *testing.T) {
	assert := assert.New(t)

	b := New()
	n, err := b.Write([]byte("stream"))
	assert.NoError(err)
	assert.Equal(6, n)

	p := make([]byte, 4)
	n, err = b.Read(p)
	assert.NoError(err)
	assert.Equal(4, n)
	assert.Equal("stre", string(p))

	out := &bytes.Buffer{}
	written, err := b.WriteTo(out)
	assert.NoError(err)
	assert.Equal(int64(2), written)
	assert.Equal("am", out.String())

	_, err = b.Read(p)
	assert.ErrorIs(err, io.EOF)
}

func TestBufferAsyncBusy(t *testing.T) {
	assert := assert.New(t)

	b := NewFrom([]byte("hello world"))
	b.SetPolicy(PolicyTry)

	b.mu.Lock()
	assert.ErrorIs(b.PushAsync([]byte("x")), ErrBusy)
	assert.Equal(StatusBusy, StatusOf(b.PopAsync(1)))
	assert.Equal(NPos, b.IndexOfPatternAsync([]byte("world"), 0, NPos))
	b.mu.Unlock()

	assert.Equal(6, b.IndexOfPatternAsync([]byte("world"), 0, NPos))
	assert.NoError(b.PushAsync([]byte("!")))
	assert.Equal(12, b.SizeAsync())
}

func TestBufferAsyncConcurrent(t *testing.T) {
	b := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.PushAsync([]byte("ab"))
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 8*100*2, b.SizeAsync())

	dst := New()
	require.NoError(t, b.MoveAsync(dst, 10, 0))
	require.Equal(t, 10, dst.Size())
}

func TestBufferMoveAsyncCrossed(t *testing.T) {
	a, b := New(), New()

	var wg sync.WaitGroup
	cross := func(src, dst *Buffer) {
		defer wg.Done()
		for i := 0; i < 20000; i++ {
			_ = src.PushAsync([]byte("ab"))
			_ = src.MoveAsync(dst, 1, 0)
		}
	}
	wg.Add(2)
	go cross(a, b)
	go cross(b, a)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("crossed moves deadlocked")
	}
	assert.Equal(t, 2*20000*2, a.SizeAsync()+b.SizeAsync())
}

func TestBufferIsUTF8Async(t *testing.T) {
	b := NewFrom([]byte("héllo"))
	b.SetPolicy(PolicyTry)

	ok, err := b.IsUTF8Async()
	assert.NoError(t, err)
	assert.True(t, ok)

	b.mu.Lock()
	_, err = b.IsUTF8Async()
	assert.ErrorIs(t, err, ErrBusy)
	b.mu.Unlock()
}

func TestStatusOf(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(StatusOK, StatusOf(nil))
	assert.Equal(StatusOutOfBound, StatusOf(ErrOutOfBound))
	assert.Equal(StatusError, StatusOf(io.ErrUnexpectedEOF))
	assert.Equal("out_of_bound", StatusOutOfBound.String())
}
