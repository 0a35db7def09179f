package bytestream

import "unsafe"

func (b *Buffer) acquire() bool {
	if b.policy == PolicyTry {
		return b.mu.TryLock()
	}
	b.mu.Lock()
	return true
}

func (b *Buffer) PushAsync(p []byte) error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.mu.Unlock()
	return b.Push(p)
}

func (b *Buffer) PushByteAsync(c byte) error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.mu.Unlock()
	return b.PushByte(c)
}

func (b *Buffer) PushBackAsync(p []byte) error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.mu.Unlock()
	return b.PushBack(p)
}

func (b *Buffer) PushBackByteAsync(c byte) error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.mu.Unlock()
	return b.PushBackByte(c)
}

func (b *Buffer) PopAsync(n int) error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.mu.Unlock()
	return b.Pop(n)
}

func (b *Buffer) PopBackAsync(n int) error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.mu.Unlock()
	return b.PopBack(n)
}

func (b *Buffer) CopyAsync(dst []byte, offset int) (int, error) {
	if !b.acquire() {
		return 0, ErrBusy
	}
	defer b.mu.Unlock()
	return b.Copy(dst, offset)
}

func (b *Buffer) PullAsync(dst []byte, offset int) (int, error) {
	if !b.acquire() {
		return 0, ErrBusy
	}
	defer b.mu.Unlock()
	return b.Pull(dst, offset)
}

func (b *Buffer) PullBackAsync(dst []byte, offset int) (int, error) {
	if !b.acquire() {
		return 0, ErrBusy
	}
	defer b.mu.Unlock()
	return b.PullBack(dst, offset)
}

// MoveAsync locks both buffers, lower address first, so crossed moves between two buffers cannot deadlock.
func (b *Buffer) MoveAsync(dst *Buffer, size, offset int) error {
	if dst == b {
		if !b.acquire() {
			return ErrBusy
		}
		defer b.mu.Unlock()
		return b.Move(dst, size, offset)
	}

	first, second := b, dst
	if uintptr(unsafe.Pointer(dst)) < uintptr(unsafe.Pointer(b)) {
		first, second = dst, b
	}
	if !first.acquire() {
		return ErrBusy
	}
	defer first.mu.Unlock()
	if !second.acquire() {
		return ErrBusy
	}
	defer second.mu.Unlock()
	return b.Move(dst, size, offset)
}

func (b *Buffer) EraseAsync(start, size int) error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.mu.Unlock()
	return b.Erase(start, size)
}

func (b *Buffer) FlushAsync() error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.mu.Unlock()
	b.Flush()
	return nil
}

func (b *Buffer) ResizeAsync(n int) error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.mu.Unlock()
	return b.Resize(n)
}

// CompareAsync returns -1 when the lock could not be taken.
func (b *Buffer) CompareAsync(pattern []byte, offset, end int) int {
	if !b.acquire() {
		return -1
	}
	defer b.mu.Unlock()
	return b.Compare(pattern, offset, end)
}

func (b *Buffer) IndexOfAsync(c byte, offset, end int) int {
	if !b.acquire() {
		return NPos
	}
	defer b.mu.Unlock()
	return b.IndexOf(c, offset, end)
}

func (b *Buffer) IndexOfPatternAsync(p []byte, offset, end int) int {
	if !b.acquire() {
		return NPos
	}
	defer b.mu.Unlock()
	return b.IndexOfPattern(p, offset, end)
}

func (b *Buffer) IndexOfBackAsync(c byte, offset, end int) int {
	if !b.acquire() {
		return NPos
	}
	defer b.mu.Unlock()
	return b.IndexOfBack(c, offset, end)
}

func (b *Buffer) IndexOfPatternBackAsync(p []byte, offset, end int) int {
	if !b.acquire() {
		return NPos
	}
	defer b.mu.Unlock()
	return b.IndexOfPatternBack(p, offset, end)
}

// SizeAsync returns NPos when the lock could not be taken.
func (b *Buffer) SizeAsync() int {
	if !b.acquire() {
		return NPos
	}
	defer b.mu.Unlock()
	return b.Size()
}

// IsUTF8Async returns ErrBusy when the lock could not be taken.
func (b *Buffer) IsUTF8Async() (bool, error) {
	if !b.acquire() {
		return false, ErrBusy
	}
	defer b.mu.Unlock()
	return b.IsUTF8(), nil
}

func (b *Buffer) ToUTF8Async() error {
	if !b.acquire() {
		return ErrBusy
	}
	defer b.mu.Unlock()
	return b.ToUTF8()
}
