// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package keyfile

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// lockedBuffer holds secret bytes in an anonymous mapping that is
// locked into RAM and excluded from core dumps. It must not be copied.
type lockedBuffer struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

func newLockedBuffer(size int) (*lockedBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("keyfile: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("keyfile: mmap failed: %w", err)
	}
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("keyfile: mlock failed: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("keyfile: madvise(MADV_DONTDUMP) failed: %w", err)
	}
	return &lockedBuffer{data: data}, nil
}

// lockBytes copies source into a new locked buffer and zeroes source.
func lockBytes(source []byte) (*lockedBuffer, error) {
	buffer, err := newLockedBuffer(len(source))
	if err != nil {
		zero(source)
		return nil, err
	}
	copy(buffer.data, source)
	zero(source)
	return buffer, nil
}

// use calls fn with the buffer contents. fn must not retain the slice.
// Panics if the buffer has been closed.
func (b *lockedBuffer) use(fn func(data []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("keyfile: use of closed key buffer")
	}
	fn(b.data)
}

// Close zeroes, unlocks, and unmaps the buffer. It is idempotent.
func (b *lockedBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	zero(b.data)

	var firstError error
	if err := unix.Munlock(b.data); err != nil {
		firstError = fmt.Errorf("keyfile: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("keyfile: munmap failed: %w", err)
	}
	b.data = nil
	return firstError
}

func zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
