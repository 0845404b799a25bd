// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package iomem provides memory-mapped register windows.
package iomem // import "github.com/ocores/ptc/internal/iomem"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("iomem: closed")
)

// Window is a memory-mapped view of a device register file.
// Offsets passed to ReadAt and WriteAt are relative to the
// physical base address the window was mapped at.
type Window struct {
	data []byte
}

// Map maps span bytes of the device file f, starting at the physical
// address base. base and span must respect the page granularity of the
// underlying device.
func Map(f *os.File, base int64, span int) (*Window, error) {
	data, err := unix.Mmap(
		int(f.Fd()),
		base, span,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("iomem: could not mmap %q [0x%x:+0x%x]: %w",
			f.Name(), base, span, err,
		)
	}
	if len(data) != span {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("iomem: invalid mmap'd data: %d", len(data))
	}
	return WindowFrom(data), nil
}

// WindowFrom wraps an already mapped byte slice.
func WindowFrom(data []byte) *Window {
	w := &Window{data: data}
	runtime.SetFinalizer(w, (*Window).Close)
	return w
}

// Close unmaps the window.
func (w *Window) Close() error {
	if w == nil {
		return os.ErrInvalid
	}
	if w.data == nil {
		return nil
	}

	runtime.SetFinalizer(w, nil)
	data := w.data
	w.data = nil
	return unix.Munmap(data)
}

// Len returns the length of the underlying memory-mapped window.
func (w *Window) Len() int {
	return len(w.data)
}

// region returns the window slice starting at off, after the usual
// validity checks. op tags the offset error.
func (w *Window) region(op string, off int64) ([]byte, error) {
	switch {
	case w == nil:
		return nil, os.ErrInvalid
	case w.data == nil:
		return nil, errClosed
	case off < 0 || int64(len(w.data)) < off:
		return nil, fmt.Errorf("iomem: invalid %s offset %d", op, off)
	}
	return w.data[off:], nil
}

// ReadAt implements the io.ReaderAt interface.
func (w *Window) ReadAt(p []byte, off int64) (int, error) {
	mem, err := w.region("ReadAt", off)
	if err != nil {
		return 0, err
	}
	n := copy(p, mem)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (w *Window) WriteAt(p []byte, off int64) (int, error) {
	mem, err := w.region("WriteAt", off)
	if err != nil {
		return 0, err
	}
	n := copy(mem, p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// ReadU32 reads the little-endian 32-bit register at off.
func (w *Window) ReadU32(off int64) (uint32, error) {
	mem, err := w.region("ReadU32", off)
	if err != nil {
		return 0, err
	}
	if len(mem) < 4 {
		return 0, fmt.Errorf("iomem: invalid ReadU32 offset %d", off)
	}
	return binary.LittleEndian.Uint32(mem), nil
}

// WriteU32 writes v to the little-endian 32-bit register at off.
func (w *Window) WriteU32(off int64, v uint32) error {
	mem, err := w.region("WriteU32", off)
	if err != nil {
		return err
	}
	if len(mem) < 4 {
		return fmt.Errorf("iomem: invalid WriteU32 offset %d", off)
	}
	binary.LittleEndian.PutUint32(mem, v)
	return nil
}

var (
	_ io.ReaderAt = (*Window)(nil)
	_ io.WriterAt = (*Window)(nil)
	_ io.Closer   = (*Window)(nil)
)
