//go:build unix || darwin || linux || freebsd || openbsd || netbsd

package alloc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// unixMapper backs Arena with an anonymous, zero-filled mmap region —
// adapted from the teacher's file-backed OpenMmapFile in
// pkg/pager/mmap_unix.go, minus the file descriptor: the arena needs
// page-granular address space from the kernel, not disk persistence.
type unixMapper struct{}

func (unixMapper) mapAnon(size uintptr) (unsafe.Pointer, error) {
	data, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(&data[0]), nil
}

func (unixMapper) unmapAnon(addr unsafe.Pointer, size uintptr) error {
	data := unsafe.Slice((*byte)(addr), size)
	return unix.Munmap(data)
}

// NewDefaultArena creates an mmap-backed Arena for T using this platform's
// native anonymous-mapping syscalls.
func NewDefaultArena[T any]() *Arena[T] {
	return NewArena[T](unixMapper{})
}
