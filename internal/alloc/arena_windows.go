//go:build windows

package alloc

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsMapper backs Arena with an anonymous VirtualAlloc region —
// adapted from the teacher's pkg/pager/mmap_windows.go, which maps a
// file-backed view; the arena instead reserves and commits private,
// zero-filled address space directly, with no backing file.
type windowsMapper struct{}

func (windowsMapper) mapAnon(size uintptr) (unsafe.Pointer, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(addr), nil
}

func (windowsMapper) unmapAnon(addr unsafe.Pointer, _ uintptr) error {
	return windows.VirtualFree(uintptr(addr), 0, windows.MEM_RELEASE)
}

// NewDefaultArena creates an mmap-backed Arena for T using this platform's
// native anonymous-mapping syscalls.
func NewDefaultArena[T any]() *Arena[T] {
	return NewArena[T](windowsMapper{})
}
