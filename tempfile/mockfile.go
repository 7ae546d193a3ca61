package tempfile

import (
	"io"
	"os"

	bserrors "github.com/lanrat/blocksort/errors"
)

// MockFile provides an in-memory implementation of the File interface.
// It is useful for testing and for sorts small enough to skip the disk.
type MockFile struct {
	name   string
	data   []byte
	offset int64
	closed bool
}

// Mock creates an empty in-memory File. The parameter n sets the initial
// capacity of the underlying buffer.
func Mock(name string, n int) *MockFile {
	return &MockFile{name: name, data: make([]byte, 0, n)}
}

// Name returns the name given to Mock.
func (m *MockFile) Name() string {
	return m.name
}

// Bytes exposes the file contents.
func (m *MockFile) Bytes() []byte {
	return m.data
}

func (m *MockFile) Read(p []byte) (int, error) {
	if m.closed {
		return 0, os.ErrClosed
	}
	if m.offset >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.offset:])
	m.offset += int64(n)
	return n, nil
}

// ReadAt reads len(p) bytes at off without moving the offset.
func (m *MockFile) ReadAt(p []byte, off int64) (int, error) {
	if m.closed {
		return 0, os.ErrClosed
	}
	if off < 0 {
		return 0, bserrors.NewDiskError(os.ErrInvalid, "readat", m.name)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Write writes at the offset, growing the file as needed.
func (m *MockFile) Write(p []byte) (int, error) {
	if m.closed {
		return 0, os.ErrClosed
	}
	end := m.offset + int64(len(p))
	if end > int64(len(m.data)) {
		if end > int64(cap(m.data)) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.data)
			m.data = grown
		} else {
			m.data = m.data[:end]
		}
	}
	copy(m.data[m.offset:], p)
	m.offset = end
	return len(p), nil
}

func (m *MockFile) Seek(offset int64, whence int) (int64, error) {
	if m.closed {
		return 0, os.ErrClosed
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += m.offset
	case io.SeekEnd:
		offset += int64(len(m.data))
	default:
		return 0, bserrors.NewDiskError(os.ErrInvalid, "seek", m.name)
	}
	if offset < 0 {
		return 0, bserrors.NewDiskError(os.ErrInvalid, "seek", m.name)
	}
	m.offset = offset
	return offset, nil
}

// Truncate resizes the file, zero filling when it grows.
func (m *MockFile) Truncate(size int64) error {
	if m.closed {
		return os.ErrClosed
	}
	if size < 0 {
		return bserrors.NewDiskError(os.ErrInvalid, "truncate", m.name)
	}
	if size <= int64(len(m.data)) {
		m.data = m.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.data)
	m.data = grown
	return nil
}

func (m *MockFile) Size() (int64, error) {
	if m.closed {
		return 0, os.ErrClosed
	}
	return int64(len(m.data)), nil
}

// Close releases the memory. Further calls fail with os.ErrClosed.
func (m *MockFile) Close() error {
	if m.closed {
		return os.ErrClosed
	}
	m.closed = true
	m.data = nil
	return nil
}
