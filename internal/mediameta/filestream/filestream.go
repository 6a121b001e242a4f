// Package filestream implements the random-access file abstraction used by
// every mediameta container reader: seek/read/length plus the insert/remove
// primitives that splice tag regions in place without rewriting the whole
// file.
package filestream

import (
	"bytes"
	"io"
	"os"

	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
)

// Mode is the access-mode state machine: transitions are explicit, and
// out-of-state operations are programming errors.
type Mode int

const (
	Closed Mode = iota
	Read
	ReadWrite
)

// MinWriteWindow is the minimum windowed-copy buffer size the splice
// paths accept.
const MinWriteWindow = 1024

// Stream is a random-access handle bound to a single underlying file.
type Stream struct {
	f      *os.File
	mode   Mode
	length int64
	pos    int64
	window int
}

// Open opens path for reading (or read-write) and returns a Stream in the
// corresponding mode. writable selects open_read_write() vs open_read().
func Open(path string, writable bool) (*Stream, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, mmerr.IoFailuref("filestream: open %s: %v", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, mmerr.IoFailuref("filestream: stat %s: %v", path, err)
	}
	mode := Read
	if writable {
		mode = ReadWrite
	}
	return &Stream{f: f, mode: mode, length: info.Size(), window: 64 * 1024}, nil
}

// SetWriteWindow overrides the windowed-copy buffer size used by Insert. A
// value below MinWriteWindow is raised to MinWriteWindow.
func (s *Stream) SetWriteWindow(n int) {
	if n < MinWriteWindow {
		n = MinWriteWindow
	}
	s.window = n
}

// Mode returns the current access mode.
func (s *Stream) Mode() Mode { return s.mode }

// Length returns the total file length.
func (s *Stream) Length() int64 { return s.length }

// Tell returns the current offset.
func (s *Stream) Tell() int64 { return s.pos }

// Seek moves the current offset. Seeking beyond the end is permitted;
// subsequent reads then return an empty slice.
func (s *Stream) Seek(pos int64) error {
	if s.mode == Closed {
		return mmerr.IoFailuref("filestream: seek on closed stream")
	}
	if pos < 0 {
		pos = 0
	}
	s.pos = pos
	return nil
}

// ReadBlock returns up to n bytes starting at the current offset, advancing
// it by the number of bytes actually read. It may short-read at EOF and
// returns an empty (not nil) slice past EOF rather than an error.
func (s *Stream) ReadBlock(n int) ([]byte, error) {
	if s.mode == Closed {
		return nil, mmerr.IoFailuref("filestream: read on closed stream")
	}
	if n <= 0 || s.pos >= s.length {
		return []byte{}, nil
	}
	if int64(n) > s.length-s.pos {
		n = int(s.length - s.pos)
	}
	buf := make([]byte, n)
	read, err := s.f.ReadAt(buf, s.pos)
	if err != nil && err != io.EOF {
		return nil, mmerr.IoFailuref("filestream: read: %v", err)
	}
	s.pos += int64(read)
	return buf[:read], nil
}

// ReadAt reads n bytes at the given absolute offset, or returns a short
// slice at EOF. It does not affect the current offset.
func (s *Stream) ReadAt(offset int64, n int) ([]byte, error) {
	if s.mode == Closed {
		return nil, mmerr.IoFailuref("filestream: read on closed stream")
	}
	if offset >= s.length || n <= 0 {
		return []byte{}, nil
	}
	if int64(n) > s.length-offset {
		n = int(s.length - offset)
	}
	buf := make([]byte, n)
	read, err := s.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, mmerr.IoFailuref("filestream: read at %d: %v", offset, err)
	}
	return buf[:read], nil
}

// Find performs a linear forward search for pattern starting at from. If
// before is non-nil, the search aborts (returning -1) at the first
// occurrence of before strictly preceding any match of pattern.
func (s *Stream) Find(pattern []byte, from int64, before []byte) (int64, error) {
	if s.mode == Closed {
		return -1, mmerr.IoFailuref("filestream: find on closed stream")
	}
	chunk := int64(32 * 1024)
	overlap := int64(len(pattern) - 1)
	if overlap < 0 {
		overlap = 0
	}
	pos := from
	for pos < s.length {
		readLen := chunk
		if pos+readLen > s.length {
			readLen = s.length - pos
		}
		buf, err := s.ReadAt(pos, int(readLen))
		if err != nil {
			return -1, err
		}
		if before != nil {
			if idx := bytes.Index(buf, before); idx >= 0 {
				if pidx := bytes.Index(buf[:idx], pattern); pidx >= 0 {
					return pos + int64(pidx), nil
				}
				return -1, nil
			}
		}
		if idx := bytes.Index(buf, pattern); idx >= 0 {
			return pos + int64(idx), nil
		}
		if len(buf) < int(readLen) || pos+readLen >= s.length {
			break
		}
		pos += readLen - overlap
	}
	return -1, nil
}

// Rfind is the time-reversed analog of Find: it searches backward from from
// (a length, not an offset into found data) for the last occurrence of
// pattern. If after is non-nil, the search aborts at the first
// (scanning backward) occurrence of after following any match.
func (s *Stream) Rfind(pattern []byte, from int64, after []byte) (int64, error) {
	if s.mode == Closed {
		return -1, mmerr.IoFailuref("filestream: rfind on closed stream")
	}
	if from > s.length {
		from = s.length
	}
	chunk := int64(32 * 1024)
	overlap := int64(len(pattern) - 1)
	if overlap < 0 {
		overlap = 0
	}
	pos := from
	for pos > 0 {
		readLen := chunk
		start := pos - readLen
		if start < 0 {
			start = 0
			readLen = pos
		}
		buf, err := s.ReadAt(start, int(readLen))
		if err != nil {
			return -1, err
		}
		if after != nil {
			if idx := bytes.LastIndex(buf, after); idx >= 0 {
				if pidx := bytes.LastIndex(buf[idx+len(after):], pattern); pidx >= 0 {
					return start + int64(idx) + int64(len(after)) + int64(pidx), nil
				}
				return -1, nil
			}
		}
		if idx := bytes.LastIndex(buf, pattern); idx >= 0 {
			return start + int64(idx), nil
		}
		if start == 0 {
			break
		}
		pos = start + overlap
	}
	return -1, nil
}

// Insert atomically replaces [at, at+replaceLength) with data. The tail
// [at+replaceLength, length) is shifted by len(data)-replaceLength bytes;
// bytes outside [at, at+replaceLength) are preserved exactly.
func (s *Stream) Insert(data []byte, at int64, replaceLength int64) error {
	if s.mode != ReadWrite {
		return mmerr.IoFailuref("filestream: insert requires ReadWrite mode")
	}
	if at < 0 || replaceLength < 0 || at+replaceLength > s.length {
		return mmerr.IoFailuref("filestream: insert range [%d,%d) out of bounds (len %d)", at, at+replaceLength, s.length)
	}
	delta := int64(len(data)) - replaceLength
	switch {
	case delta == 0:
		if _, err := s.f.WriteAt(data, at); err != nil {
			return mmerr.IoFailuref("filestream: insert overwrite: %v", err)
		}
	case delta > 0:
		if err := s.growAndShiftTailBack(at, replaceLength, delta); err != nil {
			return err
		}
		if _, err := s.f.WriteAt(data, at); err != nil {
			return mmerr.IoFailuref("filestream: insert write: %v", err)
		}
		s.length += delta
	default:
		if err := s.shiftTailForwardAndShrink(at, replaceLength, -delta); err != nil {
			return err
		}
		if _, err := s.f.WriteAt(data, at); err != nil {
			return mmerr.IoFailuref("filestream: insert write: %v", err)
		}
		s.length += delta
	}
	return nil
}

// Remove deletes length bytes starting at at, shifting the tail backward.
func (s *Stream) Remove(at, length int64) error {
	return s.Insert(nil, at, length)
}

// growAndShiftTailBack extends the file by delta bytes, then copies the
// original tail [at+replaceLength, length) to its new position
// [at+replaceLength+delta, length+delta), walking backward in windows so
// source and destination never overlap destructively.
func (s *Stream) growAndShiftTailBack(at, replaceLength, delta int64) error {
	oldTailStart := at + replaceLength
	tailLen := s.length - oldTailStart
	newLength := s.length + delta
	if err := s.f.Truncate(newLength); err != nil {
		return mmerr.IoFailuref("filestream: truncate grow: %v", err)
	}
	window := int64(s.window)
	if window < MinWriteWindow {
		window = MinWriteWindow
	}
	for remaining := tailLen; remaining > 0; {
		n := window
		if n > remaining {
			n = remaining
		}
		srcOff := oldTailStart + remaining - n
		dstOff := srcOff + delta
		buf, err := s.ReadAt(srcOff, int(n))
		if err != nil {
			return err
		}
		if _, err := s.f.WriteAt(buf, dstOff); err != nil {
			return mmerr.IoFailuref("filestream: shift-back write: %v", err)
		}
		remaining -= n
	}
	return nil
}

// shiftTailForwardAndShrink copies the tail [at+replaceLength, length)
// forward to [at+shrink complement..] effectively closing the gap, then
// truncates the file by delta bytes.
func (s *Stream) shiftTailForwardAndShrink(at, replaceLength, delta int64) error {
	oldTailStart := at + replaceLength
	tailLen := s.length - oldTailStart
	window := int64(s.window)
	if window < MinWriteWindow {
		window = MinWriteWindow
	}
	var copied int64
	for copied < tailLen {
		n := window
		if n > tailLen-copied {
			n = tailLen - copied
		}
		srcOff := oldTailStart + copied
		dstOff := srcOff - delta
		buf, err := s.ReadAt(srcOff, int(n))
		if err != nil {
			return err
		}
		if _, err := s.f.WriteAt(buf, dstOff); err != nil {
			return mmerr.IoFailuref("filestream: shift-forward write: %v", err)
		}
		copied += n
	}
	newLength := s.length - delta
	if err := s.f.Truncate(newLength); err != nil {
		return mmerr.IoFailuref("filestream: truncate shrink: %v", err)
	}
	return nil
}

// Close releases the underlying OS file handle and transitions to Closed.
// It always runs, even if a prior operation failed, so that scoped
// acquisition guarantees release on all exit paths.
func (s *Stream) Close() error {
	if s.mode == Closed {
		return nil
	}
	s.mode = Closed
	if err := s.f.Close(); err != nil {
		return mmerr.IoFailuref("filestream: close: %v", err)
	}
	return nil
}
