// Package bytebuffer implements an ordered, appendable, slice-able byte
// sequence with big/little-endian numeric codecs and string codec
// conversion (Latin-1, UTF-8, UTF-16 with BOM, UTF-16BE, bare UTF-16LE).
package bytebuffer

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
)

// Buffer is an ordered sequence of bytes. The zero value is an empty buffer.
type Buffer struct {
	data []byte
}

// New wraps an existing byte slice without copying it.
func New(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Len returns the number of bytes held.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the underlying slice. Callers must not mutate it unless they
// own the buffer exclusively.
func (b *Buffer) Bytes() []byte { return b.data }

// Append adds more bytes to the end of the buffer.
func (b *Buffer) Append(data ...byte) {
	b.data = append(b.data, data...)
}

// Concat appends another buffer's contents.
func (b *Buffer) Concat(other *Buffer) {
	b.data = append(b.data, other.data...)
}

// At returns the byte at offset, or an error if out of range.
func (b *Buffer) At(offset int) (byte, error) {
	if offset < 0 || offset >= len(b.data) {
		return 0, mmerr.Truncatedf("bytebuffer: offset %d out of range (len %d)", offset, len(b.data))
	}
	return b.data[offset], nil
}

// Mid returns a slice view of count bytes starting at offset.
func (b *Buffer) Mid(offset, count int) (*Buffer, error) {
	if offset < 0 || count < 0 || offset+count > len(b.data) {
		return nil, mmerr.Truncatedf("bytebuffer: mid(%d,%d) out of range (len %d)", offset, count, len(b.data))
	}
	return &Buffer{data: b.data[offset : offset+count]}, nil
}

// StartsWith reports whether the buffer begins with prefix.
func (b *Buffer) StartsWith(prefix []byte) bool {
	return bytes.HasPrefix(b.data, prefix)
}

// ContainsAt reports whether prefix occurs at offset.
func (b *Buffer) ContainsAt(prefix []byte, offset int) bool {
	if offset < 0 || offset+len(prefix) > len(b.data) {
		return false
	}
	return bytes.Equal(b.data[offset:offset+len(prefix)], prefix)
}

// Find returns the first offset at or after from where pattern occurs, or -1.
func (b *Buffer) Find(pattern []byte, from int) int {
	if from < 0 {
		from = 0
	}
	if from >= len(b.data) {
		return -1
	}
	idx := bytes.Index(b.data[from:], pattern)
	if idx < 0 {
		return -1
	}
	return idx + from
}

// Endian selects byte order for fixed-width integer codecs.
type Endian int

const (
	BigEndian Endian = iota
	LittleEndian
)

func order(e Endian) binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Uint16 reads a 2-byte unsigned integer at offset.
func (b *Buffer) Uint16(offset int, e Endian) (uint16, error) {
	m, err := b.Mid(offset, 2)
	if err != nil {
		return 0, err
	}
	return order(e).Uint16(m.data), nil
}

// Uint24 reads a 3-byte unsigned integer at offset.
func (b *Buffer) Uint24(offset int, e Endian) (uint32, error) {
	m, err := b.Mid(offset, 3)
	if err != nil {
		return 0, err
	}
	if e == LittleEndian {
		return uint32(m.data[0]) | uint32(m.data[1])<<8 | uint32(m.data[2])<<16, nil
	}
	return uint32(m.data[2]) | uint32(m.data[1])<<8 | uint32(m.data[0])<<16, nil
}

// Uint32 reads a 4-byte unsigned integer at offset.
func (b *Buffer) Uint32(offset int, e Endian) (uint32, error) {
	m, err := b.Mid(offset, 4)
	if err != nil {
		return 0, err
	}
	return order(e).Uint32(m.data), nil
}

// Uint64 reads an 8-byte unsigned integer at offset.
func (b *Buffer) Uint64(offset int, e Endian) (uint64, error) {
	m, err := b.Mid(offset, 8)
	if err != nil {
		return 0, err
	}
	return order(e).Uint64(m.data), nil
}

// Int16/Int32/Int64: signed counterparts, reusing the unsigned readers.

func (b *Buffer) Int16(offset int, e Endian) (int16, error) {
	v, err := b.Uint16(offset, e)
	return int16(v), err
}

func (b *Buffer) Int32(offset int, e Endian) (int32, error) {
	v, err := b.Uint32(offset, e)
	return int32(v), err
}

func (b *Buffer) Int64(offset int, e Endian) (int64, error) {
	v, err := b.Uint64(offset, e)
	return int64(v), err
}

// PutUint16 appends a 2-byte unsigned integer.
func PutUint16(buf *Buffer, v uint16, e Endian) {
	var tmp [2]byte
	order(e).PutUint16(tmp[:], v)
	buf.Append(tmp[:]...)
}

// PutUint24 appends a 3-byte unsigned integer.
func PutUint24(buf *Buffer, v uint32, e Endian) {
	if e == LittleEndian {
		buf.Append(byte(v), byte(v>>8), byte(v>>16))
		return
	}
	buf.Append(byte(v>>16), byte(v>>8), byte(v))
}

// PutUint32 appends a 4-byte unsigned integer.
func PutUint32(buf *Buffer, v uint32, e Endian) {
	var tmp [4]byte
	order(e).PutUint32(tmp[:], v)
	buf.Append(tmp[:]...)
}

// PutUint64 appends an 8-byte unsigned integer.
func PutUint64(buf *Buffer, v uint64, e Endian) {
	var tmp [8]byte
	order(e).PutUint64(tmp[:], v)
	buf.Append(tmp[:]...)
}

// Synchsafe32 decodes a synchsafe 32-bit integer (ID3v2 sizing): four 7-bit
// groups packed big-endian.
func Synchsafe32(data []byte) (uint32, error) {
	if len(data) < 4 {
		return 0, mmerr.Truncatedf("bytebuffer: synchsafe32 needs 4 bytes, got %d", len(data))
	}
	for _, b := range data[:4] {
		if b&0x80 != 0 {
			return 0, mmerr.CorruptFilef("bytebuffer: synchsafe32 byte %#x has high bit set", b)
		}
	}
	return uint32(data[0])<<21 | uint32(data[1])<<14 | uint32(data[2])<<7 | uint32(data[3]), nil
}

// PutSynchsafe32 appends a synchsafe-encoded 32-bit integer. Values above
// 2^28-1 cannot be represented and are clamped to the maximum.
func PutSynchsafe32(buf *Buffer, v uint32) {
	const max = 1<<28 - 1
	if v > max {
		v = max
	}
	buf.Append(
		byte(v>>21)&0x7F,
		byte(v>>14)&0x7F,
		byte(v>>7)&0x7F,
		byte(v)&0x7F,
	)
}

// StringEncoding selects a text codec.
type StringEncoding int

const (
	Latin1 StringEncoding = iota
	UTF8
	UTF16
	UTF16BE
	UTF16LE // little-endian without a BOM (ASF wire strings)
)

// DecodeString renders data as a Go string using enc. Conversion is total:
// invalid sequences are replaced per the codec's defined replacement rule.
func DecodeString(data []byte, enc StringEncoding) string {
	switch enc {
	case Latin1:
		return decodeLatin1(data)
	case UTF8:
		if !utf8.Valid(data) {
			return string(bytes.ToValidUTF8(data, []byte("�")))
		}
		return string(data)
	case UTF16:
		return decodeUTF16(data, unicode.UseBOM, unicode.LittleEndian)
	case UTF16BE:
		return decodeUTF16(data, unicode.IgnoreBOM, unicode.BigEndian)
	case UTF16LE:
		return decodeUTF16(data, unicode.IgnoreBOM, unicode.LittleEndian)
	default:
		return decodeLatin1(data)
	}
}

func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, c := range data {
		runes[i] = rune(c)
	}
	return string(runes)
}

func decodeUTF16(data []byte, bom unicode.BOMPolicy, fallback unicode.Endianness) string {
	e := unicode.UTF16(fallback, bom)
	out, _, err := transform.Bytes(e.NewDecoder(), data)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}
	return string(out)
}

// EncodeString renders s using enc. UTF16 emits a little-endian BOM.
func EncodeString(s string, enc StringEncoding) []byte {
	switch enc {
	case Latin1:
		return encodeLatin1(s)
	case UTF8:
		return []byte(s)
	case UTF16:
		out, _ := encodeUTF16(s, unicode.LittleEndian, unicode.UseBOM)
		return out
	case UTF16BE:
		out, _ := encodeUTF16(s, unicode.BigEndian, unicode.IgnoreBOM)
		return out
	case UTF16LE:
		out, _ := encodeUTF16(s, unicode.LittleEndian, unicode.IgnoreBOM)
		return out
	default:
		return encodeLatin1(s)
	}
}

func encodeLatin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			out = append(out, '?')
			continue
		}
		out = append(out, byte(r))
	}
	return out
}

func encodeUTF16(s string, endian unicode.Endianness, bom unicode.BOMPolicy) ([]byte, error) {
	e := unicode.UTF16(endian, bom)
	return e.NewEncoder().Bytes([]byte(s))
}
