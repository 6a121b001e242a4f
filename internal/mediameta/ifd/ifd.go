// Package ifd decodes and encodes TIFF/EXIF Image File Directory structures:
// a byte-order prefix, a chain of directories, and typed entries whose
// values are either stored inline or referenced by file offset.
package ifd

import (
	"sort"

	"github.com/cesargomez89/navidrums/internal/mediameta/bytebuffer"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
)

// EntryType is the TIFF field type of a directory entry.
type EntryType uint16

const (
	TypeByte      EntryType = 1
	TypeASCII     EntryType = 2
	TypeShort     EntryType = 3
	TypeLong      EntryType = 4
	TypeRational  EntryType = 5
	TypeSByte     EntryType = 6
	TypeUndefined EntryType = 7
	TypeSShort    EntryType = 8
	TypeSLong     EntryType = 9
	TypeSRational EntryType = 10
	TypeFloat     EntryType = 11
	TypeDouble    EntryType = 12
)

// typeSize returns the on-disk size of one value of t, or 0 if unknown.
func typeSize(t EntryType) int {
	switch t {
	case TypeByte, TypeASCII, TypeSByte, TypeUndefined:
		return 1
	case TypeShort, TypeSShort:
		return 2
	case TypeLong, TypeSLong, TypeFloat:
		return 4
	case TypeRational, TypeSRational, TypeDouble:
		return 8
	default:
		return 0
	}
}

// Well-known sub-directory pointer tags.
const (
	TagExifIFDPointer    = 0x8769
	TagGPSIFDPointer     = 0x8825
	TagInteropIFDPointer = 0xA005
)

// Entry is one 12-byte IFD directory entry plus its resolved value bytes.
type Entry struct {
	Tag   uint16
	Type  EntryType
	Count uint32
	Value []byte // raw value bytes, count*typeSize(Type) long

	// SubIFD is non-nil when Tag is a recognized sub-directory pointer and
	// the pointed-to directory was resolved during decode.
	SubIFD *Directory
}

// Directory is one IFD: an ordered list of entries.
type Directory struct {
	Entries []*Entry

	corrupt bool
}

func (d *Directory) entry(tag uint16) *Entry {
	for _, e := range d.Entries {
		if e.Tag == tag {
			return e
		}
	}
	return nil
}

func (d *Directory) set(tag uint16, typ EntryType, count uint32, value []byte) {
	if e := d.entry(tag); e != nil {
		e.Type = typ
		e.Count = count
		e.Value = value
		return
	}
	d.Entries = append(d.Entries, &Entry{Tag: tag, Type: typ, Count: count, Value: value})
}

func (d *Directory) remove(tag uint16) {
	out := d.Entries[:0]
	for _, e := range d.Entries {
		if e.Tag != tag {
			out = append(out, e)
		}
	}
	d.Entries = out
}

// ASCII returns the entry's value as a string (ASCII/UTF-8 bytes minus the
// trailing NUL), or "" if tag is absent.
func (d *Directory) ASCII(tag uint16) string {
	e := d.entry(tag)
	if e == nil || len(e.Value) == 0 {
		return ""
	}
	v := e.Value
	if v[len(v)-1] == 0 {
		v = v[:len(v)-1]
	}
	return string(v)
}

// SetASCII sets a null-terminated ASCII string entry.
func (d *Directory) SetASCII(tag uint16, s string) {
	if s == "" {
		d.remove(tag)
		return
	}
	v := append([]byte(s), 0)
	d.set(tag, TypeASCII, uint32(len(v)), v)
}

// Short returns the first SHORT value of tag.
func (d *Directory) Short(order bytebuffer.Endian, tag uint16) (uint16, bool) {
	e := d.entry(tag)
	if e == nil || len(e.Value) < 2 {
		return 0, false
	}
	buf := bytebuffer.New(e.Value)
	v, err := buf.Uint16(0, order)
	return v, err == nil
}

// SetShort sets a single SHORT value entry.
func (d *Directory) SetShort(order bytebuffer.Endian, tag uint16, v uint16) {
	buf := &bytebuffer.Buffer{}
	bytebuffer.PutUint16(buf, v, order)
	d.set(tag, TypeShort, 1, buf.Bytes())
}

// Long returns the first LONG value of tag.
func (d *Directory) Long(order bytebuffer.Endian, tag uint16) (uint32, bool) {
	e := d.entry(tag)
	if e == nil || len(e.Value) < 4 {
		return 0, false
	}
	buf := bytebuffer.New(e.Value)
	v, err := buf.Uint32(0, order)
	return v, err == nil
}

// SetLong sets a single LONG value entry.
func (d *Directory) SetLong(order bytebuffer.Endian, tag uint16, v uint32) {
	buf := &bytebuffer.Buffer{}
	bytebuffer.PutUint32(buf, v, order)
	d.set(tag, TypeLong, 1, buf.Bytes())
}

// Rational is a numerator/denominator pair.
type Rational struct {
	Numerator, Denominator uint32
}

// Rational returns the first RATIONAL value of tag.
func (d *Directory) Rational(order bytebuffer.Endian, tag uint16) (Rational, bool) {
	e := d.entry(tag)
	if e == nil || len(e.Value) < 8 {
		return Rational{}, false
	}
	buf := bytebuffer.New(e.Value)
	n, err1 := buf.Uint32(0, order)
	den, err2 := buf.Uint32(4, order)
	if err1 != nil || err2 != nil {
		return Rational{}, false
	}
	return Rational{Numerator: n, Denominator: den}, true
}

// SetRational sets a single RATIONAL value entry.
func (d *Directory) SetRational(order bytebuffer.Endian, tag uint16, r Rational) {
	buf := &bytebuffer.Buffer{}
	bytebuffer.PutUint32(buf, r.Numerator, order)
	bytebuffer.PutUint32(buf, r.Denominator, order)
	d.set(tag, TypeRational, 1, buf.Bytes())
}

// Undefined returns the raw bytes of an UNDEFINED-typed entry (used for
// thumbnail/opaque blobs such as EXIF UserComment or the JPEG thumbnail).
func (d *Directory) Undefined(tag uint16) []byte {
	e := d.entry(tag)
	if e == nil {
		return nil
	}
	return e.Value
}

// SetUndefined sets a raw UNDEFINED-typed entry.
func (d *Directory) SetUndefined(tag uint16, data []byte) {
	if len(data) == 0 {
		d.remove(tag)
		return
	}
	d.set(tag, TypeUndefined, uint32(len(data)), data)
}

// Structure holds the byte order and the chain of top-level directories
// (IFD0, IFD1, ...) plus any resolved sub-directories attached to entries.
type Structure struct {
	Order bytebuffer.Endian
	IFDs  []*Directory

	// Corrupt is set when an entry or directory had to be skipped during
	// decode. Decoding still returns everything that could be read.
	Corrupt bool
}

// Identifier magic bytes for the two byte orders.
var (
	MagicII = []byte{'I', 'I'}
	MagicMM = []byte{'M', 'M'}
)

// Decode parses a full TIFF/EXIF structure starting at the byte-order
// marker. data must begin at offset 0 of the TIFF structure itself (i.e.
// any container wrapper such as a JPEG APP1 "Exif\0\0" prefix must already
// be stripped by the caller).
func Decode(data []byte) (*Structure, error) {
	if len(data) < 8 {
		return nil, mmerr.Truncatedf("ifd: need at least 8 bytes for TIFF header, got %d", len(data))
	}
	var order bytebuffer.Endian
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = bytebuffer.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = bytebuffer.BigEndian
	default:
		return nil, mmerr.CorruptFilef("ifd: unrecognized byte order marker %q", data[0:2])
	}
	buf := bytebuffer.New(data)
	magic, err := buf.Uint16(2, order)
	if err != nil || magic != 42 {
		return nil, mmerr.CorruptFilef("ifd: expected magic 42, got %d", magic)
	}
	firstOffset, err := buf.Uint32(4, order)
	if err != nil {
		return nil, err
	}

	s := &Structure{Order: order}
	offset := firstOffset
	seen := map[uint32]bool{}
	for offset != 0 {
		if seen[offset] {
			s.Corrupt = true
			break // cyclic directory chain: stop rather than loop forever
		}
		seen[offset] = true
		dir, next, err := decodeDirectory(data, order, int(offset))
		if err != nil {
			s.Corrupt = true
			break // corrupt directory: recovered locally, chain truncated here
		}
		if dir.corrupt {
			s.Corrupt = true
		}
		s.IFDs = append(s.IFDs, dir)
		offset = next
	}
	return s, nil
}

func decodeDirectory(data []byte, order bytebuffer.Endian, offset int) (*Directory, uint32, error) {
	buf := bytebuffer.New(data)
	count, err := buf.Uint16(offset, order)
	if err != nil {
		return nil, 0, err
	}
	dir := &Directory{}
	pos := offset + 2
	for i := 0; i < int(count); i++ {
		if pos+12 > len(data) {
			dir.corrupt = true
			break // truncated entry: earlier entries kept
		}
		tag, _ := buf.Uint16(pos, order)
		typ, _ := buf.Uint16(pos+2, order)
		cnt, _ := buf.Uint32(pos+4, order)
		rawValueOrOffset := data[pos+8 : pos+12]
		pos += 12

		size := typeSize(EntryType(typ)) * int(cnt)
		var value []byte
		if size <= 4 {
			value = append([]byte(nil), rawValueOrOffset[:max(size, 0)]...)
		} else {
			valOff, _ := bytebuffer.New(rawValueOrOffset).Uint32(0, order)
			if int(valOff)+size > len(data) {
				dir.corrupt = true
				continue // entry value out of range: skip it, keep the rest
			}
			value = append([]byte(nil), data[int(valOff):int(valOff)+size]...)
		}
		entry := &Entry{Tag: tag, Type: EntryType(typ), Count: cnt, Value: value}
		if isSubIFDTag(tag) && size <= 4 {
			valOff, _ := bytebuffer.New(rawValueOrOffset).Uint32(0, order)
			if sub, _, err := decodeDirectory(data, order, int(valOff)); err == nil {
				entry.SubIFD = sub
			}
		}
		dir.Entries = append(dir.Entries, entry)
	}
	if pos+4 > len(data) {
		return dir, 0, nil
	}
	next, err := buf.Uint32(pos, order)
	if err != nil {
		return dir, 0, nil
	}
	return dir, next, nil
}

func isSubIFDTag(tag uint16) bool {
	switch tag {
	case TagExifIFDPointer, TagGPSIFDPointer, TagInteropIFDPointer:
		return true
	default:
		return false
	}
}

// Encode renders the structure: entries sorted by tag id within each
// directory, values ≤4 bytes stored inline, larger values packed after the
// directory table, sub-IFDs rendered after their parent directory. Entries
// carrying a resolved SubIFD have their inline pointer value recomputed to
// the sub-directory's actual placement, regardless of whatever offset was
// stored in Entry.Value at decode time.
func Encode(s *Structure) []byte {
	out := &bytebuffer.Buffer{}
	if s.Order == bytebuffer.LittleEndian {
		out.Append('I', 'I')
	} else {
		out.Append('M', 'M')
	}
	bytebuffer.PutUint16(out, 42, s.Order)

	// First pass: compute each top-level directory's total encoded size
	// (table + overflow + nested sub-IFDs) so chain offsets are known
	// before any bytes are written.
	type planned struct {
		dir    *Directory
		offset uint32
	}
	var plans []planned
	cursor := uint32(8)
	for _, dir := range s.IFDs {
		plans = append(plans, planned{dir: dir, offset: cursor})
		cursor += directoryEncodedSize(dir)
	}
	bytebuffer.PutUint32(out, 8, s.Order)

	for i, p := range plans {
		nextOffset := uint32(0)
		if i+1 < len(plans) {
			nextOffset = plans[i+1].offset
		}
		encodeDirectory(out, p.dir, s.Order, p.offset, nextOffset)
	}
	return out.Bytes()
}

func directoryEncodedSize(dir *Directory) uint32 {
	sorted := sortedEntries(dir)
	size := uint32(2 + 12*len(sorted) + 4)
	for _, e := range sorted {
		if e.SubIFD != nil {
			size += directoryEncodedSize(e.SubIFD)
			continue
		}
		valSize := entryValueSize(e)
		if valSize > 4 {
			size += uint32(valSize)
		}
	}
	return size
}

func entryValueSize(e *Entry) int {
	valSize := typeSize(e.Type) * int(e.Count)
	if valSize == 0 {
		valSize = len(e.Value)
	}
	return valSize
}

func sortedEntries(dir *Directory) []*Entry {
	out := append([]*Entry(nil), dir.Entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// encodeDirectory writes dir's entry table, its overflow value area, and
// any attached sub-IFDs, returning the cursor positioned after everything
// written for this directory (i.e. where the next sibling directory, if
// any, begins). start must equal the offset this directory's table begins
// at (matching what directoryEncodedSize assumed when chain offsets were
// planned).
func encodeDirectory(out *bytebuffer.Buffer, dir *Directory, order bytebuffer.Endian, start, nextDirOffset uint32) uint32 {
	sorted := sortedEntries(dir)
	bytebuffer.PutUint16(out, uint16(len(sorted)), order)

	tableEnd := start + 2 + uint32(12*len(sorted)) + 4

	// Plain overflow values are packed immediately after the table; nested
	// sub-IFDs are rendered after all overflow values.
	overflowCursor := tableEnd
	subIFDOffsets := make([]uint32, len(sorted))
	overflowEnd := tableEnd
	for _, e := range sorted {
		if e.SubIFD != nil {
			continue
		}
		if entryValueSize(e) > 4 {
			overflowEnd += uint32(entryValueSize(e))
		}
	}
	subCursor := overflowEnd
	for i, e := range sorted {
		if e.SubIFD == nil {
			continue
		}
		subIFDOffsets[i] = subCursor
		subCursor += directoryEncodedSize(e.SubIFD)
	}

	type overflow struct {
		data   []byte
		offset uint32
	}
	var overflows []overflow

	for i, e := range sorted {
		bytebuffer.PutUint16(out, e.Tag, order)

		if e.SubIFD != nil {
			bytebuffer.PutUint16(out, uint16(TypeLong), order)
			bytebuffer.PutUint32(out, 1, order)
			tmp := &bytebuffer.Buffer{}
			bytebuffer.PutUint32(tmp, subIFDOffsets[i], order)
			out.Append(tmp.Bytes()...)
			continue
		}

		bytebuffer.PutUint16(out, uint16(e.Type), order)
		bytebuffer.PutUint32(out, e.Count, order)
		valSize := entryValueSize(e)
		if valSize <= 4 {
			padded := make([]byte, 4)
			copy(padded, e.Value)
			out.Append(padded...)
		} else {
			offsetVal := overflowCursor
			overflows = append(overflows, overflow{data: e.Value, offset: offsetVal})
			overflowCursor += uint32(valSize)
			tmp := &bytebuffer.Buffer{}
			bytebuffer.PutUint32(tmp, offsetVal, order)
			out.Append(tmp.Bytes()...)
		}
	}

	tmp := &bytebuffer.Buffer{}
	bytebuffer.PutUint32(tmp, nextDirOffset, order)
	out.Append(tmp.Bytes()...)

	for _, ov := range overflows {
		out.Append(ov.data...)
	}

	cursor := overflowEnd
	for _, e := range sorted {
		if e.SubIFD == nil {
			continue
		}
		cursor = encodeDirectory(out, e.SubIFD, order, cursor, 0)
	}
	return cursor
}
