// Package asf walks an ASF/WMA object tree: a flat
// sequence of [16-byte GUID][8-byte little-endian size][payload] objects
// inside the top-level Header Object, which itself carries an object count
// and reserved fields before its own nested object list. Metadata lives in
// the Content Description and Extended Content Description objects, decoded
// and encoded by the asftag package.
package asf

import (
	"encoding/binary"

	"github.com/cesargomez89/navidrums/internal/mediameta/asftag"
	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// HeaderObjectGUID identifies the top-level container every ASF file must
// start with.
var HeaderObjectGUID = decodeGUIDLiteral("75B22630-668E-11CF-A6D9-00AA0062CE6C")

// FilePropertiesGUID carries play duration and bitrate.
var FilePropertiesGUID = decodeGUIDLiteral("8CABDCA1-A947-11CF-8EE4-00C00C205365")

// decodeGUIDLiteral mirrors asftag's own literal-to-GUID conversion (the
// same Microsoft mixed-endian wire layout), duplicated here since asftag
// only exports the two GUIDs its own codec needs.
func decodeGUIDLiteral(s string) asftag.GUID {
	var raw [16]byte
	hex := stripDashes(s)
	for i := 0; i < 16; i++ {
		raw[i] = hexByte(hex[2*i], hex[2*i+1])
	}
	var g asftag.GUID
	g[0], g[1], g[2], g[3] = raw[3], raw[2], raw[1], raw[0]
	g[4], g[5] = raw[5], raw[4]
	g[6], g[7] = raw[7], raw[6]
	copy(g[8:], raw[8:16])
	return g
}

func stripDashes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func hexByte(hi, lo byte) byte { return hexNibble(hi)<<4 | hexNibble(lo) }

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

type object struct {
	guid  asftag.GUID
	start int64
	size  int64
}

func (o object) bodyStart() int64 { return o.start + 24 }
func (o object) end() int64       { return o.start + o.size }

// Layout records where the Content Description and Extended Content
// Description objects sit (or would be inserted) plus the Header Object's
// size/count fields, so Save can splice without rescanning.
type Layout struct {
	HeaderStart int64
	HeaderEnd   int64
	ObjectCount int64
	CDStart     int64 // -1 if absent
	CDEnd       int64
	ECDStart    int64 // -1 if absent
	ECDEnd      int64
	InsertPoint int64 // where to insert a fresh CD/ECD object if absent
}

// Read validates the leading Header Object GUID, walks its direct child
// objects (ASF's header object list is flat, never recursively nested for
// the objects this codec cares about), and decodes Content
// Description/Extended Content Description into a Tag.
func Read(stream *filestream.Stream, style mediainfo.Style) (*tagmodel.CombinedTag, *mediainfo.Properties, *Layout, error) {
	head, err := stream.ReadAt(0, 30)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(head) < 30 {
		return nil, nil, nil, mmerr.Truncatedf("asf: header truncated")
	}
	var guid asftag.GUID
	copy(guid[:], head[0:16])
	if guid != HeaderObjectGUID {
		return nil, nil, nil, mmerr.CorruptFilef("asf: missing Header Object")
	}
	headerSize := int64(binary.LittleEndian.Uint64(head[16:24]))
	objectCount := int64(binary.LittleEndian.Uint32(head[24:28]))

	objects, err := scanObjects(stream, 30, headerSize)
	if err != nil {
		return nil, nil, nil, err
	}

	layout := &Layout{
		HeaderStart: 0, HeaderEnd: headerSize, ObjectCount: objectCount,
		CDStart: -1, ECDStart: -1, InsertPoint: headerSize,
	}
	var cdBody, ecdBody []byte
	var fileProps *object
	for i := range objects {
		o := &objects[i]
		switch o.guid {
		case ContentDescriptionGUID():
			body, err := stream.ReadAt(o.bodyStart(), int(o.size-24))
			if err != nil {
				return nil, nil, nil, err
			}
			cdBody = body
			layout.CDStart, layout.CDEnd = o.start, o.end()
		case ExtendedContentDescriptionGUID():
			body, err := stream.ReadAt(o.bodyStart(), int(o.size-24))
			if err != nil {
				return nil, nil, nil, err
			}
			ecdBody = body
			layout.ECDStart, layout.ECDEnd = o.start, o.end()
		case FilePropertiesGUID:
			fp := *o
			fileProps = &fp
		}
	}
	if layout.CDStart < 0 && layout.ECDStart < 0 && len(objects) > 0 {
		layout.InsertPoint = objects[0].start
	}

	tag, err := asftag.Decode(cdBody, ecdBody)
	if err != nil {
		return nil, nil, nil, err
	}

	var props *mediainfo.Properties
	if style != mediainfo.StyleNone && fileProps != nil {
		p, err := extractProperties(stream, *fileProps)
		if err == nil {
			props = &p
		}
	}
	return tagmodel.NewCombinedTag(tag), props, layout, nil
}

// ContentDescriptionGUID and ExtendedContentDescriptionGUID forward the
// well-known GUIDs already derived in asftag, kept local so switch cases
// above read naturally as function calls on this package's object type.
func ContentDescriptionGUID() asftag.GUID         { return asftag.ContentDescriptionGUID }
func ExtendedContentDescriptionGUID() asftag.GUID { return asftag.ExtendedContentDescriptionGUID }

func scanObjects(stream *filestream.Stream, start, headerSize int64) ([]object, error) {
	var out []object
	pos := start
	end := headerSize
	for pos+24 <= end {
		hdr, err := stream.ReadAt(pos, 24)
		if err != nil {
			return nil, err
		}
		if len(hdr) < 24 {
			break
		}
		var guid asftag.GUID
		copy(guid[:], hdr[0:16])
		size := int64(binary.LittleEndian.Uint64(hdr[16:24]))
		if size < 24 || pos+size > end {
			return nil, mmerr.CorruptFilef("asf: object overruns header at %d", pos)
		}
		out = append(out, object{guid: guid, start: pos, size: size})
		pos += size
	}
	return out, nil
}

func extractProperties(stream *filestream.Stream, fp object) (mediainfo.Properties, error) {
	body, err := stream.ReadAt(fp.bodyStart(), int(fp.size-24))
	if err != nil || len(body) < 64 {
		return mediainfo.Properties{}, mmerr.Truncatedf("asf: file properties truncated")
	}
	// Play Duration (100-ns units) at byte offset 40 of the body, Maximum
	// Bitrate (bits/sec) at offset 64.
	playDuration := binary.LittleEndian.Uint64(body[40:48])
	var bitrate int
	if len(body) >= 68 {
		bitrate = int(binary.LittleEndian.Uint32(body[64:68])) / 1000
	}
	durationMs := int64(playDuration / 10000)
	return mediainfo.Properties{Duration: durationMs, Bitrate: bitrate, Codec: "WMA"}, nil
}

// Save re-renders the Content Description and Extended Content Description
// object bodies and splices them back into their original spans (or
// inserts both fresh, back to back, at InsertPoint if neither existed),
// then grows the Header Object's size field by the resulting delta.
//
// Each splice is applied at the higher file offset first so that the other
// object's (lower) offset stays valid for its own splice.
func Save(stream *filestream.Stream, layout *Layout, tag *tagmodel.CombinedTag) error {
	asfTag := findASFChild(tag)
	if asfTag == nil {
		asfTag = asftag.New()
	}
	cdBody, ecdBody := asftag.Encode(asfTag)
	newCD := wrapObject(asftag.ContentDescriptionGUID, cdBody)
	newECD := wrapObject(asftag.ExtendedContentDescriptionGUID, ecdBody)

	type splice struct {
		start, oldLen int64
		body          []byte
		isNew         bool
	}
	splices := []splice{
		{start: layout.CDStart, oldLen: layout.CDEnd - layout.CDStart, body: newCD, isNew: layout.CDStart < 0},
		{start: layout.ECDStart, oldLen: layout.ECDEnd - layout.ECDStart, body: newECD, isNew: layout.ECDStart < 0},
	}
	for i := range splices {
		if splices[i].isNew {
			splices[i].start, splices[i].oldLen = layout.InsertPoint, 0
		}
	}
	// Apply the higher-offset splice first.
	order := []int{0, 1}
	if splices[0].start < splices[1].start {
		order = []int{1, 0}
	}

	var delta int64
	newObjectCount := layout.ObjectCount
	for _, i := range order {
		s := splices[i]
		if err := stream.Insert(s.body, s.start, s.oldLen); err != nil {
			return err
		}
		delta += int64(len(s.body)) - s.oldLen
		if s.isNew {
			newObjectCount++
		}
	}

	// Refresh the layout so a repeated Save splices at the new offsets. A
	// splice shifts the other object only when it sits at a lower offset
	// (or at the same offset but applied later, landing in front of it).
	cd, ecd := splices[0], splices[1]
	cdFinal, ecdFinal := cd.start, ecd.start
	if ecd.start <= cd.start {
		cdFinal += int64(len(ecd.body)) - ecd.oldLen
	} else {
		ecdFinal += int64(len(cd.body)) - cd.oldLen
	}
	needGrow := delta != 0 || newObjectCount != layout.ObjectCount
	layout.CDStart, layout.CDEnd = cdFinal, cdFinal+int64(len(cd.body))
	layout.ECDStart, layout.ECDEnd = ecdFinal, ecdFinal+int64(len(ecd.body))
	layout.HeaderEnd += delta
	layout.InsertPoint = layout.HeaderEnd
	layout.ObjectCount = newObjectCount

	if needGrow {
		return growHeader(stream, layout, delta, newObjectCount)
	}
	return nil
}

func wrapObject(guid asftag.GUID, body []byte) []byte {
	out := make([]byte, 24+len(body))
	copy(out[0:16], guid[:])
	binary.LittleEndian.PutUint64(out[16:24], uint64(24+len(body)))
	copy(out[24:], body)
	return out
}

func growHeader(stream *filestream.Stream, layout *Layout, delta, newCount int64) error {
	buf, err := stream.ReadAt(16, 12)
	if err != nil {
		return err
	}
	size := int64(binary.LittleEndian.Uint64(buf[0:8]))
	out := make([]byte, 12)
	binary.LittleEndian.PutUint64(out[0:8], uint64(size+delta))
	binary.LittleEndian.PutUint32(out[8:12], uint32(newCount))
	return stream.Insert(out, 16, 12)
}

func findASFChild(tag *tagmodel.CombinedTag) *asftag.Tag {
	for _, c := range tag.Children() {
		if t, ok := c.(*asftag.Tag); ok {
			return t
		}
	}
	return nil
}
