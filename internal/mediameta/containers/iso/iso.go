// Package iso walks an ISO base media file format box tree: MP4/M4A/M4B
// files built from nested [size(4) type(4) payload] boxes, with metadata
// living at moov.udta.meta.ilst and chunk offsets recorded in
// moov.trak.mdia.minf.stbl.stco (32-bit) or co64 (64-bit).
package iso

import (
	"encoding/binary"

	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/mp4tag"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// box is one node of the decoded tree: offset/size describe its span in the
// file including its own 8 (or 16, for a 64-bit extended size) byte header.
type box struct {
	typ        string
	start      int64 // start of the header
	headerLen  int64 // 8 or 16
	bodyLen    int64
	children   []*box
	isUDTAMeta bool
}

func (b *box) end() int64 { return b.start + b.headerLen + b.bodyLen }

// containerTypes are boxes whose body is itself a sequence of child boxes.
var containerTypes = map[string]bool{
	"moov": true, "trak": true, "mdia": true, "minf": true, "stbl": true,
	"udta": true, "edts": true, "mvex": true, "dinf": true,
}

// readTree walks the box chain starting at offset start through end,
// recursing into recognized containers. "meta" is a container everywhere
// except it carries an extra 4-byte version/flags field before its children
// (handled by the meta special case below).
func readTree(stream *filestream.Stream, start, end int64) ([]*box, error) {
	var out []*box
	pos := start
	for pos < end {
		hdr, err := stream.ReadAt(pos, 8)
		if err != nil {
			return nil, err
		}
		if len(hdr) < 8 {
			return nil, mmerr.Truncatedf("iso: box header truncated at %d", pos)
		}
		size64 := int64(binary.BigEndian.Uint32(hdr[0:4]))
		typ := string(hdr[4:8])
		headerLen := int64(8)
		if size64 == 1 {
			ext, err := stream.ReadAt(pos+8, 8)
			if err != nil {
				return nil, err
			}
			size64 = int64(binary.BigEndian.Uint64(ext))
			headerLen = 16
		} else if size64 == 0 {
			size64 = end - pos
		}
		if size64 < headerLen || pos+size64 > end {
			return nil, mmerr.CorruptFilef("iso: box %q has invalid size %d", typ, size64)
		}
		b := &box{typ: typ, start: pos, headerLen: headerLen, bodyLen: size64 - headerLen}

		switch {
		case typ == "meta":
			children, err := readTree(stream, pos+headerLen+4, b.end())
			if err != nil {
				return nil, err
			}
			b.children = children
		case containerTypes[typ]:
			children, err := readTree(stream, pos+headerLen, b.end())
			if err != nil {
				return nil, err
			}
			b.children = children
		}
		out = append(out, b)
		pos = b.end()
	}
	return out, nil
}

func find(boxes []*box, typ string) *box {
	for _, b := range boxes {
		if b.typ == typ {
			return b
		}
	}
	return nil
}

func path(boxes []*box, types ...string) *box {
	cur := boxes
	var found *box
	for _, t := range types {
		found = find(cur, t)
		if found == nil {
			return nil
		}
		cur = found.children
	}
	return found
}

// UDTARef records one encountered udta box together with the chain of box
// types that leads to it, outermost first. moov.udta.meta.ilst is the
// canonical writable target (captured separately in Layout.IlstStart/End);
// every udta, including per-track ones under moov.trak.udta, is kept here
// for inspection.
type UDTARef struct {
	AncestorPath []string
	Start        int64
}

// SampleDescription records one stsd box found under a trak's mdia, together
// with the handler type declared by that trak's hdlr box ("soun" for audio,
// "vide" for video, and so on).
type SampleDescription struct {
	HandlerType  string
	AncestorPath []string
	Start        int64
	HeaderLen    int64
	BodyLen      int64
}

// Layout records the boxes Save needs to touch: the ilst body span and every
// stco/co64 table in the file (so chunk offsets can be shifted in lockstep
// with an ilst size change), plus every ancestor whose size field must grow.
type Layout struct {
	IlstStart   int64
	IlstEnd     int64   // 0,0 if absent (no udta/meta/ilst box existed)
	MetaStart   int64   // start of the "meta" box's children, for inserting ilst fresh
	Ancestors   []int64 // start offsets of every box enclosing ilst, outermost first
	ChunkTables []chunkTable
	MdatStart   int64

	AllUDTA            []UDTARef
	SampleDescriptions []SampleDescription
}

// collectUDTA walks the full tree recording every udta box along with the
// ancestor path (box types, outermost first) that leads to it.
func collectUDTA(top []*box) []UDTARef {
	var refs []UDTARef
	var walk func(boxes []*box, ancestors []string)
	walk = func(boxes []*box, ancestors []string) {
		for _, b := range boxes {
			if b.typ == "udta" {
				p := make([]string, len(ancestors))
				copy(p, ancestors)
				refs = append(refs, UDTARef{AncestorPath: p, Start: b.start})
			}
			walk(b.children, append(ancestors, b.typ))
		}
	}
	walk(top, nil)
	return refs
}

// collectSampleDescriptions walks the full tree recording every stsd box
// along with the handler type of the nearest preceding hdlr sibling within
// the same mdia (hdlr precedes minf/stbl/stsd in a conformant file, so a
// sequential scan that updates the carried handler type on each hdlr sees
// the right value by the time it reaches the matching stsd).
func collectSampleDescriptions(stream *filestream.Stream, top []*box) ([]SampleDescription, error) {
	var out []SampleDescription
	var walk func(boxes []*box, ancestors []string, handlerType string) error
	walk = func(boxes []*box, ancestors []string, handlerType string) error {
		ht := handlerType
		for _, b := range boxes {
			if b.typ == "hdlr" {
				t, err := readHandlerType(stream, b)
				if err != nil {
					return err
				}
				ht = t
			}
			if b.typ == "stsd" {
				p := make([]string, len(ancestors))
				copy(p, ancestors)
				out = append(out, SampleDescription{
					HandlerType:  ht,
					AncestorPath: p,
					Start:        b.start,
					HeaderLen:    b.headerLen,
					BodyLen:      b.bodyLen,
				})
			}
			if err := walk(b.children, append(ancestors, b.typ), ht); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(top, nil, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func readHandlerType(stream *filestream.Stream, b *box) (string, error) {
	body, err := stream.ReadAt(b.start+b.headerLen, int(b.bodyLen))
	if err != nil {
		return "", err
	}
	if len(body) < 12 {
		return "", mmerr.Truncatedf("iso: hdlr box truncated")
	}
	return string(body[8:12]), nil
}

type chunkTable struct {
	start int64 // start of the 4-byte entry count field, right after the box's version/flags
	is64  bool
}

// Read walks the full box tree, requires a leading ftyp box, locates ilst
// metadata and stco/co64 chunk tables, and reads mvhd for duration.
func Read(stream *filestream.Stream, style mediainfo.Style) (*tagmodel.CombinedTag, *mediainfo.Properties, *Layout, error) {
	length := stream.Length()
	top, err := readTree(stream, 0, length)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(top) == 0 || top[0].typ != "ftyp" {
		return nil, nil, nil, mmerr.CorruptFilef("iso: missing leading ftyp box")
	}

	layout := &Layout{}
	var tag *mp4tag.Tag
	if ilst := path(top, "moov", "udta", "meta", "ilst"); ilst != nil {
		body, err := stream.ReadAt(ilst.start+ilst.headerLen, int(ilst.bodyLen))
		if err != nil {
			return nil, nil, nil, err
		}
		tag, err = mp4tag.Decode(body)
		if err != nil {
			return nil, nil, nil, err
		}
		layout.IlstStart = ilst.start + ilst.headerLen
		layout.IlstEnd = ilst.end()
		layout.Ancestors = ancestorStarts(top, "moov", "udta", "meta", "ilst")
	} else if meta := path(top, "moov", "udta", "meta"); meta != nil {
		layout.MetaStart = meta.start + meta.headerLen + 4
		layout.Ancestors = ancestorStarts(top, "moov", "udta", "meta")
	}
	if tag == nil {
		tag = mp4tag.New()
	}

	collectChunkTables(top, layout)
	if mdat := find(top, "mdat"); mdat != nil {
		layout.MdatStart = mdat.start + mdat.headerLen
	}
	layout.AllUDTA = collectUDTA(top)
	sampleDescriptions, err := collectSampleDescriptions(stream, top)
	if err != nil {
		return nil, nil, nil, err
	}
	layout.SampleDescriptions = sampleDescriptions

	var props *mediainfo.Properties
	if style != mediainfo.StyleNone {
		p := extractProperties(stream, top, sampleDescriptions)
		props = &p
	}
	return tagmodel.NewCombinedTag(tag), props, layout, nil
}

func ancestorStarts(top []*box, types ...string) []int64 {
	var starts []int64
	cur := top
	for _, t := range types {
		b := find(cur, t)
		if b == nil {
			break
		}
		starts = append(starts, b.start)
		cur = b.children
	}
	return starts
}

// collectChunkTables finds every stco/co64 box anywhere in the tree.
func collectChunkTables(boxes []*box, layout *Layout) {
	for _, b := range boxes {
		if b.typ == "stco" || b.typ == "co64" {
			layout.ChunkTables = append(layout.ChunkTables, chunkTable{
				start: b.start + b.headerLen + 4, // skip the 4-byte version/flags field
				is64:  b.typ == "co64",
			})
		}
		collectChunkTables(b.children, layout)
	}
}

func extractProperties(stream *filestream.Stream, top []*box, sampleDescriptions []SampleDescription) mediainfo.Properties {
	props := mediainfo.Properties{Codec: "MP4"}

	if mvhd := path(top, "moov", "mvhd"); mvhd != nil {
		if body, err := stream.ReadAt(mvhd.start+mvhd.headerLen, int(mvhd.bodyLen)); err == nil && len(body) >= 4 {
			version := body[0]
			var timescale, duration uint64
			switch {
			case version == 1 && len(body) >= 32:
				timescale = uint64(binary.BigEndian.Uint32(body[20:24]))
				duration = binary.BigEndian.Uint64(body[24:32])
			case version != 1 && len(body) >= 24:
				timescale = uint64(binary.BigEndian.Uint32(body[12:16]))
				duration = uint64(binary.BigEndian.Uint32(body[16:20]))
			}
			if timescale > 0 {
				props.Duration = int64(duration * 1000 / timescale)
			}
		}
	}

	for _, sd := range sampleDescriptions {
		if sd.HandlerType != "soun" {
			continue
		}
		if channels, bits, rate, ok := readAudioSampleEntry(stream, sd); ok {
			props.Channels = channels
			props.BitsPerSample = bits
			props.SampleRate = rate
		}
		break
	}

	return props
}

// readAudioSampleEntry decodes the fixed-layout AudioSampleEntry fields
// (ISO/IEC 14496-12 §8.16.3) from the first sample entry in an stsd box:
// an 8-byte stsd header (version/flags + entry_count), then the entry's own
// 8-byte [size type] header, then SampleEntry.reserved[6]+data_reference_index(2),
// then 8 reserved bytes, channelcount(2), samplesize(2), pre_defined(2),
// reserved(2), and samplerate as a 16.16 fixed-point uint32.
func readAudioSampleEntry(stream *filestream.Stream, sd SampleDescription) (channels, bitsPerSample, sampleRate int, ok bool) {
	body, err := stream.ReadAt(sd.Start+sd.HeaderLen, int(sd.BodyLen))
	if err != nil {
		return 0, 0, 0, false
	}
	const (
		entryBodyStart = 16 // 8 (stsd header) + 8 (sample entry's own size/type header)
		channelsOff    = entryBodyStart + 16
		sampleSizeOff  = channelsOff + 2
		sampleRateOff  = entryBodyStart + 24
	)
	if len(body) < sampleRateOff+4 {
		return 0, 0, 0, false
	}
	channels = int(binary.BigEndian.Uint16(body[channelsOff : channelsOff+2]))
	bitsPerSample = int(binary.BigEndian.Uint16(body[sampleSizeOff : sampleSizeOff+2]))
	sampleRate = int(binary.BigEndian.Uint32(body[sampleRateOff:sampleRateOff+4]) >> 16)
	return channels, bitsPerSample, sampleRate, true
}

// Save re-renders the ilst atom, shifts every stco/co64 chunk offset by the
// resulting byte delta, and grows every enclosing container's size field.
func Save(stream *filestream.Stream, layout *Layout, tag *tagmodel.CombinedTag) error {
	mp4 := findMP4Child(tag)
	if mp4 == nil {
		mp4 = mp4tag.New()
	}
	newBody := mp4tag.Encode(mp4)

	if layout.IlstStart == 0 && layout.IlstEnd == 0 {
		if mp4.IsEmpty() {
			return nil
		}
		if layout.MetaStart == 0 {
			// No udta/meta chain anywhere to hang a fresh ilst off.
			return mmerr.UnsupportedTagOperationf("iso: cannot create a new udta/meta/ilst chain")
		}
		boxBuf := make([]byte, 8+len(newBody))
		binary.BigEndian.PutUint32(boxBuf[0:4], uint32(8+len(newBody)))
		copy(boxBuf[4:8], "ilst")
		copy(boxBuf[8:], newBody)
		if err := stream.Insert(boxBuf, layout.MetaStart, 0); err != nil {
			return err
		}
		delta := int64(len(boxBuf))
		layout.IlstStart = layout.MetaStart + 8
		layout.IlstEnd = layout.MetaStart + delta
		return applyDelta(stream, layout, layout.MetaStart, delta)
	}

	oldLen := layout.IlstEnd - layout.IlstStart
	delta := int64(len(newBody)) - oldLen

	if err := stream.Insert(newBody, layout.IlstStart, oldLen); err != nil {
		return err
	}
	spliceEnd := layout.IlstEnd
	layout.IlstEnd += delta
	if delta == 0 {
		return nil
	}
	return applyDelta(stream, layout, spliceEnd, delta)
}

// applyDelta fixes up everything a size change at spliceEnd invalidates:
// the recorded file offsets of boxes that sit past the splice point, the
// size field of every enclosing container, and every chunk-offset table
// entry (mdat's absolute position moved with the tail).
func applyDelta(stream *filestream.Stream, layout *Layout, spliceEnd, delta int64) error {
	for i := range layout.ChunkTables {
		if layout.ChunkTables[i].start >= spliceEnd {
			layout.ChunkTables[i].start += delta
		}
	}
	if layout.MdatStart >= spliceEnd {
		layout.MdatStart += delta
	}
	if err := growAncestorSizes(stream, layout.Ancestors, delta); err != nil {
		return err
	}
	return shiftChunkOffsets(stream, layout, delta)
}

func findMP4Child(tag *tagmodel.CombinedTag) *mp4tag.Tag {
	for _, c := range tag.Children() {
		if t, ok := c.(*mp4tag.Tag); ok {
			return t
		}
	}
	return nil
}

// growAncestorSizes adds delta to the 32-bit size field of every box
// enclosing ilst. Boxes using the 64-bit extended-size form are not
// generated by this codec and are left to a future enhancement.
func growAncestorSizes(stream *filestream.Stream, ancestorStarts []int64, delta int64) error {
	for _, start := range ancestorStarts {
		szBuf, err := stream.ReadAt(start, 4)
		if err != nil {
			return err
		}
		size := int64(binary.BigEndian.Uint32(szBuf))
		newSize := size + delta
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(newSize))
		if err := stream.Insert(buf, start, 4); err != nil {
			return err
		}
	}
	return nil
}

// shiftChunkOffsets adds delta to every entry of every stco/co64 table found
// at Read time, since ilst precedes mdat in a typical MP4 layout and any
// size change shifts every chunk's absolute file offset.
func shiftChunkOffsets(stream *filestream.Stream, layout *Layout, delta int64) error {
	for _, ct := range layout.ChunkTables {
		countBuf, err := stream.ReadAt(ct.start, 4)
		if err != nil {
			return err
		}
		count := int(binary.BigEndian.Uint32(countBuf))
		entrySize := 4
		if ct.is64 {
			entrySize = 8
		}
		entries, err := stream.ReadAt(ct.start+4, count*entrySize)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			off := i * entrySize
			if ct.is64 {
				v := binary.BigEndian.Uint64(entries[off : off+8])
				binary.BigEndian.PutUint64(entries[off:off+8], uint64(int64(v)+delta))
			} else {
				v := binary.BigEndian.Uint32(entries[off : off+4])
				binary.BigEndian.PutUint32(entries[off:off+4], uint32(int64(v)+delta))
			}
		}
		if err := stream.Insert(entries, ct.start+4, int64(len(entries))); err != nil {
			return err
		}
	}
	return nil
}
