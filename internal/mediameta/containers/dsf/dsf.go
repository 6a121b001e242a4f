// Package dsf reads Sony's DSD Stream File format: a fixed
// 28-byte "DSD " header whose bytes 20:28 are a little-endian file offset
// pointing at a verbatim ID3v2 tag appended near the end of the file. There
// is no general chunk list to walk; the metadata pointer is the only
// structure this format exposes.
package dsf

import (
	"encoding/binary"

	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/id3v2"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// metadataPointerOffset is the fixed byte offset of the 8-byte little-endian
// metadata chunk pointer within the DSD header; fileSizeOffset is the
// total-file-size field that precedes it.
const (
	fileSizeOffset        = 12
	metadataPointerOffset = 20
)

// Layout records the pointer field offset and where the ID3v2 tag currently
// sits so Save can append a new tag and rewrite the pointer.
type Layout struct {
	PointerFieldOffset int64
	TagStart           int64 // 0 if absent
}

// Read validates the "DSD " magic, follows the metadata pointer (if
// non-zero) to decode a trailing ID3v2 tag, and reads the "fmt " chunk for
// sample rate/channel/bit-depth properties.
func Read(stream *filestream.Stream, style mediainfo.Style) (*tagmodel.CombinedTag, *mediainfo.Properties, *Layout, error) {
	header, err := stream.ReadAt(0, 28)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(header) < 28 || string(header[0:4]) != "DSD " {
		return nil, nil, nil, mmerr.CorruptFilef("dsf: missing DSD header")
	}
	pointer := int64(binary.LittleEndian.Uint64(header[metadataPointerOffset : metadataPointerOffset+8]))

	layout := &Layout{PointerFieldOffset: metadataPointerOffset}
	var tag *id3v2.Tag
	if pointer > 0 {
		head, err := stream.ReadAt(pointer, 10)
		if err == nil && len(head) == 10 && string(head[0:3]) == "ID3" {
			hdr, err := id3v2.DecodeHeader(head)
			if err == nil {
				total := hdr.TotalSize()
				body, err := stream.ReadAt(pointer, int(total))
				if err == nil {
					if t, err := id3v2.Decode(body); err == nil {
						tag = t
						layout.TagStart = pointer
					}
				}
			}
		}
	}
	if tag == nil {
		tag = id3v2.New(id3v2.Version23)
	}

	var props *mediainfo.Properties
	if style != mediainfo.StyleNone {
		p, err := extractProperties(stream, header)
		if err == nil {
			props = &p
		}
	}
	return tagmodel.NewCombinedTag(tag), props, layout, nil
}

// extractProperties reads the "fmt " chunk, which in a DSF file always
// immediately follows the 28-byte header.
func extractProperties(stream *filestream.Stream, header []byte) (mediainfo.Properties, error) {
	fmtHdr, err := stream.ReadAt(28, 12)
	if err != nil || len(fmtHdr) < 12 || string(fmtHdr[0:4]) != "fmt " {
		return mediainfo.Properties{}, mmerr.CorruptFilef("dsf: missing fmt chunk")
	}
	chunkSize := int64(binary.LittleEndian.Uint64(fmtHdr[4:12]))
	body, err := stream.ReadAt(28+12, int(chunkSize-12))
	if err != nil || len(body) < 32 {
		return mediainfo.Properties{}, mmerr.Truncatedf("dsf: fmt chunk truncated")
	}
	channels := int(binary.LittleEndian.Uint32(body[8:12]))
	sampleRate := int(binary.LittleEndian.Uint32(body[12:16]))
	bitsPerSample := int(binary.LittleEndian.Uint32(body[16:20]))
	sampleCount := int64(binary.LittleEndian.Uint64(body[20:28]))

	var durationMs int64
	if sampleRate > 0 {
		durationMs = sampleCount * 1000 / int64(sampleRate)
	}
	return mediainfo.Properties{
		Duration:      durationMs,
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bitsPerSample,
		Codec:         "DSD",
	}, nil
}

// Save appends a freshly encoded ID3v2 tag at the file's end (or in place
// of the existing trailing tag) and rewrites the header's metadata pointer.
func Save(stream *filestream.Stream, layout *Layout, tag *tagmodel.CombinedTag) error {
	id3Tag := findID3Child(tag)
	if id3Tag == nil || id3Tag.IsEmpty() {
		if layout.TagStart > 0 {
			if err := stream.Remove(layout.TagStart, stream.Length()-layout.TagStart); err != nil {
				return err
			}
			layout.TagStart = 0
			return writeHeaderFields(stream, layout, 0)
		}
		return nil
	}

	body := id3Tag.Encode()
	var start, oldLen int64
	if layout.TagStart > 0 {
		start, oldLen = layout.TagStart, stream.Length()-layout.TagStart
	} else {
		start, oldLen = stream.Length(), 0
	}
	if err := stream.Insert(body, start, oldLen); err != nil {
		return err
	}
	layout.TagStart = start
	return writeHeaderFields(stream, layout, start)
}

// writeHeaderFields rewrites the DSD chunk's total-file-size field and the
// metadata pointer after the tail has been spliced.
func writeHeaderFields(stream *filestream.Stream, layout *Layout, pointer int64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(stream.Length()))
	if err := stream.Insert(buf, fileSizeOffset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(buf, uint64(pointer))
	return stream.Insert(buf, layout.PointerFieldOffset, 8)
}

func findID3Child(tag *tagmodel.CombinedTag) *id3v2.Tag {
	for _, c := range tag.Children() {
		if t, ok := c.(*id3v2.Tag); ok {
			return t
		}
	}
	return nil
}
