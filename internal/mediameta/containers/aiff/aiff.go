// Package aiff walks a FORM/AIFF chunk list: the same chunk-list shape as
// RIFF but big-endian, form type "AIFF" or "AIFC", and
// tags carried in an "ID3 " chunk. Odd-length chunks are padded to an even
// boundary; per this codec's read of the format, that pad byte is a purely
// on-disk alignment artifact and is never subtracted back out of a chunk's
// reported length on read.
package aiff

import (
	"encoding/binary"

	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/id3v2"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

type chunk struct {
	id      string
	start   int64
	dataLen int64
}

func (c chunk) dataStart() int64 { return c.start + 8 }
func (c chunk) paddedLen() int64 {
	if c.dataLen%2 == 1 {
		return c.dataLen + 1
	}
	return c.dataLen
}
func (c chunk) end() int64 { return c.dataStart() + c.paddedLen() }

// Layout mirrors riff.Layout: the ID3 chunk's span plus the container end
// where a fresh chunk is appended.
type Layout struct {
	ID3ChunkStart int64 // -1 if absent
	ID3ChunkEnd   int64
	ContainerEnd  int64
}

// Read requires a leading "FORM....AIFF"/"AIFC" header and scans the flat
// chunk list for "ID3 " (metadata) and "COMM" (audio format).
func Read(stream *filestream.Stream, style mediainfo.Style) (*tagmodel.CombinedTag, *mediainfo.Properties, *Layout, error) {
	header, err := stream.ReadAt(0, 12)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(header) < 12 || string(header[0:4]) != "FORM" {
		return nil, nil, nil, mmerr.CorruptFilef("aiff: missing FORM header")
	}
	formSize := int64(binary.BigEndian.Uint32(header[4:8]))
	form := string(header[8:12])
	if form != "AIFF" && form != "AIFC" {
		return nil, nil, nil, mmerr.CorruptFilef("aiff: unrecognized form type %q", form)
	}

	end := 8 + formSize
	if fileLen := stream.Length(); end > fileLen {
		end = fileLen
	}

	chunks, err := scanChunks(stream, 12, end)
	if err != nil {
		return nil, nil, nil, err
	}

	layout := &Layout{ID3ChunkStart: -1}
	var id3Tag *id3v2.Tag
	var commChunk *chunk
	for i := range chunks {
		c := &chunks[i]
		switch c.id {
		case "ID3 ":
			body, err := stream.ReadAt(c.dataStart(), int(c.dataLen))
			if err != nil {
				return nil, nil, nil, err
			}
			tag, err := id3v2.Decode(body)
			if err != nil {
				return nil, nil, nil, err
			}
			id3Tag = tag
			layout.ID3ChunkStart = c.start
			layout.ID3ChunkEnd = c.end()
		case "COMM":
			commChunk = c
		}
	}
	layout.ContainerEnd = end
	if id3Tag == nil {
		id3Tag = id3v2.New(id3v2.Version23)
	}

	var props *mediainfo.Properties
	if style != mediainfo.StyleNone && commChunk != nil {
		p, err := decodeCommProperties(stream, *commChunk)
		if err == nil {
			props = &p
		}
	}
	return tagmodel.NewCombinedTag(id3Tag), props, layout, nil
}

func scanChunks(stream *filestream.Stream, start, end int64) ([]chunk, error) {
	var out []chunk
	pos := start
	for pos+8 <= end {
		hdr, err := stream.ReadAt(pos, 8)
		if err != nil {
			return nil, err
		}
		if len(hdr) < 8 {
			break
		}
		id := string(hdr[0:4])
		size := int64(binary.BigEndian.Uint32(hdr[4:8]))
		c := chunk{id: id, start: pos, dataLen: size}
		if c.end() > end {
			return nil, mmerr.CorruptFilef("aiff: chunk %q overruns container", id)
		}
		out = append(out, c)
		pos = c.end()
	}
	return out, nil
}

// decodeCommProperties reads the 18-byte COMM body: channels(2), frames(4),
// bits-per-sample(2), sample rate as an 80-bit IEEE 754 extended float.
func decodeCommProperties(stream *filestream.Stream, commChunk chunk) (mediainfo.Properties, error) {
	body, err := stream.ReadAt(commChunk.dataStart(), int(commChunk.dataLen))
	if err != nil || len(body) < 18 {
		return mediainfo.Properties{}, mmerr.Truncatedf("aiff: COMM chunk truncated")
	}
	channels := int(binary.BigEndian.Uint16(body[0:2]))
	numFrames := int64(binary.BigEndian.Uint32(body[2:6]))
	bitsPerSample := int(binary.BigEndian.Uint16(body[6:8]))
	sampleRate := decodeExtendedFloat(body[8:18])

	var durationMs int64
	if sampleRate > 0 {
		durationMs = numFrames * 1000 / int64(sampleRate)
	}
	return mediainfo.Properties{
		Duration:      durationMs,
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bitsPerSample,
		Codec:         "AIFF",
	}, nil
}

// decodeExtendedFloat converts the 80-bit IEEE 754 extended precision value
// AIFF uses for sample rate into an integer Hz value.
func decodeExtendedFloat(b []byte) int {
	if len(b) < 10 {
		return 0
	}
	sign := b[0] & 0x80
	exponent := int(b[0]&0x7F)<<8 | int(b[1])
	mantissa := uint64(0)
	for i := 2; i < 10; i++ {
		mantissa = mantissa<<8 | uint64(b[i])
	}
	if exponent == 0 || sign != 0 {
		return 0
	}
	shift := 16383 + 63 - exponent
	if shift < 0 || shift > 63 {
		return 0
	}
	return int(mantissa >> uint(shift))
}

// Save re-renders the ID3v2 tag into the ID3 chunk region (or appends a
// fresh "ID3 " chunk at the container end) and rewrites the outer FORM
// size field.
func Save(stream *filestream.Stream, layout *Layout, tag *tagmodel.CombinedTag) error {
	id3Tag := findID3Child(tag)
	if id3Tag == nil {
		return nil
	}
	if id3Tag.IsEmpty() {
		if layout.ID3ChunkStart < 0 {
			return nil
		}
		oldLen := layout.ID3ChunkEnd - layout.ID3ChunkStart
		if err := stream.Remove(layout.ID3ChunkStart, oldLen); err != nil {
			return err
		}
		layout.ID3ChunkStart, layout.ID3ChunkEnd = -1, 0
		layout.ContainerEnd -= oldLen
		return growFORMSize(stream, -oldLen)
	}

	body := id3Tag.Encode()
	chunkBody := body
	if len(chunkBody)%2 == 1 {
		chunkBody = append(chunkBody, 0)
	}
	newChunk := make([]byte, 8+len(chunkBody))
	copy(newChunk[0:4], "ID3 ")
	binary.BigEndian.PutUint32(newChunk[4:8], uint32(len(body)))
	copy(newChunk[8:], chunkBody)

	var oldStart, oldLen int64
	if layout.ID3ChunkStart >= 0 {
		oldStart, oldLen = layout.ID3ChunkStart, layout.ID3ChunkEnd-layout.ID3ChunkStart
	} else {
		oldStart, oldLen = layout.ContainerEnd, 0
	}
	delta := int64(len(newChunk)) - oldLen
	if err := stream.Insert(newChunk, oldStart, oldLen); err != nil {
		return err
	}
	layout.ID3ChunkStart = oldStart
	layout.ID3ChunkEnd = oldStart + int64(len(newChunk))
	layout.ContainerEnd += delta
	if delta != 0 {
		return growFORMSize(stream, delta)
	}
	return nil
}

func growFORMSize(stream *filestream.Stream, delta int64) error {
	szBuf, err := stream.ReadAt(4, 4)
	if err != nil {
		return err
	}
	size := int64(binary.BigEndian.Uint32(szBuf))
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(size+delta))
	return stream.Insert(buf, 4, 4)
}

func findID3Child(tag *tagmodel.CombinedTag) *id3v2.Tag {
	for _, c := range tag.Children() {
		if t, ok := c.(*id3v2.Tag); ok {
			return t
		}
	}
	return nil
}
