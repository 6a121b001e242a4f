// Package riff walks a RIFF chunk list: WAV and AVI files
// built from a "RIFF" header (4-byte form type, e.g. "WAVE") followed by a
// flat sequence of [4-byte id][4-byte little-endian size][payload] chunks,
// word-aligned (odd-length chunks are followed by one pad byte). Tags live
// in an "ID3 " chunk carrying a verbatim ID3v2 tag.
package riff

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
	start   int64 // start of the 8-byte chunk header
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

// Layout records the ID3 chunk's span (if any) and the container end, so
// Save can splice without a second scan.
type Layout struct {
	ID3ChunkStart int64 // -1 if absent
	ID3ChunkEnd   int64
	ContainerEnd  int64 // end of the RIFF payload; a fresh ID3 chunk is appended here
}

// Read requires a leading "RIFF....<form>" header, scans the flat chunk
// list for "ID3 " (metadata) and "fmt " (audio format, for Properties), and
// decodes the verbatim ID3v2 tag inside the ID3 chunk if present.
func Read(stream *filestream.Stream, style mediainfo.Style) (*tagmodel.CombinedTag, *mediainfo.Properties, *Layout, error) {
	header, err := stream.ReadAt(0, 12)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(header) < 12 || string(header[0:4]) != "RIFF" {
		return nil, nil, nil, mmerr.CorruptFilef("riff: missing RIFF header")
	}
	riffSize := int64(binary.LittleEndian.Uint32(header[4:8]))
	form := string(header[8:12])

	end := 8 + riffSize
	if fileLen := stream.Length(); end > fileLen {
		end = fileLen
	}

	chunks, err := scanChunks(stream, 12, end)
	if err != nil {
		return nil, nil, nil, err
	}

	layout := &Layout{ID3ChunkStart: -1}
	var id3Tag *id3v2.Tag
	var fmtChunk *chunk
	for i := range chunks {
		c := &chunks[i]
		switch c.id {
		case "ID3 ", "id3 ":
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
		case "fmt ":
			fmtChunk = c
		}
	}
	layout.ContainerEnd = end
	if id3Tag == nil {
		id3Tag = id3v2.New(id3v2.Version23)
	}

	var props *mediainfo.Properties
	if style != mediainfo.StyleNone && fmtChunk != nil {
		p, err := decodeFmtProperties(stream, *fmtChunk, form)
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
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		c := chunk{id: id, start: pos, dataLen: size}
		if c.end() > end {
			return nil, mmerr.CorruptFilef("riff: chunk %q overruns container", id)
		}
		out = append(out, c)
		pos = c.end()
	}
	return out, nil
}

func decodeFmtProperties(stream *filestream.Stream, fmtChunk chunk, form string) (mediainfo.Properties, error) {
	body, err := stream.ReadAt(fmtChunk.dataStart(), int(fmtChunk.dataLen))
	if err != nil || len(body) < 16 {
		return mediainfo.Properties{}, mmerr.Truncatedf("riff: fmt chunk truncated")
	}
	channels := int(binary.LittleEndian.Uint16(body[2:4]))
	sampleRate := int(binary.LittleEndian.Uint32(body[4:8]))
	byteRate := int(binary.LittleEndian.Uint32(body[8:12]))
	bitsPerSample := int(binary.LittleEndian.Uint16(body[14:16]))
	codec := "PCM"
	if form == "AVI " {
		codec = "AVI"
	}
	return mediainfo.Properties{
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bitsPerSample,
		Bitrate:       byteRate * 8 / 1000,
		Codec:         codec,
	}, nil
}

// Save re-renders the ID3v2 tag, splices it into the ID3 chunk region (or
// appends a fresh "ID3 " chunk at the container end if none existed,
// leaving every other chunk byte-identical in place), then rewrites the
// outer RIFF size field.
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
		return growRIFFSize(stream, -oldLen)
	}

	body := id3Tag.Encode()
	chunkBody := body
	if len(chunkBody)%2 == 1 {
		chunkBody = append(chunkBody, 0)
	}
	newChunk := make([]byte, 8+len(chunkBody))
	copy(newChunk[0:4], "ID3 ")
	binary.LittleEndian.PutUint32(newChunk[4:8], uint32(len(body)))
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
		return growRIFFSize(stream, delta)
	}
	return nil
}

func growRIFFSize(stream *filestream.Stream, delta int64) error {
	szBuf, err := stream.ReadAt(4, 4)
	if err != nil {
		return err
	}
	size := int64(binary.LittleEndian.Uint32(szBuf))
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(size+delta))
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
