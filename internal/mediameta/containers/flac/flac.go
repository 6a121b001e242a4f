// Package flac walks the FLAC metadata-block chain: a
// literal "fLaC" magic (possibly preceded by an ID3v2 tag) followed by a
// sequence of [1-byte last-flag+type][3-byte big-endian size][payload]
// blocks, the first of which must be StreamInfo.
package flac

import (
	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/id3v2"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
	"github.com/cesargomez89/navidrums/internal/mediameta/xiph"
)

// Magic is the literal FLAC stream marker.
var Magic = []byte("fLaC")

// LocateMagic finds the offset of the "fLaC" marker, skipping a leading
// ID3v2 tag if one is present (a tolerated deviation some encoders write).
// It returns that tag, or nil if the file starts directly with "fLaC".
func LocateMagic(stream *filestream.Stream) (int64, *id3v2.Tag, error) {
	head, err := stream.ReadAt(0, 10)
	if err != nil {
		return 0, nil, err
	}
	if len(head) == 10 && string(head[0:3]) == "ID3" {
		hdr, err := id3v2.DecodeHeader(head)
		if err != nil {
			return 0, nil, err
		}
		total := hdr.TotalSize()
		body, err := stream.ReadAt(0, int(total))
		if err != nil {
			return 0, nil, err
		}
		tag, err := id3v2.Decode(body)
		if err != nil {
			return 0, nil, err
		}
		return total, tag, nil
	}
	return 0, nil, nil
}

// Block types, per the FLAC format reference.
const (
	BlockStreamInfo    = 0
	BlockPadding       = 1
	BlockApplication   = 2
	BlockSeekTable     = 3
	BlockVorbisComment = 4
	BlockCueSheet      = 5
	BlockPicture       = 6
)

type rawBlock struct {
	typ     byte
	payload []byte
}

// Stream is the decoded block chain plus the byte offsets needed to splice
// a rewrite back in.
type Stream struct {
	StreamInfo  []byte // verbatim StreamInfo payload, never re-encoded
	blocks      []rawBlock
	magicStart  int64 // offset of "fLaC", after any leading ID3v2 tag
	metaEnd     int64 // offset where audio frames begin
	paddingSize int64 // size of the single trailing padding block, 0 if none
}

// Read walks the block chain starting at magicStart (the caller has already
// located "fLaC", e.g. past a leading ID3v2 tag) and decodes the Xiph
// comment and Picture blocks into a CombinedTag.
func Read(stream *filestream.Stream, magicStart int64, style mediainfo.Style) (*tagmodel.CombinedTag, *mediainfo.Properties, *Stream, error) {
	magic, err := stream.ReadAt(magicStart, 4)
	if err != nil {
		return nil, nil, nil, err
	}
	if string(magic) != string(Magic) {
		return nil, nil, nil, mmerr.CorruptFilef("flac: missing fLaC magic")
	}

	pos := magicStart + 4
	fs := &Stream{magicStart: magicStart}
	var xiphTag *xiph.Tag
	var pictures []tagmodel.Picture
	first := true

	for {
		hdr, err := stream.ReadAt(pos, 4)
		if err != nil {
			return nil, nil, nil, err
		}
		if len(hdr) < 4 {
			return nil, nil, nil, mmerr.CorruptFilef("flac: truncated block header")
		}
		last := hdr[0]&0x80 != 0
		typ := hdr[0] & 0x7F
		size := int64(hdr[1])<<16 | int64(hdr[2])<<8 | int64(hdr[3])
		payloadOff := pos + 4

		if first {
			if typ != BlockStreamInfo {
				return nil, nil, nil, mmerr.CorruptFilef("flac: first block is not StreamInfo")
			}
			first = false
		}

		payload, err := stream.ReadAt(payloadOff, int(size))
		if err != nil {
			return nil, nil, nil, err
		}
		if int64(len(payload)) < size {
			return nil, nil, nil, mmerr.Truncatedf("flac: block body truncated")
		}

		switch typ {
		case BlockStreamInfo:
			fs.StreamInfo = payload
		case BlockPadding:
			fs.paddingSize = size
		case BlockVorbisComment:
			xiphTag, err = xiph.Decode(payload)
			if err != nil {
				xiphTag = xiph.New("")
			}
			fs.blocks = append(fs.blocks, rawBlock{typ: typ, payload: payload})
		case BlockPicture:
			if pic, ok := xiph.DecodePictureBlock(payload); ok {
				pictures = append(pictures, pic)
			}
		default:
			fs.blocks = append(fs.blocks, rawBlock{typ: typ, payload: payload})
		}

		pos = payloadOff + size
		if last {
			break
		}
	}
	fs.metaEnd = pos

	if xiphTag == nil {
		xiphTag = xiph.New("")
	}
	if len(pictures) > 0 {
		xiphTag.SetPictures(pictures)
	}
	combined := tagmodel.NewCombinedTag(xiphTag)

	var props *mediainfo.Properties
	if style != mediainfo.StyleNone {
		p := decodeStreamInfoProperties(fs.StreamInfo)
		props = &p
	}
	return combined, props, fs, nil
}

// decodeStreamInfoProperties extracts sample rate, channels, bit depth and
// duration from the 34-byte StreamInfo payload.
func decodeStreamInfoProperties(si []byte) mediainfo.Properties {
	if len(si) < 34 {
		return mediainfo.Properties{}
	}
	totalSamples := uint64(si[13]&0x0F)<<32 | uint64(si[14])<<24 | uint64(si[15])<<16 | uint64(si[16])<<8 | uint64(si[17])
	packed := uint32(si[10])<<16 | uint32(si[11])<<8 | uint32(si[12])
	sampleRate := int(packed >> 4)
	channels := int((packed>>1)&0x07) + 1
	bitsPerSample := int(((packed&0x01)<<4)|uint32(si[13])>>4) + 1
	var durationMs int64
	if sampleRate > 0 {
		durationMs = int64(totalSamples * 1000 / uint64(sampleRate))
	}
	return mediainfo.Properties{
		Duration:      durationMs,
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bitsPerSample,
		Codec:         "FLAC",
	}
}

// Save re-renders the VorbisComment and Picture blocks from tag, resizing
// the padding block so the metadata region keeps its original byte span
// whenever the new content fits; if it does not fit, the metadata region
// (and therefore the audio payload start) grows and the audio is shifted.
func Save(stream *filestream.Stream, fs *Stream, tag *tagmodel.CombinedTag) error {
	xiphTag := findXiphChild(tag)
	if xiphTag == nil {
		xiphTag = xiph.New("navidrums")
	}
	vcBody := xiph.Encode(xiphTag)

	var kept []rawBlock
	for _, b := range fs.blocks {
		if b.typ == BlockVorbisComment {
			continue
		}
		kept = append(kept, b)
	}
	kept = append(kept, rawBlock{typ: BlockVorbisComment, payload: vcBody})

	for _, p := range xiphTag.Pictures() {
		kept = append(kept, rawBlock{typ: BlockPicture, payload: xiph.EncodePictureBlock(p)})
	}

	newMetaBody := renderBlocks(fs.StreamInfo, kept, -1)
	oldMetaLen := fs.metaEnd - (fs.magicStart + 4)
	slack := oldMetaLen - int64(len(newMetaBody))
	if slack >= 4 {
		// New content fits within the old span with room for a padding
		// block (4-byte header + body): pad to fill it exactly so the
		// audio payload never moves. A slack of 1-3 bytes cannot hold a
		// padding block, so the metadata region shrinks by that much.
		newMetaBody = renderBlocks(fs.StreamInfo, kept, slack-4)
	}

	if err := stream.Insert(newMetaBody, fs.magicStart+4, oldMetaLen); err != nil {
		return err
	}
	fs.metaEnd = fs.magicStart + 4 + int64(len(newMetaBody))
	return nil
}

func findXiphChild(tag *tagmodel.CombinedTag) *xiph.Tag {
	for _, c := range tag.Children() {
		if x, ok := c.(*xiph.Tag); ok {
			return x
		}
	}
	return nil
}

// renderBlocks writes StreamInfo followed by blocks, then a single padding
// block of paddingLen bytes if paddingLen >= 0 (a negative paddingLen writes
// no padding block). The last written block gets the last-block flag.
func renderBlocks(streamInfo []byte, blocks []rawBlock, paddingLen int64) []byte {
	var out []byte
	out = append(out, writeBlockHeader(BlockStreamInfo, false, int64(len(streamInfo)))...)
	out = append(out, streamInfo...)

	allBlocks := blocks
	hasPadding := paddingLen >= 0
	for i, b := range allBlocks {
		last := !hasPadding && i == len(allBlocks)-1
		out = append(out, writeBlockHeader(b.typ, last, int64(len(b.payload)))...)
		out = append(out, b.payload...)
	}
	if hasPadding {
		out = append(out, writeBlockHeader(BlockPadding, true, paddingLen)...)
		out = append(out, make([]byte, paddingLen)...)
	} else if len(allBlocks) == 0 {
		out[0] |= 0x80
	}
	return out
}

func writeBlockHeader(typ byte, last bool, size int64) []byte {
	buf := make([]byte, 4)
	flags := typ & 0x7F
	if last {
		flags |= 0x80
	}
	buf[0] = flags
	buf[1] = byte(size >> 16)
	buf[2] = byte(size >> 8)
	buf[3] = byte(size)
	return buf
}
