// Package ogg demuxes an Ogg page stream into logical packets and decodes/
// encodes the comment header packet carried by each of the Vorbis, Opus,
// Ogg FLAC, and Speex mappings. Every mapping's comment
// header reduces to the same Xiph vendor+NAME=value block once its codec
// magic prefix (and, for Ogg FLAC, its native FLAC block header) is
// stripped, so all four are handled through the xiph package.
package ogg

import (
	"encoding/binary"

	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
	"github.com/cesargomez89/navidrums/internal/mediameta/xiph"
)

// Magic is the literal Ogg page capture pattern.
var Magic = []byte("OggS")

// Codec identifies which mapping owns a logical bitstream.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecVorbis
	CodecOpus
	CodecFLAC
	CodecSpeex
)

type page struct {
	start      int64
	headerLen  int64
	segTable   []byte
	bodyStart  int64
	bodyLen    int64
	serial     uint32
	granule    uint64
	seq        uint32
	headerType byte
}

func (p page) end() int64 { return p.bodyStart + p.bodyLen }

func scanPages(stream *filestream.Stream) ([]page, error) {
	var out []page
	pos := int64(0)
	length := stream.Length()
	for pos+27 <= length {
		hdr, err := stream.ReadAt(pos, 27)
		if err != nil {
			return nil, err
		}
		if len(hdr) < 27 || string(hdr[0:4]) != "OggS" {
			break
		}
		segCount := int(hdr[26])
		segTable, err := stream.ReadAt(pos+27, segCount)
		if err != nil {
			return nil, err
		}
		if len(segTable) < segCount {
			return nil, mmerr.Truncatedf("ogg: segment table truncated")
		}
		bodyLen := int64(0)
		for _, s := range segTable {
			bodyLen += int64(s)
		}
		p := page{
			start:      pos,
			headerLen:  27 + int64(segCount),
			segTable:   segTable,
			bodyStart:  pos + 27 + int64(segCount),
			bodyLen:    bodyLen,
			serial:     binary.LittleEndian.Uint32(hdr[14:18]),
			granule:    binary.LittleEndian.Uint64(hdr[6:14]),
			seq:        binary.LittleEndian.Uint32(hdr[18:22]),
			headerType: hdr[5],
		}
		out = append(out, p)
		pos = p.end()
	}
	return out, nil
}

// Stream is the demuxed layout needed to locate and rewrite the comment
// packet: its codec, the pages carrying it, and every page of the file (so
// Save can splice cleanly and recompute CRCs for touched pages).
type Stream struct {
	Codec        Codec
	Serial       uint32
	pages        []page
	commentStart int64 // body offset of the comment packet's first byte
	commentEnd   int64 // body offset one past its last byte (single page only)
	commentPage  int   // index into pages of the page holding the comment packet
	prefixLen    int   // codec magic (+ FLAC block header) bytes preceding the Xiph block within the packet
}

// Read demuxes all pages, selects the first bitstream's codec from its
// identification packet, locates the comment packet, and decodes it.
func Read(stream *filestream.Stream, style mediainfo.Style) (*tagmodel.CombinedTag, *mediainfo.Properties, *Stream, error) {
	pages, err := scanPages(stream)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(pages) == 0 {
		return nil, nil, nil, mmerr.CorruptFilef("ogg: no pages found")
	}
	serial := pages[0].serial

	idData, err := readPacketBytes(stream, pages, serial, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	codec := identifyCodec(idData)
	if codec == CodecUnknown {
		return nil, nil, nil, mmerr.CorruptFilef("ogg: unrecognized bitstream mapping")
	}
	prefixLen := commentPrefixLen(codec)

	commentData, commentPageIdx, commentByteRange, err := readPacketWithLocation(stream, pages, serial, 1)
	if err != nil {
		return nil, nil, nil, err
	}
	if int64(len(commentData)) != commentByteRange[1]-commentByteRange[0] {
		// the comment packet spans more than one page; this pipeline only
		// rewrites a comment packet confined to a single page (see Save).
		return nil, nil, nil, mmerr.UnsupportedTagOperationf("ogg: comment packet spans multiple pages")
	}
	xiphBody := commentData[prefixLen:]
	xiphTag, err := xiph.Decode(xiphBody)
	if err != nil {
		xiphTag = xiph.New("")
	}

	fs := &Stream{
		Codec: codec, Serial: serial, pages: pages,
		commentStart: commentByteRange[0], commentEnd: commentByteRange[1],
		commentPage: commentPageIdx, prefixLen: prefixLen,
	}

	var props *mediainfo.Properties
	if style != mediainfo.StyleNone {
		p := propertiesFor(codec, idData, pages, serial)
		props = &p
	}
	return tagmodel.NewCombinedTag(xiphTag), props, fs, nil
}

// readPacketBytes reconstructs the Nth packet (0-indexed) of serial by
// reading actual segment bytes off stream.
func readPacketBytes(stream *filestream.Stream, pages []page, serial uint32, n int) ([]byte, error) {
	data, _, _, err := readPacketWithLocation(stream, pages, serial, n)
	return data, err
}

// readPacketWithLocation reconstructs the Nth packet (0-indexed) of serial,
// concatenating segments across pages for a packet that spans more than
// one (a 255-byte "lacing value" segment means the packet continues into
// the next segment, possibly on the next page). It returns the packet
// bytes, the index of the page its first byte starts on, and its
// [start,end) byte offsets within that page's body.
func readPacketWithLocation(stream *filestream.Stream, pages []page, serial uint32, n int) ([]byte, int, [2]int64, error) {
	packetIdx := 0
	var data []byte
	inTarget := false
	var startOff int64
	var firstPageIdx int
	for pi, p := range pages {
		if p.serial != serial {
			continue
		}
		segOff := int64(0)
		for _, segLen := range p.segTable {
			if packetIdx == n {
				if !inTarget {
					inTarget = true
					startOff = segOff
					firstPageIdx = pi
				}
				segData, err := stream.ReadAt(p.bodyStart+segOff, int(segLen))
				if err != nil {
					return nil, 0, [2]int64{}, err
				}
				data = append(data, segData...)
			}
			segOff += int64(segLen)
			if segLen < 255 {
				if packetIdx == n {
					return data, firstPageIdx, [2]int64{startOff, segOff}, nil
				}
				packetIdx++
			}
		}
	}
	return nil, 0, [2]int64{}, mmerr.CorruptFilef("ogg: packet %d not found for serial %d", n, serial)
}

func identifyCodec(idPacket []byte) Codec {
	switch {
	case len(idPacket) >= 7 && idPacket[0] == 0x01 && string(idPacket[1:7]) == "vorbis":
		return CodecVorbis
	case len(idPacket) >= 8 && string(idPacket[0:8]) == "OpusHead":
		return CodecOpus
	case len(idPacket) >= 5 && idPacket[0] == 0x7F && string(idPacket[1:5]) == "FLAC":
		return CodecFLAC
	case len(idPacket) >= 8 && string(idPacket[0:8]) == "Speex   ":
		return CodecSpeex
	}
	return CodecUnknown
}

// commentPrefixLen returns how many bytes of the comment packet precede the
// Xiph vendor+comment block, per mapping: Vorbis/Speex use a 7-byte
// "\x03vorbis" packet-type marker, Opus uses an 8-byte "OpusTags" marker,
// and Ogg FLAC wraps a native FLAC metadata block header (4 bytes) around
// an otherwise identical Xiph block.
func commentPrefixLen(codec Codec) int {
	switch codec {
	case CodecVorbis, CodecSpeex:
		return 7
	case CodecOpus:
		return 8
	case CodecFLAC:
		return 4
	}
	return 0
}

func propertiesFor(codec Codec, idPacket []byte, pages []page, serial uint32) mediainfo.Properties {
	var sampleRate, channels int
	switch codec {
	case CodecVorbis:
		if len(idPacket) >= 16 {
			channels = int(idPacket[11])
			sampleRate = int(binary.LittleEndian.Uint32(idPacket[12:16]))
		}
	case CodecOpus:
		sampleRate = 48000
		if len(idPacket) >= 10 {
			channels = int(idPacket[9])
		}
	case CodecFLAC:
		sampleRate = 0 // native FLAC StreamInfo follows later packets; left to an accurate-style pass
	}
	var lastGranule uint64
	for _, p := range pages {
		if p.serial == serial {
			lastGranule = p.granule
		}
	}
	var durationMs int64
	if sampleRate > 0 {
		durationMs = int64(lastGranule * 1000 / uint64(sampleRate))
	}
	return mediainfo.Properties{Duration: durationMs, SampleRate: sampleRate, Channels: channels, Codec: codecName(codec)}
}

func codecName(c Codec) string {
	switch c {
	case CodecVorbis:
		return "Vorbis"
	case CodecOpus:
		return "Opus"
	case CodecFLAC:
		return "FLAC"
	case CodecSpeex:
		return "Speex"
	}
	return ""
}

// Save re-renders the comment packet and re-laces it into its original
// page, recomputing that page's segment table, body and CRC. This
// implementation handles the common case where the rewritten comment
// packet still fits within a single Ogg page (a page holds up to 65025
// body bytes via 255 segments of 255 bytes); a comment block that grows
// past that limit would need to spill into additional pages with
// renumbered sequence numbers for every subsequent page of the stream,
// which this pipeline does not yet implement.
func Save(stream *filestream.Stream, fs *Stream, tag *tagmodel.CombinedTag) error {
	xiphTag := findXiphChild(tag)
	if xiphTag == nil {
		xiphTag = xiph.New("")
	}
	vcBody := xiph.Encode(xiphTag)

	prefixLen := commentPrefixLen(fs.Codec)
	newPacket := make([]byte, 0, prefixLen+len(vcBody))
	newPacket = append(newPacket, commentPrefixBytes(fs.Codec, len(vcBody))...)
	newPacket = append(newPacket, vcBody...)

	p := fs.pages[fs.commentPage]

	// The comment's page may carry other packets too (Vorbis puts the setup
	// header on the same page): keep their segments and body bytes, replace
	// only the comment's lacing values and byte span.
	var segsBefore, segsAfter []byte
	segOff := int64(0)
	for _, segLen := range p.segTable {
		switch {
		case segOff < fs.commentStart:
			segsBefore = append(segsBefore, segLen)
		case segOff >= fs.commentEnd:
			segsAfter = append(segsAfter, segLen)
		}
		segOff += int64(segLen)
	}
	commentSegs := laceSegments(len(newPacket))

	segTable := make([]byte, 0, len(segsBefore)+len(commentSegs)+len(segsAfter))
	segTable = append(segTable, segsBefore...)
	segTable = append(segTable, commentSegs...)
	segTable = append(segTable, segsAfter...)
	if len(segTable) > 255 {
		return mmerr.UnsupportedTagOperationf("ogg: comment packet too large for a single page (%d bytes)", len(newPacket))
	}

	oldBody, err := stream.ReadAt(p.bodyStart, int(p.bodyLen))
	if err != nil {
		return err
	}
	newPageBody := make([]byte, 0, fs.commentStart+int64(len(newPacket))+(p.bodyLen-fs.commentEnd))
	newPageBody = append(newPageBody, oldBody[:fs.commentStart]...)
	newPageBody = append(newPageBody, newPacket...)
	newPageBody = append(newPageBody, oldBody[fs.commentEnd:]...)

	newHeaderLen := int64(27 + len(segTable))
	newPage := make([]byte, newHeaderLen+int64(len(newPageBody)))
	copy(newPage[0:4], Magic)
	newPage[4] = 0 // version
	newPage[5] = p.headerType
	binary.LittleEndian.PutUint64(newPage[6:14], p.granule)
	binary.LittleEndian.PutUint32(newPage[14:18], p.serial)
	binary.LittleEndian.PutUint32(newPage[18:22], p.seq)
	// CRC at [22:26] computed after the full page bytes are assembled.
	newPage[26] = byte(len(segTable))
	copy(newPage[27:], segTable)
	copy(newPage[int(newHeaderLen):], newPageBody)
	crc := crc32Ogg(newPage)
	binary.LittleEndian.PutUint32(newPage[22:26], crc)

	oldPageLen := p.headerLen + p.bodyLen
	if err := stream.Insert(newPage, p.start, oldPageLen); err != nil {
		return err
	}
	delta := int64(len(newPage)) - oldPageLen
	if delta != 0 {
		for i := range fs.pages {
			if fs.pages[i].start > p.start {
				fs.pages[i].start += delta
				fs.pages[i].bodyStart += delta
			}
		}
		fs.pages[fs.commentPage].headerLen = newHeaderLen
		fs.pages[fs.commentPage].bodyStart = p.start + newHeaderLen
		fs.pages[fs.commentPage].bodyLen = int64(len(newPageBody))
		fs.pages[fs.commentPage].segTable = segTable
		fs.commentEnd = fs.commentStart + int64(len(newPacket))
	}
	return nil
}

func laceSegments(n int) []byte {
	var out []byte
	for n >= 255 {
		out = append(out, 255)
		n -= 255
	}
	out = append(out, byte(n))
	return out
}

// commentPrefixBytes builds the bytes preceding the Xiph block in the
// comment packet, per mapping; vcBodyLen is needed for Ogg FLAC's native
// 3-byte big-endian block-size field.
func commentPrefixBytes(codec Codec, vcBodyLen int) []byte {
	switch codec {
	case CodecVorbis, CodecSpeex:
		return append([]byte{0x03}, []byte("vorbis")...)
	case CodecOpus:
		return []byte("OpusTags")
	case CodecFLAC:
		return []byte{0x04, byte(vcBodyLen >> 16), byte(vcBodyLen >> 8), byte(vcBodyLen)}
	}
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

// crc32Ogg computes the CRC-32 variant Ogg uses for its page checksum:
// polynomial 0x04c11db7, no reflection, zero initial value, over the page
// with the checksum field itself zeroed.
func crc32Ogg(page []byte) uint32 {
	buf := make([]byte, len(page))
	copy(buf, page)
	buf[22], buf[23], buf[24], buf[25] = 0, 0, 0, 0
	var crc uint32
	for _, b := range buf {
		crc = oggCRCTable[byte(crc>>24)^b] ^ (crc << 8)
	}
	return crc
}

var oggCRCTable = buildOggCRCTable()

func buildOggCRCTable() [256]uint32 {
	const poly = 0x04c11db7
	var table [256]uint32
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}
