package id3v2

import (
	"github.com/cesargomez89/navidrums/internal/mediameta/bytebuffer"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
)

// Version identifies the ID3v2 minor version in play.
type Version int

const (
	Version22 Version = 2
	Version23 Version = 3
	Version24 Version = 4
)

// HeaderSize is the fixed 10-byte ID3v2 tag header length.
const HeaderSize = 10

// Identifier is the 3-byte magic at the start of an ID3v2 tag.
var Identifier = []byte("ID3")

const (
	flagUnsynchronisation = 1 << 7
	flagExtendedHeader    = 1 << 6
	flagExperimental      = 1 << 5
	flagFooter            = 1 << 4 // v2.4 only
)

// Header is the decoded 10-byte ID3v2 tag header.
type Header struct {
	Version         Version
	Revision        byte
	Unsynchronised  bool
	ExtendedHeader  bool
	Experimental    bool
	Footer          bool
	Size            uint32 // size of the tag excluding the 10-byte header (and footer)
}

// DecodeHeader parses the first HeaderSize bytes of data as an ID3v2 header.
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, mmerr.Truncatedf("id3v2: header needs %d bytes, got %d", HeaderSize, len(data))
	}
	if string(data[0:3]) != "ID3" {
		return nil, mmerr.CorruptFilef("id3v2: missing ID3 identifier")
	}
	ver := Version(data[3])
	if ver != Version22 && ver != Version23 && ver != Version24 {
		return nil, mmerr.CorruptFilef("id3v2: unsupported version 2.%d", data[3])
	}
	size, err := bytebuffer.Synchsafe32(data[6:10])
	if err != nil {
		return nil, mmerr.CorruptFilef("id3v2: invalid header size: %v", err)
	}
	flags := data[5]
	return &Header{
		Version:        ver,
		Revision:       data[4],
		Unsynchronised: flags&flagUnsynchronisation != 0,
		ExtendedHeader: flags&flagExtendedHeader != 0,
		Experimental:   flags&flagExperimental != 0,
		Footer:         ver == Version24 && flags&flagFooter != 0,
		Size:           size,
	}, nil
}

// Encode renders the 10-byte header.
func (h *Header) Encode() []byte {
	buf := &bytebuffer.Buffer{}
	buf.Append('I', 'D', '3')
	buf.Append(byte(h.Version), h.Revision)
	var flags byte
	if h.Unsynchronised {
		flags |= flagUnsynchronisation
	}
	if h.ExtendedHeader {
		flags |= flagExtendedHeader
	}
	if h.Experimental {
		flags |= flagExperimental
	}
	if h.Footer && h.Version == Version24 {
		flags |= flagFooter
	}
	buf.Append(flags)
	bytebuffer.PutSynchsafe32(buf, h.Size)
	return buf.Bytes()
}

// TotalSize is the full on-disk byte length of the tag, header plus body
// plus optional footer.
func (h *Header) TotalSize() int64 {
	total := int64(HeaderSize) + int64(h.Size)
	if h.Footer {
		total += HeaderSize
	}
	return total
}
