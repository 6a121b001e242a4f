package id3v2

import (
	"github.com/cesargomez89/navidrums/internal/mediameta/bytebuffer"
)

const (
	frameFlagV23TagAlterPreservation  = 1 << 15
	frameFlagV23FileAlterPreservation = 1 << 14
	frameFlagV23ReadOnly              = 1 << 13
	frameFlagV23Compression           = 1 << 7
	frameFlagV23Encryption            = 1 << 6
	frameFlagV23GroupingIdentity      = 1 << 5

	frameFlagV24TagAlterPreservation  = 1 << 14
	frameFlagV24FileAlterPreservation = 1 << 13
	frameFlagV24ReadOnly              = 1 << 12
	frameFlagV24GroupingIdentity      = 1 << 6
	frameFlagV24Compression           = 1 << 3
	frameFlagV24Encryption            = 1 << 2
	frameFlagV24Unsynchronisation     = 1 << 1
	frameFlagV24DataLengthIndicator   = 1 << 0
)

// Frame is a single decoded ID3v2 frame. ID is always normalized to its
// 4-character v2.3/v2.4 form internally (e.g. "TIT2"); when the source tag
// was v2.2, OriginalV22 keeps the 3-character on-disk form so re-encoding an
// unrecognized v2.2 frame round-trips its original identifier.
type Frame struct {
	ID          string
	OriginalV22 string // non-empty only if decoded from a v2.2 tag
	Flags       uint16
	GroupID     byte
	Data        []byte // raw frame payload, always available
	Unknown     bool   // true if this frame type has no typed accessor
}

// id3v22To4 maps common 3-character v2.2 frame IDs to their 4-character
// v2.3/v2.4 equivalents. Unmapped IDs keep their 3-character form (which
// never collides with a real 4-char ID) and are marked Unknown.
var id3v22To4 = map[string]string{
	"TT1": "TIT1", "TT2": "TIT2", "TT3": "TIT3",
	"TP1": "TPE1", "TP2": "TPE2", "TP3": "TPE3", "TP4": "TPE4",
	"TAL": "TALB", "TYE": "TYER", "TDA": "TDAT", "TIM": "TIME",
	"TRK": "TRCK", "TPA": "TPOS", "TCO": "TCON", "TCM": "TCOM",
	"TEN": "TENC", "TLE": "TLEN", "TKE": "TKEY", "TLA": "TLAN",
	"TXT": "TEXT", "TPB": "TPUB", "TOA": "TOPE",
	"TCP": "TCMP",
	"COM": "COMM", "ULT": "USLT", "PIC": "APIC", "UFI": "UFID",
	"WXX": "WXXX", "TXX": "TXXX", "POP": "POPM", "CNT": "PCNT",
	"PRI": "PRIV", "RVA": "RVA2",
	"WCM": "WCOM", "WCP": "WCOP", "WOF": "WOAF", "WOR": "WOAR",
	"WOS": "WOAS", "WPB": "WPUB", "WAS": "WAS_",
}

var id3v4To22 = func() map[string]string {
	m := make(map[string]string, len(id3v22To4))
	for k, v := range id3v22To4 {
		m[v] = k
	}
	return m
}()

func frameIDSize(v Version) int {
	if v == Version22 {
		return 3
	}
	return 4
}

func frameHeaderSize(v Version) int {
	// id(3|4) + size(3|4) + flags(0|2)
	if v == Version22 {
		return 6
	}
	return 10
}

// readFrames decodes every frame in body (the tag content after the header,
// with unsynchronization already reversed if applicable). A frame cut off by
// the end of body ends decoding, keeping the frames decoded before it; a
// v2.4 frame with an invalid synchsafe size is skipped past its size field.
// Either case is reported via the returned corrupt flag.
func readFrames(body []byte, v Version) (frames []*Frame, corrupt bool) {
	pos := 0
	idLen := frameIDSize(v)
	for pos < len(body) {
		if pos+idLen > len(body) {
			break
		}
		// Padding: a run of zero bytes signals end of frames.
		if body[pos] == 0 {
			break
		}
		id := string(body[pos : pos+idLen])
		pos += idLen

		var size uint32
		var flags uint16
		if v == Version22 {
			if pos+3 > len(body) {
				corrupt = true
				break
			}
			size = uint32(body[pos])<<16 | uint32(body[pos+1])<<8 | uint32(body[pos+2])
			pos += 3
		} else {
			if pos+4 > len(body) {
				corrupt = true
				break
			}
			if v == Version24 {
				sz, err := bytebuffer.Synchsafe32(body[pos : pos+4])
				if err != nil {
					corrupt = true
					pos += 4
					continue
				}
				size = sz
			} else {
				size = uint32(body[pos])<<24 | uint32(body[pos+1])<<16 | uint32(body[pos+2])<<8 | uint32(body[pos+3])
			}
			pos += 4
			if pos+2 > len(body) {
				corrupt = true
				break
			}
			flags = uint16(body[pos])<<8 | uint16(body[pos+1])
			pos += 2
		}

		if pos+int(size) > len(body) {
			corrupt = true
			break
		}
		data := body[pos : pos+int(size)]
		pos += int(size)

		groupID := byte(0)
		hasGroup := (v == Version23 && flags&frameFlagV23GroupingIdentity != 0) ||
			(v == Version24 && flags&frameFlagV24GroupingIdentity != 0)
		if hasGroup && len(data) > 0 {
			groupID = data[0]
			data = data[1:]
		}
		if v == Version24 && flags&frameFlagV24Unsynchronisation != 0 {
			data = reverseUnsync(data)
			flags &^= frameFlagV24Unsynchronisation // Data is now plain; re-encode writes it plain
		}

		f := &Frame{Data: data, Flags: flags, GroupID: groupID}
		if v == Version22 {
			if mapped, ok := id3v22To4[id]; ok {
				f.ID = mapped
				f.OriginalV22 = id
			} else {
				f.ID = id
				f.OriginalV22 = id
				f.Unknown = true
			}
		} else {
			f.ID = id
		}
		frames = append(frames, f)
	}
	return frames, corrupt
}

// writeFrames renders frames back to their on-disk byte form for version v.
func writeFrames(frames []*Frame, v Version) []byte {
	buf := &bytebuffer.Buffer{}
	for _, f := range frames {
		id := f.ID
		if v == Version22 {
			if f.OriginalV22 != "" {
				id = f.OriginalV22
			} else if short, ok := id3v4To22[f.ID]; ok {
				id = short
			} else if len(id) > 3 {
				id = id[:3]
			}
		}
		buf.Append([]byte(id)...)

		data := f.Data
		if f.GroupID != 0 {
			data = append([]byte{f.GroupID}, data...)
		}

		if v == Version22 {
			bytebuffer.PutUint24(buf, uint32(len(data)), bytebuffer.BigEndian)
		} else if v == Version24 {
			bytebuffer.PutSynchsafe32(buf, uint32(len(data)))
		} else {
			bytebuffer.PutUint32(buf, uint32(len(data)), bytebuffer.BigEndian)
		}
		if v != Version22 {
			bytebuffer.PutUint16(buf, f.Flags, bytebuffer.BigEndian)
		}
		buf.Append(data...)
	}
	return buf.Bytes()
}

// applyUnsync inserts a 0x00 byte after every 0xFF so a naive MPEG
// sync-scanner will not match inside the tag.
func applyUnsync(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/4)
	for i, b := range data {
		out = append(out, b)
		if b == 0xFF && i+1 < len(data) {
			next := data[i+1]
			if next == 0x00 || next&0xE0 == 0xE0 {
				out = append(out, 0x00)
			}
		} else if b == 0xFF && i+1 == len(data) {
			out = append(out, 0x00)
		}
	}
	return out
}

// reverseUnsync removes every 0x00 that follows a 0xFF.
func reverseUnsync(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		out = append(out, data[i])
		if data[i] == 0xFF && i+1 < len(data) && data[i+1] == 0x00 {
			i++
		}
	}
	return out
}
