package id3v2

import (
	"github.com/cesargomez89/navidrums/internal/mediameta/bytebuffer"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// CommentFrame is the decoded content of a COMM frame: language (3 bytes),
// short description, and full text.
type CommentFrame struct {
	Language    string
	Description string
	Text        string
}

func decodeComment(data []byte) (CommentFrame, bool) {
	if len(data) < 4 {
		return CommentFrame{}, false
	}
	enc := data[0]
	lang := string(data[1:4])
	descBytes, rest := splitTerminated(data[4:], enc)
	desc := bytebuffer.DecodeString(descBytes, encodingToCodec(enc))
	text := bytebuffer.DecodeString(trimTrailingTerminator(rest, enc), encodingToCodec(enc))
	return CommentFrame{Language: lang, Description: desc, Text: text}, true
}

func encodeComment(c CommentFrame, v Version) []byte {
	enc := pickEncoding(c.Description+c.Text, v)
	lang := c.Language
	if len(lang) != 3 {
		lang = "eng"
	}
	buf := &bytebuffer.Buffer{}
	buf.Append(codecToEncodingByte(enc))
	buf.Append([]byte(lang)...)
	buf.Append(bytebuffer.EncodeString(c.Description, enc)...)
	buf.Append(make([]byte, terminatorLen(codecToEncodingByte(enc)))...)
	buf.Append(bytebuffer.EncodeString(c.Text, enc)...)
	return buf.Bytes()
}

// LyricsFrame is the decoded content of a USLT frame.
type LyricsFrame struct {
	Language    string
	Description string
	Text        string
}

func decodeLyrics(data []byte) (LyricsFrame, bool) {
	c, ok := decodeComment(data)
	return LyricsFrame(c), ok
}

func encodeLyrics(l LyricsFrame, v Version) []byte {
	return encodeComment(CommentFrame(l), v)
}

// pictureTypeToModel maps the ID3v2 attached-picture type byte to
// tagmodel.PictureKind (same ordering, both controlled enumerations per
// ID3v2 §4.15).
func pictureTypeToModel(b byte) tagmodel.PictureKind { return tagmodel.PictureKind(b) }
func modelToPictureType(k tagmodel.PictureKind) byte { return byte(k) }

// decodePicture decodes an APIC (v2.3/2.4) or PIC (v2.2) frame body.
// isV22 selects the PIC layout, which uses a 3-byte image-format code
// instead of a MIME-type string.
func decodePicture(data []byte, isV22 bool) (tagmodel.Picture, bool) {
	if len(data) < 2 {
		return tagmodel.Picture{}, false
	}
	enc := data[0]
	rest := data[1:]

	var mime string
	if isV22 {
		if len(rest) < 3 {
			return tagmodel.Picture{}, false
		}
		mime = imageFormatToMime(string(rest[:3]))
		rest = rest[3:]
	} else {
		mimeBytes, r := splitTerminated(rest, encLatin1)
		mime = string(mimeBytes)
		rest = r
	}
	if len(rest) < 1 {
		return tagmodel.Picture{}, false
	}
	kind := pictureTypeToModel(rest[0])
	rest = rest[1:]

	descBytes, r := splitTerminated(rest, enc)
	desc := bytebuffer.DecodeString(descBytes, encodingToCodec(enc))
	return tagmodel.Picture{MimeType: mime, Kind: kind, Description: desc, Data: r}, true
}

func encodePicture(p tagmodel.Picture, v Version) []byte {
	enc := pickEncoding(p.Description, v)
	buf := &bytebuffer.Buffer{}
	buf.Append(codecToEncodingByte(enc))
	if v == Version22 {
		buf.Append([]byte(mimeToImageFormat(p.MimeType))...)
	} else {
		buf.Append([]byte(p.MimeType)...)
		buf.Append(0)
	}
	buf.Append(modelToPictureType(p.Kind))
	buf.Append(bytebuffer.EncodeString(p.Description, enc)...)
	buf.Append(make([]byte, terminatorLen(codecToEncodingByte(enc)))...)
	buf.Append(p.Data...)
	return buf.Bytes()
}

func imageFormatToMime(code string) string {
	switch code {
	case "PNG":
		return "image/png"
	case "JPG":
		return "image/jpeg"
	default:
		return "image/" + code
	}
}

func mimeToImageFormat(mime string) string {
	switch mime {
	case "image/png":
		return "PNG"
	case "image/jpeg", "image/jpg":
		return "JPG"
	default:
		return "---"
	}
}

// UFIDFrame is a unique file identifier (UFID): an owner identifier and
// arbitrary binary identifier bytes.
type UFIDFrame struct {
	Owner      string
	Identifier []byte
}

func decodeUFID(data []byte) (UFIDFrame, bool) {
	owner, rest := splitTerminated(data, encLatin1)
	return UFIDFrame{Owner: string(owner), Identifier: rest}, true
}

func encodeUFID(u UFIDFrame) []byte {
	buf := &bytebuffer.Buffer{}
	buf.Append([]byte(u.Owner)...)
	buf.Append(0)
	buf.Append(u.Identifier...)
	return buf.Bytes()
}

// PopularimeterFrame (POPM): an email, a rating 0-255, and a play counter.
type PopularimeterFrame struct {
	Email   string
	Rating  byte
	Counter uint64
}

func decodePopularimeter(data []byte) (PopularimeterFrame, bool) {
	email, rest := splitTerminated(data, encLatin1)
	if len(rest) < 1 {
		return PopularimeterFrame{Email: string(email)}, true
	}
	rating := rest[0]
	counter := uint64(0)
	for _, b := range rest[1:] {
		counter = counter<<8 | uint64(b)
	}
	return PopularimeterFrame{Email: string(email), Rating: rating, Counter: counter}, true
}

func encodePopularimeter(p PopularimeterFrame) []byte {
	buf := &bytebuffer.Buffer{}
	buf.Append([]byte(p.Email)...)
	buf.Append(0, p.Rating)
	if p.Counter > 0 {
		var tmp []byte
		c := p.Counter
		for c > 0 {
			tmp = append([]byte{byte(c)}, tmp...)
			c >>= 8
		}
		buf.Append(tmp...)
	}
	return buf.Bytes()
}

// decodePlayCounter decodes a PCNT frame: a variable-width big-endian
// counter that grows beyond 32 bits as needed.
func decodePlayCounter(data []byte) uint64 {
	var v uint64
	for _, b := range data {
		v = v<<8 | uint64(b)
	}
	return v
}

func encodePlayCounter(v uint64) []byte {
	buf := make([]byte, 4)
	for i := 3; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	for v > 0 {
		buf = append([]byte{byte(v)}, buf...)
		v >>= 8
	}
	return buf
}

// PrivateFrame (PRIV): owner identifier plus arbitrary binary data.
type PrivateFrame struct {
	Owner string
	Data  []byte
}

func decodePrivate(data []byte) (PrivateFrame, bool) {
	owner, rest := splitTerminated(data, encLatin1)
	return PrivateFrame{Owner: string(owner), Data: rest}, true
}

func encodePrivate(p PrivateFrame) []byte {
	buf := &bytebuffer.Buffer{}
	buf.Append([]byte(p.Owner)...)
	buf.Append(0)
	buf.Append(p.Data...)
	return buf.Bytes()
}

// RelativeVolumeFrame (RVA2): an identification string plus per-channel
// volume adjustment entries. Only the master-channel entry is modeled; other
// channels are preserved verbatim via Frame.Data on save.
type RelativeVolumeFrame struct {
	Identification string
	ChannelType    byte
	VolumeAdjust   int16
	PeakBits       byte
	Peak           []byte
}

func decodeRelativeVolume(data []byte) (RelativeVolumeFrame, bool) {
	id, rest := splitTerminated(data, encLatin1)
	if len(rest) < 4 {
		return RelativeVolumeFrame{Identification: string(id)}, true
	}
	channel := rest[0]
	adjust := int16(uint16(rest[1])<<8 | uint16(rest[2]))
	peakBits := rest[3]
	peakBytes := (int(peakBits) + 7) / 8
	var peak []byte
	if len(rest) >= 4+peakBytes {
		peak = rest[4 : 4+peakBytes]
	}
	return RelativeVolumeFrame{
		Identification: string(id),
		ChannelType:    channel,
		VolumeAdjust:   adjust,
		PeakBits:       peakBits,
		Peak:           peak,
	}, true
}

func encodeRelativeVolume(r RelativeVolumeFrame) []byte {
	buf := &bytebuffer.Buffer{}
	buf.Append([]byte(r.Identification)...)
	buf.Append(0)
	buf.Append(r.ChannelType)
	bytebuffer.PutUint16(buf, uint16(r.VolumeAdjust), bytebuffer.BigEndian)
	buf.Append(r.PeakBits)
	buf.Append(r.Peak...)
	return buf.Bytes()
}
