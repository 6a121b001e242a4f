// Package asftag decodes and encodes the two ASF header objects that carry
// metadata: Content Description (title/author/copyright/description/rating)
// and Extended Content Description (arbitrary name/value attributes, used
// for WM/AlbumArtist, WM/TrackNumber, WM/Picture and friends).
package asftag

import (
	"strconv"
	"strings"

	"github.com/cesargomez89/navidrums/internal/mediameta/bytebuffer"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// GUID is a 16-byte ASF object identifier, stored in the byte order it
// appears on disk (already little-endian-mixed per the ASF GUID layout).
type GUID [16]byte

// Well-known object GUIDs.
var (
	ContentDescriptionGUID         = mustGUID("75B22633-668E-11CF-A6D9-00AA0062CE6C")
	ExtendedContentDescriptionGUID = mustGUID("D2D0A440-E307-11D2-97F0-00A0C95EA850")
)

func mustGUID(s string) GUID {
	s = strings.ReplaceAll(s, "-", "")
	raw, err := hexDecode(s)
	if err != nil || len(raw) != 16 {
		panic("asftag: invalid guid literal " + s)
	}
	var g GUID
	// Microsoft GUID wire layout: first 3 fields little-endian, last two
	// (clock-seq + node) big-endian/byte-for-byte.
	g[0], g[1], g[2], g[3] = raw[3], raw[2], raw[1], raw[0]
	g[4], g[5] = raw[5], raw[4]
	g[6], g[7] = raw[7], raw[6]
	copy(g[8:], raw[8:16])
	return g
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, mmerr.CorruptFilef("asftag: odd-length guid hex")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexNibble(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	default:
		return 0, mmerr.CorruptFilef("asftag: invalid hex digit %q", c)
	}
}

// Attribute data types for Extended Content Description entries.
const (
	DataTypeUnicode = 0
	DataTypeByteArr = 1
	DataTypeBool    = 2
	DataTypeDWORD   = 3
	DataTypeQWORD   = 4
	DataTypeWORD    = 5
)

// Attribute is one Extended Content Description name/value pair.
type Attribute struct {
	Name     string
	DataType uint16
	Value    []byte // raw wire-format value
}

// Tag is a decoded pair of Content Description + Extended Content
// Description objects.
type Tag struct {
	title, author, copyright, description, rating string
	attrs                                          []*Attribute
}

// New returns an empty tag.
func New() *Tag { return &Tag{} }

func (t *Tag) attr(name string) *Attribute {
	for _, a := range t.attrs {
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

func (t *Tag) removeAttr(name string) {
	out := t.attrs[:0]
	for _, a := range t.attrs {
		if !strings.EqualFold(a.Name, name) {
			out = append(out, a)
		}
	}
	t.attrs = out
}

func (t *Tag) setUnicode(name, value string) {
	t.removeAttr(name)
	if value == "" {
		return
	}
	t.attrs = append(t.attrs, &Attribute{Name: name, DataType: DataTypeUnicode, Value: utf16LEWithNul(value)})
}

func (t *Tag) unicodeValue(name string) string {
	a := t.attr(name)
	if a == nil {
		return ""
	}
	return bytebuffer.DecodeString(trimUTF16Nul(a.Value), bytebuffer.UTF16)
}

func utf16LEWithNul(s string) []byte {
	encoded := bytebuffer.EncodeString(s, bytebuffer.UTF16LE)
	return append(encoded, 0, 0)
}

func trimUTF16Nul(b []byte) []byte {
	for len(b) >= 2 && b[len(b)-1] == 0 && b[len(b)-2] == 0 {
		b = b[:len(b)-2]
	}
	return b
}

var capabilities = map[tagmodel.Field]bool{
	tagmodel.FieldTitle:         true,
	tagmodel.FieldPerformers:    true,
	tagmodel.FieldAlbumArtists:  true,
	tagmodel.FieldComposers:     true,
	tagmodel.FieldAlbum:         true,
	tagmodel.FieldComment:       true,
	tagmodel.FieldGenres:        true,
	tagmodel.FieldYear:          true,
	tagmodel.FieldTrack:         true,
	tagmodel.FieldDisc:          true,
	tagmodel.FieldCompilation:   true,
	tagmodel.FieldMusicBrainzID: true,
	tagmodel.FieldPictures:      true,
}

func (t *Tag) TagKind() tagmodel.Kind                { return tagmodel.KindASF }
func (t *Tag) Capabilities() map[tagmodel.Field]bool { return capabilities }

func (t *Tag) Title() string     { return t.title }
func (t *Tag) SetTitle(v string) { t.title = v }

func (t *Tag) Performers() []string {
	if v := t.unicodeValue("WM/AlbumArtist"); v != "" {
		return []string{v}
	}
	if t.author != "" {
		return []string{t.author}
	}
	return nil
}
func (t *Tag) SetPerformers(v []string) {
	if len(v) == 0 {
		t.author = ""
		return
	}
	t.author = strings.Join(v, "; ")
}

func (t *Tag) AlbumArtists() []string {
	v := t.unicodeValue("WM/AlbumArtist")
	if v == "" {
		return nil
	}
	return []string{v}
}
func (t *Tag) SetAlbumArtists(v []string) {
	if len(v) == 0 {
		t.removeAttr("WM/AlbumArtist")
		return
	}
	t.setUnicode("WM/AlbumArtist", strings.Join(v, "; "))
}

func (t *Tag) Composers() []string {
	v := t.unicodeValue("WM/Composer")
	if v == "" {
		return nil
	}
	return []string{v}
}
func (t *Tag) SetComposers(v []string) {
	if len(v) == 0 {
		t.removeAttr("WM/Composer")
		return
	}
	t.setUnicode("WM/Composer", strings.Join(v, "; "))
}

func (t *Tag) Album() string     { return t.unicodeValue("WM/AlbumTitle") }
func (t *Tag) SetAlbum(v string) { t.setUnicode("WM/AlbumTitle", v) }

func (t *Tag) Comment() string     { return t.description }
func (t *Tag) SetComment(v string) { t.description = v }

func (t *Tag) Genres() []string {
	v := t.unicodeValue("WM/Genre")
	if v == "" {
		return nil
	}
	return []string{v}
}
func (t *Tag) SetGenres(v []string) {
	if len(v) == 0 {
		t.removeAttr("WM/Genre")
		return
	}
	t.setUnicode("WM/Genre", v[0])
}

func (t *Tag) Year() uint {
	v := t.unicodeValue("WM/Year")
	if len(v) >= 4 {
		v = v[:4]
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return uint(n)
}
func (t *Tag) SetYear(v uint) {
	if v == 0 {
		t.removeAttr("WM/Year")
		return
	}
	t.setUnicode("WM/Year", strconv.Itoa(int(v)))
}

func (t *Tag) Track() uint {
	n, err := strconv.Atoi(t.unicodeValue("WM/TrackNumber"))
	if err != nil || n <= 0 {
		return 0
	}
	return uint(n)
}
func (t *Tag) SetTrack(v uint) {
	if v == 0 {
		t.removeAttr("WM/TrackNumber")
		return
	}
	t.setUnicode("WM/TrackNumber", strconv.Itoa(int(v)))
}
func (t *Tag) TrackTotal() uint     { return 0 }
func (t *Tag) SetTrackTotal(v uint) {}

func (t *Tag) Disc() uint {
	n, _ := parseNofM(t.unicodeValue("WM/PartOfSet"))
	return n
}
func (t *Tag) DiscTotal() uint {
	_, m := parseNofM(t.unicodeValue("WM/PartOfSet"))
	return m
}
func (t *Tag) SetDisc(v uint)      { t.setNofM(v, t.DiscTotal()) }
func (t *Tag) SetDiscTotal(v uint) { t.setNofM(t.Disc(), v) }

func (t *Tag) setNofM(n, m uint) {
	if n == 0 && m == 0 {
		t.removeAttr("WM/PartOfSet")
		return
	}
	s := strconv.Itoa(int(n))
	if m > 0 {
		s += "/" + strconv.Itoa(int(m))
	}
	t.setUnicode("WM/PartOfSet", s)
}

func parseNofM(s string) (n, m uint) {
	parts := strings.SplitN(s, "/", 2)
	if v, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil && v > 0 {
		n = uint(v)
	}
	if len(parts) == 2 {
		if v, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && v > 0 {
			m = uint(v)
		}
	}
	return n, m
}

func (t *Tag) Lyrics() string     { return t.unicodeValue("WM/Lyrics") }
func (t *Tag) SetLyrics(v string) { t.setUnicode("WM/Lyrics", v) }

func (t *Tag) Compilation() bool {
	v := t.unicodeValue("WM/IsCompilation")
	return v == "1" || strings.EqualFold(v, "true")
}
func (t *Tag) SetCompilation(v bool) {
	if !v {
		t.removeAttr("WM/IsCompilation")
		return
	}
	t.setUnicode("WM/IsCompilation", "1")
}

func (t *Tag) MusicBrainzID() string     { return t.unicodeValue("MusicBrainz/Track Id") }
func (t *Tag) SetMusicBrainzID(v string) { t.setUnicode("MusicBrainz/Track Id", v) }
func (t *Tag) ISRC() string              { return "" }
func (t *Tag) SetISRC(v string)          {}

func (t *Tag) Pictures() []tagmodel.Picture {
	a := t.attr("WM/Picture")
	if a == nil {
		return nil
	}
	pic, ok := decodePicture(a.Value)
	if !ok {
		return nil
	}
	return []tagmodel.Picture{pic}
}

func (t *Tag) SetPictures(v []tagmodel.Picture) {
	t.removeAttr("WM/Picture")
	if len(v) == 0 {
		return
	}
	t.attrs = append(t.attrs, &Attribute{Name: "WM/Picture", DataType: DataTypeByteArr, Value: encodePicture(v[0])})
}

// IsEmpty reports whether no field is set.
func (t *Tag) IsEmpty() bool {
	return t.title == "" && t.author == "" && t.copyright == "" && t.description == "" && t.rating == "" && len(t.attrs) == 0
}

// DecodeContentDescription parses the body of a Content Description object:
// five 16-bit little-endian byte-lengths, then that many UTF-16LE
// null-terminated string bytes each, in title/author/copyright/description/
// rating order.
func DecodeContentDescription(body []byte) (title, author, copyright, description, rating string, err error) {
	if len(body) < 10 {
		return "", "", "", "", "", mmerr.Truncatedf("asftag: content description header truncated")
	}
	lens := make([]int, 5)
	for i := 0; i < 5; i++ {
		lens[i] = int(body[2*i]) | int(body[2*i+1])<<8
	}
	pos := 10
	out := make([]string, 5)
	for i, n := range lens {
		if pos+n > len(body) {
			return "", "", "", "", "", mmerr.Truncatedf("asftag: content description field %d truncated", i)
		}
		out[i] = bytebuffer.DecodeString(trimUTF16Nul(body[pos:pos+n]), bytebuffer.UTF16)
		pos += n
	}
	return out[0], out[1], out[2], out[3], out[4], nil
}

// EncodeContentDescription renders the five fields back to wire format.
func EncodeContentDescription(title, author, copyright, description, rating string) []byte {
	fields := [][]byte{
		utf16LEWithNul(title), utf16LEWithNul(author), utf16LEWithNul(copyright),
		utf16LEWithNul(description), utf16LEWithNul(rating),
	}
	out := make([]byte, 10)
	for i, f := range fields {
		out[2*i] = byte(len(f))
		out[2*i+1] = byte(len(f) >> 8)
	}
	for _, f := range fields {
		out = append(out, f...)
	}
	return out
}

// DecodeExtendedContentDescription parses a 16-bit attribute count followed
// by that many [nameLen(2) name dataType(2) valueLen(2) value] entries.
func DecodeExtendedContentDescription(body []byte) ([]*Attribute, error) {
	if len(body) < 2 {
		return nil, mmerr.Truncatedf("asftag: extended content description truncated")
	}
	count := int(body[0]) | int(body[1])<<8
	pos := 2
	attrs := make([]*Attribute, 0, count)
	for i := 0; i < count; i++ {
		if pos+2 > len(body) {
			return nil, mmerr.Truncatedf("asftag: attribute %d name length truncated", i)
		}
		nameLen := int(body[pos]) | int(body[pos+1])<<8
		pos += 2
		if pos+nameLen+4 > len(body) {
			return nil, mmerr.Truncatedf("asftag: attribute %d truncated", i)
		}
		name := bytebuffer.DecodeString(trimUTF16Nul(body[pos:pos+nameLen]), bytebuffer.UTF16)
		pos += nameLen
		dataType := uint16(body[pos]) | uint16(body[pos+1])<<8
		pos += 2
		valueLen := int(body[pos]) | int(body[pos+1])<<8
		pos += 2
		if pos+valueLen > len(body) {
			return nil, mmerr.Truncatedf("asftag: attribute %d value truncated", i)
		}
		value := body[pos : pos+valueLen]
		pos += valueLen
		attrs = append(attrs, &Attribute{Name: name, DataType: dataType, Value: value})
	}
	return attrs, nil
}

// EncodeExtendedContentDescription renders attrs back to wire format.
func EncodeExtendedContentDescription(attrs []*Attribute) []byte {
	out := make([]byte, 2)
	out[0] = byte(len(attrs))
	out[1] = byte(len(attrs) >> 8)
	for _, a := range attrs {
		nameBytes := utf16LEWithNul(a.Name)
		out = append(out, byte(len(nameBytes)), byte(len(nameBytes)>>8))
		out = append(out, nameBytes...)
		out = append(out, byte(a.DataType), byte(a.DataType>>8))
		out = append(out, byte(len(a.Value)), byte(len(a.Value)>>8))
		out = append(out, a.Value...)
	}
	return out
}

// Decode builds a Tag from the raw Content Description and Extended Content
// Description object bodies. Either may be nil if that object was absent.
func Decode(cdBody, ecdBody []byte) (*Tag, error) {
	t := New()
	if cdBody != nil {
		title, author, copyright, description, rating, err := DecodeContentDescription(cdBody)
		if err != nil {
			return nil, err
		}
		t.title, t.author, t.copyright, t.description, t.rating = title, author, copyright, description, rating
	}
	if ecdBody != nil {
		attrs, err := DecodeExtendedContentDescription(ecdBody)
		if err != nil {
			return nil, err
		}
		t.attrs = attrs
	}
	return t, nil
}

// Encode renders t's two header objects' bodies.
func Encode(t *Tag) (cdBody, ecdBody []byte) {
	return EncodeContentDescription(t.title, t.author, t.copyright, t.description, t.rating),
		EncodeExtendedContentDescription(t.attrs)
}

// decodePicture parses the WM/Picture binary layout: 1-byte type, 4-byte LE
// data size, null-terminated UTF-16LE mime, null-terminated UTF-16LE
// description, then the raw image bytes.
func decodePicture(data []byte) (tagmodel.Picture, bool) {
	if len(data) < 5 {
		return tagmodel.Picture{}, false
	}
	kind := tagmodel.PictureKind(data[0])
	buf := bytebuffer.New(data)
	size, err := buf.Uint32(1, bytebuffer.LittleEndian)
	if err != nil {
		return tagmodel.Picture{}, false
	}
	rest := data[5:]
	mimeBytes, rest := splitUTF16Nul(rest)
	descBytes, rest := splitUTF16Nul(rest)
	if len(rest) < int(size) {
		return tagmodel.Picture{}, false
	}
	return tagmodel.Picture{
		MimeType:    bytebuffer.DecodeString(mimeBytes, bytebuffer.UTF16),
		Kind:        kind,
		Description: bytebuffer.DecodeString(descBytes, bytebuffer.UTF16),
		Data:        rest[:size],
	}, true
}

func splitUTF16Nul(data []byte) (field, rest []byte) {
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			return data[:i], data[i+2:]
		}
	}
	return data, nil
}

func encodePicture(p tagmodel.Picture) []byte {
	buf := &bytebuffer.Buffer{}
	buf.Append(byte(p.Kind))
	bytebuffer.PutUint32(buf, uint32(len(p.Data)), bytebuffer.LittleEndian)
	buf.Append(utf16LEWithNul(p.MimeType)...)
	buf.Append(utf16LEWithNul(p.Description)...)
	buf.Append(p.Data...)
	return buf.Bytes()
}
