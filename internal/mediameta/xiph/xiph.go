// Package xiph decodes and encodes Xiph (Vorbis) comments: a vendor string
// followed by a list of "FIELD=value" entries, used inside FLAC
// VORBIS_COMMENT blocks and Ogg comment packets.
package xiph

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/cesargomez89/navidrums/internal/mediameta/bytebuffer"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// pictureFieldKey is the well-known comment key for base64-encoded
// FLAC-picture-block-shaped cover art, per the Xiph picture convention.
const pictureFieldKey = "METADATA_BLOCK_PICTURE"

// Tag is a decoded Xiph/Vorbis comment block.
type Tag struct {
	Vendor  string
	entries []entry
}

type entry struct {
	key   string // stored upper-cased for case-insensitive comparison
	value string
}

// New returns an empty tag with the given vendor string.
func New(vendor string) *Tag {
	return &Tag{Vendor: vendor}
}

func (t *Tag) all(key string) []string {
	key = strings.ToUpper(key)
	var out []string
	for _, e := range t.entries {
		if e.key == key {
			out = append(out, e.value)
		}
	}
	return out
}

func (t *Tag) first(key string) string {
	v := t.all(key)
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (t *Tag) remove(key string) {
	key = strings.ToUpper(key)
	out := t.entries[:0]
	for _, e := range t.entries {
		if e.key != key {
			out = append(out, e)
		}
	}
	t.entries = out
}

func (t *Tag) setSingle(key, value string) {
	t.remove(key)
	if value == "" {
		return
	}
	t.entries = append(t.entries, entry{key: strings.ToUpper(key), value: value})
}

func (t *Tag) setMulti(key string, values []string) {
	t.remove(key)
	key = strings.ToUpper(key)
	for _, v := range values {
		if v != "" {
			t.entries = append(t.entries, entry{key: key, value: v})
		}
	}
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
	tagmodel.FieldTrackTotal:    true,
	tagmodel.FieldDisc:          true,
	tagmodel.FieldDiscTotal:     true,
	tagmodel.FieldLyrics:        true,
	tagmodel.FieldCompilation:   true,
	tagmodel.FieldMusicBrainzID: true,
	tagmodel.FieldISRC:          true,
	tagmodel.FieldPictures:      true,
}

func (t *Tag) TagKind() tagmodel.Kind                { return tagmodel.KindXiph }
func (t *Tag) Capabilities() map[tagmodel.Field]bool { return capabilities }

func (t *Tag) Title() string     { return t.first("TITLE") }
func (t *Tag) SetTitle(v string) { t.setSingle("TITLE", v) }

func (t *Tag) Performers() []string     { return t.all("ARTIST") }
func (t *Tag) SetPerformers(v []string) { t.setMulti("ARTIST", v) }
func (t *Tag) AlbumArtists() []string   { return t.all("ALBUMARTIST") }
func (t *Tag) SetAlbumArtists(v []string) { t.setMulti("ALBUMARTIST", v) }
func (t *Tag) Composers() []string        { return t.all("COMPOSER") }
func (t *Tag) SetComposers(v []string)    { t.setMulti("COMPOSER", v) }

func (t *Tag) Album() string     { return t.first("ALBUM") }
func (t *Tag) SetAlbum(v string) { t.setSingle("ALBUM", v) }

func (t *Tag) Comment() string     { return t.first("COMMENT") }
func (t *Tag) SetComment(v string) { t.setSingle("COMMENT", v) }

func (t *Tag) Genres() []string     { return t.all("GENRE") }
func (t *Tag) SetGenres(v []string) { t.setMulti("GENRE", v) }

func (t *Tag) Year() uint {
	v := t.first("DATE")
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
		t.remove("DATE")
		return
	}
	t.setSingle("DATE", strconv.Itoa(int(v)))
}

func (t *Tag) Track() uint      { n, _ := parseField(t.first("TRACKNUMBER")); return n }
func (t *Tag) TrackTotal() uint {
	if n := t.firstUint("TRACKTOTAL"); n != 0 {
		return n
	}
	_, m := parseField(t.first("TRACKNUMBER"))
	return m
}
func (t *Tag) SetTrack(v uint) { t.setNumber("TRACKNUMBER", v, t.TrackTotal()) }
func (t *Tag) SetTrackTotal(v uint) {
	t.setSingle("TRACKTOTAL", numOrEmpty(v))
	t.setNumber("TRACKNUMBER", t.Track(), 0)
}

func (t *Tag) Disc() uint      { n, _ := parseField(t.first("DISCNUMBER")); return n }
func (t *Tag) DiscTotal() uint {
	if n := t.firstUint("DISCTOTAL"); n != 0 {
		return n
	}
	_, m := parseField(t.first("DISCNUMBER"))
	return m
}
func (t *Tag) SetDisc(v uint) { t.setNumber("DISCNUMBER", v, t.DiscTotal()) }
func (t *Tag) SetDiscTotal(v uint) {
	t.setSingle("DISCTOTAL", numOrEmpty(v))
	t.setNumber("DISCNUMBER", t.Disc(), 0)
}

func numOrEmpty(v uint) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(int(v))
}

func (t *Tag) firstUint(key string) uint {
	n, err := strconv.Atoi(t.first(key))
	if err != nil || n <= 0 {
		return 0
	}
	return uint(n)
}

func parseField(s string) (n, m uint) {
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

func (t *Tag) setNumber(key string, n, m uint) {
	if n == 0 && m == 0 {
		t.remove(key)
		return
	}
	s := strconv.Itoa(int(n))
	if m > 0 {
		s += "/" + strconv.Itoa(int(m))
	}
	t.setSingle(key, s)
}

func (t *Tag) Lyrics() string     { return t.first("LYRICS") }
func (t *Tag) SetLyrics(v string) { t.setSingle("LYRICS", v) }

func (t *Tag) Compilation() bool {
	v := t.first("COMPILATION")
	return v == "1" || strings.EqualFold(v, "true")
}
func (t *Tag) SetCompilation(v bool) {
	if !v {
		t.remove("COMPILATION")
		return
	}
	t.setSingle("COMPILATION", "1")
}

func (t *Tag) MusicBrainzID() string     { return t.first("MUSICBRAINZ_TRACKID") }
func (t *Tag) SetMusicBrainzID(v string) { t.setSingle("MUSICBRAINZ_TRACKID", v) }
func (t *Tag) ISRC() string              { return t.first("ISRC") }
func (t *Tag) SetISRC(v string)          { t.setSingle("ISRC", v) }

func (t *Tag) Pictures() []tagmodel.Picture {
	var out []tagmodel.Picture
	for _, raw := range t.all(pictureFieldKey) {
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			continue
		}
		pic, ok := DecodePictureBlock(data)
		if ok {
			out = append(out, pic)
		}
	}
	return out
}

func (t *Tag) SetPictures(v []tagmodel.Picture) {
	t.remove(pictureFieldKey)
	for _, p := range v {
		encoded := base64.StdEncoding.EncodeToString(EncodePictureBlock(p))
		t.entries = append(t.entries, entry{key: pictureFieldKey, value: encoded})
	}
}

func (t *Tag) IsEmpty() bool { return len(t.entries) == 0 }

// DecodePictureBlock parses a FLAC Picture metadata block body — the same
// structure whether it arrives as the native FLAC "Picture" block or
// base64-encoded inside a Xiph METADATA_BLOCK_PICTURE comment: type, mime
// length + mime, description length + description (UTF-8), width, height,
// depth, colors, data length + data (all big-endian u32).
func DecodePictureBlock(data []byte) (tagmodel.Picture, bool) {
	buf := bytebuffer.New(data)
	pos := 0
	readU32 := func() (uint32, bool) {
		v, err := buf.Uint32(pos, bytebuffer.BigEndian)
		if err != nil {
			return 0, false
		}
		pos += 4
		return v, true
	}
	kindVal, ok := readU32()
	if !ok {
		return tagmodel.Picture{}, false
	}
	mimeLen, ok := readU32()
	if !ok || pos+int(mimeLen) > len(data) {
		return tagmodel.Picture{}, false
	}
	mime := string(data[pos : pos+int(mimeLen)])
	pos += int(mimeLen)

	descLen, ok := readU32()
	if !ok || pos+int(descLen) > len(data) {
		return tagmodel.Picture{}, false
	}
	desc := string(data[pos : pos+int(descLen)])
	pos += int(descLen)

	pos += 16 // width, height, depth, colors (unused)
	if pos+4 > len(data) {
		return tagmodel.Picture{}, false
	}
	dataLen, ok := readU32()
	if !ok || pos+int(dataLen) > len(data) {
		return tagmodel.Picture{}, false
	}
	imgData := data[pos : pos+int(dataLen)]

	return tagmodel.Picture{
		MimeType:    mime,
		Kind:        tagmodel.PictureKind(kindVal),
		Description: desc,
		Data:        imgData,
	}, true
}

// EncodePictureBlock renders p as a FLAC Picture metadata block body.
func EncodePictureBlock(p tagmodel.Picture) []byte {
	buf := &bytebuffer.Buffer{}
	bytebuffer.PutUint32(buf, uint32(p.Kind), bytebuffer.BigEndian)
	bytebuffer.PutUint32(buf, uint32(len(p.MimeType)), bytebuffer.BigEndian)
	buf.Append([]byte(p.MimeType)...)
	bytebuffer.PutUint32(buf, uint32(len(p.Description)), bytebuffer.BigEndian)
	buf.Append([]byte(p.Description)...)
	bytebuffer.PutUint32(buf, 0, bytebuffer.BigEndian) // width
	bytebuffer.PutUint32(buf, 0, bytebuffer.BigEndian) // height
	bytebuffer.PutUint32(buf, 0, bytebuffer.BigEndian) // depth
	bytebuffer.PutUint32(buf, 0, bytebuffer.BigEndian) // colors
	bytebuffer.PutUint32(buf, uint32(len(p.Data)), bytebuffer.BigEndian)
	buf.Append(p.Data...)
	return buf.Bytes()
}

// Decode parses a Xiph comment block: 4-byte LE vendor length, vendor
// string, 4-byte LE comment count, then each comment as a 4-byte LE length
// plus "FIELD=value" bytes.
func Decode(data []byte) (*Tag, error) {
	buf := bytebuffer.New(data)
	vendorLen, err := buf.Uint32(0, bytebuffer.LittleEndian)
	if err != nil {
		return nil, err
	}
	pos := 4
	if pos+int(vendorLen) > len(data) {
		return nil, mmerr.Truncatedf("xiph: vendor string length %d exceeds available data", vendorLen)
	}
	vendor := string(data[pos : pos+int(vendorLen)])
	pos += int(vendorLen)

	if pos+4 > len(data) {
		return nil, mmerr.Truncatedf("xiph: missing comment count")
	}
	count, err := buf.Uint32(pos, bytebuffer.LittleEndian)
	if err != nil {
		return nil, err
	}
	pos += 4

	tag := &Tag{Vendor: vendor}
	for i := uint32(0); i < count; i++ {
		if pos+4 > len(data) {
			break // truncated comment list: recovered locally
		}
		entryLen, err := buf.Uint32(pos, bytebuffer.LittleEndian)
		if err != nil {
			break
		}
		pos += 4
		if pos+int(entryLen) > len(data) {
			break
		}
		raw := string(data[pos : pos+int(entryLen)])
		pos += int(entryLen)

		eq := strings.IndexByte(raw, '=')
		if eq < 0 {
			continue // malformed entry without '=': skipped
		}
		key := strings.ToUpper(raw[:eq])
		tag.entries = append(tag.entries, entry{key: key, value: raw[eq+1:]})
	}
	return tag, nil
}

// Encode renders the tag as a Xiph comment block.
func Encode(t *Tag) []byte {
	buf := &bytebuffer.Buffer{}
	bytebuffer.PutUint32(buf, uint32(len(t.Vendor)), bytebuffer.LittleEndian)
	buf.Append([]byte(t.Vendor)...)
	bytebuffer.PutUint32(buf, uint32(len(t.entries)), bytebuffer.LittleEndian)
	for _, e := range t.entries {
		line := e.key + "=" + e.value
		bytebuffer.PutUint32(buf, uint32(len(line)), bytebuffer.LittleEndian)
		buf.Append([]byte(line)...)
	}
	return buf.Bytes()
}
