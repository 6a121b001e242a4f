// Package ape decodes and encodes APEv1/v2 tags: a 32-byte footer (and
// optional mirrored header), followed by a sequence of key/value items.
package ape

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cesargomez89/navidrums/internal/mediameta/bytebuffer"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// FooterSize is the fixed on-disk length of an APE footer/header.
const FooterSize = 32

// Identifier is the 8-byte magic of an APE footer/header.
var Identifier = []byte("APETAGEX")

const (
	Version1000 = 1000
	Version2000 = 2000
)

const (
	flagHasHeader    = 1 << 31
	flagIsHeader     = 1 << 29
	valueTypeText    = 0
	valueTypeBinary  = 1 << 1
	valueTypeLocator = 2 << 1
)

// Item is a single APE key/value pair. Keys are ASCII, 2..255 chars,
// case-insensitive for comparison. Values is the list of multiple
// NUL-separated text values (empty for binary/locator items).
type Item struct {
	Key      string
	Values   []string // text values; unset for Binary/Locator
	Binary   []byte   // set when Kind is Binary or Locator
	Kind     int      // valueTypeText/valueTypeBinary/valueTypeLocator
	ReadOnly bool
}

// Tag is a decoded APE tag.
type Tag struct {
	Version int
	items   []*Item
}

// New returns an empty APEv2 tag.
func New() *Tag {
	return &Tag{Version: Version2000}
}

func (t *Tag) item(key string) *Item {
	for _, it := range t.items {
		if strings.EqualFold(it.Key, key) {
			return it
		}
	}
	return nil
}

func (t *Tag) setText(key string, values []string) {
	t.remove(key)
	var filtered []string
	for _, v := range values {
		if v != "" {
			filtered = append(filtered, v)
		}
	}
	if len(filtered) == 0 {
		return
	}
	t.items = append(t.items, &Item{Key: key, Values: filtered, Kind: valueTypeText})
}

func (t *Tag) textValue(key string) string {
	it := t.item(key)
	if it == nil || len(it.Values) == 0 {
		return ""
	}
	return it.Values[0]
}

func (t *Tag) textValues(key string) []string {
	it := t.item(key)
	if it == nil {
		return nil
	}
	return it.Values
}

func (t *Tag) remove(key string) {
	out := t.items[:0]
	for _, it := range t.items {
		if !strings.EqualFold(it.Key, key) {
			out = append(out, it)
		}
	}
	t.items = out
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

func (t *Tag) TagKind() tagmodel.Kind                { return tagmodel.KindAPE }
func (t *Tag) Capabilities() map[tagmodel.Field]bool { return capabilities }

func (t *Tag) Title() string     { return t.textValue("Title") }
func (t *Tag) SetTitle(v string) { t.setText("Title", []string{v}) }

func (t *Tag) Performers() []string       { return t.textValues("Artist") }
func (t *Tag) SetPerformers(v []string)   { t.setText("Artist", v) }
func (t *Tag) AlbumArtists() []string     { return t.textValues("Album Artist") }
func (t *Tag) SetAlbumArtists(v []string) { t.setText("Album Artist", v) }
func (t *Tag) Composers() []string        { return t.textValues("Composer") }
func (t *Tag) SetComposers(v []string)    { t.setText("Composer", v) }

func (t *Tag) Album() string     { return t.textValue("Album") }
func (t *Tag) SetAlbum(v string) { t.setText("Album", []string{v}) }

func (t *Tag) Comment() string     { return t.textValue("Comment") }
func (t *Tag) SetComment(v string) { t.setText("Comment", []string{v}) }

func (t *Tag) Genres() []string     { return t.textValues("Genre") }
func (t *Tag) SetGenres(v []string) { t.setText("Genre", v) }

func (t *Tag) Year() uint {
	v := t.textValue("Year")
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
		t.remove("Year")
		return
	}
	t.setText("Year", []string{strconv.Itoa(int(v))})
}

func (t *Tag) Track() uint      { n, _ := parseNofM(t.textValue("Track")); return n }
func (t *Tag) TrackTotal() uint { _, m := parseNofM(t.textValue("Track")); return m }
func (t *Tag) SetTrack(v uint)      { t.setNofM("Track", v, t.TrackTotal()) }
func (t *Tag) SetTrackTotal(v uint) { t.setNofM("Track", t.Track(), v) }

func (t *Tag) Disc() uint      { n, _ := parseNofM(t.textValue("Disc")); return n }
func (t *Tag) DiscTotal() uint { _, m := parseNofM(t.textValue("Disc")); return m }
func (t *Tag) SetDisc(v uint)      { t.setNofM("Disc", v, t.DiscTotal()) }
func (t *Tag) SetDiscTotal(v uint) { t.setNofM("Disc", t.Disc(), v) }

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

func (t *Tag) setNofM(key string, n, m uint) {
	if n == 0 && m == 0 {
		t.remove(key)
		return
	}
	s := strconv.Itoa(int(n))
	if m > 0 {
		s += "/" + strconv.Itoa(int(m))
	}
	t.setText(key, []string{s})
}

func (t *Tag) Lyrics() string     { return t.textValue("Lyrics") }
func (t *Tag) SetLyrics(v string) { t.setText("Lyrics", []string{v}) }

func (t *Tag) Compilation() bool {
	v := t.textValue("Compilation")
	return v == "1" || strings.EqualFold(v, "true")
}
func (t *Tag) SetCompilation(v bool) {
	if !v {
		t.remove("Compilation")
		return
	}
	t.setText("Compilation", []string{"1"})
}

func (t *Tag) MusicBrainzID() string     { return t.textValue("MUSICBRAINZ_TRACKID") }
func (t *Tag) SetMusicBrainzID(v string) { t.setText("MUSICBRAINZ_TRACKID", []string{v}) }
func (t *Tag) ISRC() string              { return t.textValue("ISRC") }
func (t *Tag) SetISRC(v string)          { t.setText("ISRC", []string{v}) }

func (t *Tag) Pictures() []tagmodel.Picture {
	var out []tagmodel.Picture
	for _, key := range []string{"Cover Art (front)", "Cover Art (back)"} {
		it := t.item(key)
		if it == nil || it.Kind != valueTypeBinary {
			continue
		}
		// Binary APE image items store "description\0image-bytes".
		idx := indexNul(it.Binary)
		desc := ""
		data := it.Binary
		if idx >= 0 {
			desc = string(it.Binary[:idx])
			data = it.Binary[idx+1:]
		}
		kind := tagmodel.PictureFrontCover
		if key == "Cover Art (back)" {
			kind = tagmodel.PictureBackCover
		}
		out = append(out, tagmodel.Picture{Kind: kind, Description: desc, Data: data, MimeType: sniffMime(data)})
	}
	return out
}

func (t *Tag) SetPictures(v []tagmodel.Picture) {
	t.remove("Cover Art (front)")
	t.remove("Cover Art (back)")
	for _, p := range v {
		key := "Cover Art (front)"
		if p.Kind == tagmodel.PictureBackCover {
			key = "Cover Art (back)"
		}
		buf := append([]byte(p.Description), 0)
		buf = append(buf, p.Data...)
		t.items = append(t.items, &Item{Key: key, Binary: buf, Kind: valueTypeBinary})
	}
}

func (t *Tag) IsEmpty() bool { return len(t.items) == 0 }

func indexNul(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

func sniffMime(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) >= 8 && string(data[1:4]) == "PNG":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// Decode parses an APE tag given the bytes of the item block plus footer
// (footerAndItems), as located by the container reader at the tail (or
// head) of the file.
func Decode(footerAndItems []byte) (*Tag, error) {
	if len(footerAndItems) < FooterSize {
		return nil, mmerr.Truncatedf("ape: need at least %d bytes, got %d", FooterSize, len(footerAndItems))
	}
	footer := footerAndItems[len(footerAndItems)-FooterSize:]
	if string(footer[0:8]) != string(Identifier) {
		return nil, mmerr.CorruptFilef("ape: missing APETAGEX identifier")
	}
	buf := bytebuffer.New(footer)
	version, err := buf.Uint32(8, bytebuffer.LittleEndian)
	if err != nil {
		return nil, err
	}
	size, err := buf.Uint32(12, bytebuffer.LittleEndian)
	if err != nil {
		return nil, err
	}
	count, err := buf.Uint32(16, bytebuffer.LittleEndian)
	if err != nil {
		return nil, err
	}
	_, err = buf.Uint32(20, bytebuffer.LittleEndian) // flags
	if err != nil {
		return nil, err
	}

	itemsLen := int(size) - FooterSize
	if itemsLen < 0 || itemsLen > len(footerAndItems)-FooterSize {
		return nil, mmerr.CorruptFilef("ape: item block size %d inconsistent with available %d bytes", itemsLen, len(footerAndItems)-FooterSize)
	}
	itemsStart := len(footerAndItems) - FooterSize - itemsLen
	itemData := footerAndItems[itemsStart : itemsStart+itemsLen]

	tag := &Tag{Version: int(version)}
	pos := 0
	for i := uint32(0); i < count && pos < len(itemData); i++ {
		if pos+8 > len(itemData) {
			break // truncated item header: recovered locally, parsing stops
		}
		valSize := uint32(itemData[pos]) | uint32(itemData[pos+1])<<8 | uint32(itemData[pos+2])<<16 | uint32(itemData[pos+3])<<24
		flags := uint32(itemData[pos+4]) | uint32(itemData[pos+5])<<8 | uint32(itemData[pos+6])<<16 | uint32(itemData[pos+7])<<24
		pos += 8

		keyEnd := pos
		for keyEnd < len(itemData) && itemData[keyEnd] != 0 {
			keyEnd++
		}
		if keyEnd >= len(itemData) {
			break
		}
		key := string(itemData[pos:keyEnd])
		pos = keyEnd + 1

		if pos+int(valSize) > len(itemData) {
			break
		}
		val := itemData[pos : pos+int(valSize)]
		pos += int(valSize)

		kind := int(flags & (0x3 << 1))
		it := &Item{Key: key, ReadOnly: flags&1 != 0, Kind: kind}
		if kind == valueTypeText {
			it.Values = splitNul(val)
		} else {
			it.Binary = val
		}
		tag.items = append(tag.items, it)
	}
	return tag, nil
}

func splitNul(b []byte) []string {
	parts := strings.Split(string(b), "\x00")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Encode renders the tag's footer+items block. includeHeader also emits a
// mirrored 32-byte header before the items (APEv2 convention).
func Encode(t *Tag, includeHeader bool) []byte {
	sort.Slice(t.items, func(i, j int) bool { return t.items[i].Key < t.items[j].Key })

	itemsBuf := &bytebuffer.Buffer{}
	for _, it := range t.items {
		var val []byte
		if it.Kind == valueTypeText {
			val = []byte(strings.Join(it.Values, "\x00"))
		} else {
			val = it.Binary
		}
		bytebuffer.PutUint32(itemsBuf, uint32(len(val)), bytebuffer.LittleEndian)
		flags := uint32(it.Kind) & (0x3 << 1)
		if it.ReadOnly {
			flags |= 1
		}
		bytebuffer.PutUint32(itemsBuf, flags, bytebuffer.LittleEndian)
		itemsBuf.Append([]byte(it.Key)...)
		itemsBuf.Append(0)
		itemsBuf.Append(val...)
	}

	totalSize := uint32(itemsBuf.Len() + FooterSize)
	writeFooterOrHeader := func(isHeader bool) []byte {
		b := &bytebuffer.Buffer{}
		b.Append(Identifier...)
		version := t.Version
		if version == 0 {
			version = Version2000
		}
		bytebuffer.PutUint32(b, uint32(version), bytebuffer.LittleEndian)
		bytebuffer.PutUint32(b, totalSize, bytebuffer.LittleEndian)
		bytebuffer.PutUint32(b, uint32(len(t.items)), bytebuffer.LittleEndian)
		flags := uint32(flagHasHeader)
		if isHeader {
			flags |= flagIsHeader
		}
		bytebuffer.PutUint32(b, flags, bytebuffer.LittleEndian)
		b.Append(make([]byte, 8)...) // reserved
		return b.Bytes()
	}

	out := &bytebuffer.Buffer{}
	if includeHeader {
		out.Append(writeFooterOrHeader(true)...)
	}
	out.Concat(itemsBuf)
	out.Append(writeFooterOrHeader(false)...)
	return out.Bytes()
}
