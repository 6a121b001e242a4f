// Package id3v2 decodes and encodes ID3v2.2/2.3/2.4 tags: the full frame
// sub-hierarchy (text information, user-defined text, URL, comment,
// unsynchronized lyrics, attached picture, unique file identifier,
// popularimeter, play counter, private, relative-volume-adjust), version
// dispatch, unsynchronization, and the extended header/footer.
package id3v2

import (
	"strconv"
	"strings"

	"github.com/cesargomez89/navidrums/internal/mediameta/bytebuffer"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// Tag is a decoded ID3v2 tag: the header plus an ordered list of frames.
// Unknown frames are preserved verbatim and re-emitted on save.
type Tag struct {
	Header  Header
	Frames  []*Frame
	Corrupt bool // sticky "possibly corrupt" bit, set when a frame was skipped
}

// New returns an empty tag targeting the given version.
func New(v Version) *Tag {
	return &Tag{Header: Header{Version: v}}
}

// Decode parses a complete ID3v2 tag (header + body, not including any
// trailing footer bytes which the caller may separately validate).
func Decode(data []byte) (*Tag, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	bodyEnd := HeaderSize + int(h.Size)
	if bodyEnd > len(data) {
		return nil, mmerr.Truncatedf("id3v2: declared size %d exceeds available %d bytes", h.Size, len(data)-HeaderSize)
	}
	body := data[HeaderSize:bodyEnd]

	if h.ExtendedHeader {
		body = skipExtendedHeader(body, h.Version)
	}

	if h.Unsynchronised && h.Version != Version24 {
		// v2.2/v2.3 apply unsynchronization to the whole tag body at once;
		// v2.4 applies it per frame via the frame's own unsync flag.
		body = reverseUnsync(body)
	}

	frames, corrupt := readFrames(body, h.Version)
	return &Tag{Header: *h, Frames: frames, Corrupt: corrupt}, nil
}

func skipExtendedHeader(body []byte, v Version) []byte {
	if len(body) < 4 {
		return body
	}
	if v == Version24 {
		size, err := bytebuffer.Synchsafe32(body[0:4])
		if err == nil && int(size) <= len(body) {
			return body[size:]
		}
		return body
	}
	size := uint32(body[0])<<24 | uint32(body[1])<<16 | uint32(body[2])<<8 | uint32(body[3])
	total := int(size) + 4
	if total <= len(body) {
		return body[total:]
	}
	return body
}

// Encode renders the tag to its on-disk byte form, including the 10-byte
// header (and a matching footer when Header.Footer is set).
func (t *Tag) Encode() []byte {
	body := writeFrames(t.Frames, t.Header.Version)
	if t.Header.Unsynchronised && t.Header.Version != Version24 {
		body = applyUnsync(body)
	}
	h := t.Header
	h.Size = uint32(len(body))
	h.ExtendedHeader = false

	buf := &bytebuffer.Buffer{}
	buf.Append(h.Encode()...)
	buf.Append(body...)
	if h.Footer {
		footer := h.Encode()
		footer[0], footer[1], footer[2] = '3', 'D', 'I' // footer magic is "3DI", not "ID3"
		buf.Append(footer...)
	}
	return buf.Bytes()
}

// frame returns the first frame with the given 4-char ID, or nil.
func (t *Tag) frame(id string) *Frame {
	for _, f := range t.Frames {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func (t *Tag) framesByID(id string) []*Frame {
	var out []*Frame
	for _, f := range t.Frames {
		if f.ID == id {
			out = append(out, f)
		}
	}
	return out
}

func (t *Tag) setTextFrame(id string, values []string) {
	t.removeFrames(id)
	if len(values) == 0 || (len(values) == 1 && values[0] == "") {
		return
	}
	t.Frames = append(t.Frames, &Frame{ID: id, Data: encodeText(values, t.Header.Version)})
}

func (t *Tag) textFrame(id string) []string {
	f := t.frame(id)
	if f == nil {
		return nil
	}
	return decodeText(f.Data)
}

func (t *Tag) removeFrames(id string) {
	out := t.Frames[:0]
	for _, f := range t.Frames {
		if f.ID != id {
			out = append(out, f)
		}
	}
	t.Frames = out
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

func (t *Tag) TagKind() tagmodel.Kind                { return tagmodel.KindID3v2 }
func (t *Tag) Capabilities() map[tagmodel.Field]bool { return capabilities }

func (t *Tag) Title() string {
	v := t.textFrame("TIT2")
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
func (t *Tag) SetTitle(v string) { t.setTextFrame("TIT2", []string{v}) }

func (t *Tag) Performers() []string      { return t.textFrame("TPE1") }
func (t *Tag) SetPerformers(v []string)  { t.setTextFrame("TPE1", v) }
func (t *Tag) AlbumArtists() []string    { return t.textFrame("TPE2") }
func (t *Tag) SetAlbumArtists(v []string) { t.setTextFrame("TPE2", v) }
func (t *Tag) Composers() []string       { return t.textFrame("TCOM") }
func (t *Tag) SetComposers(v []string)   { t.setTextFrame("TCOM", v) }

func (t *Tag) Album() string {
	v := t.textFrame("TALB")
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
func (t *Tag) SetAlbum(v string) { t.setTextFrame("TALB", []string{v}) }

func (t *Tag) Comment() string {
	for _, f := range t.framesByID("COMM") {
		if c, ok := decodeComment(f.Data); ok && c.Text != "" {
			return c.Text
		}
	}
	return ""
}
func (t *Tag) SetComment(v string) {
	t.removeFrames("COMM")
	if v == "" {
		return
	}
	c := CommentFrame{Language: "eng", Text: v}
	t.Frames = append(t.Frames, &Frame{ID: "COMM", Data: encodeComment(c, t.Header.Version)})
}

func (t *Tag) Genres() []string     { return t.textFrame("TCON") }
func (t *Tag) SetGenres(v []string) { t.setTextFrame("TCON", v) }

func (t *Tag) Year() uint {
	for _, id := range []string{"TDRC", "TYER"} {
		v := t.textFrame(id)
		if len(v) == 0 {
			continue
		}
		year := v[0]
		if len(year) >= 4 {
			year = year[:4]
		}
		if n, err := strconv.Atoi(year); err == nil {
			return uint(n)
		}
	}
	return 0
}
func (t *Tag) SetYear(v uint) {
	id := "TYER"
	if t.Header.Version == Version24 {
		id = "TDRC"
	}
	if v == 0 {
		t.removeFrames("TYER")
		t.removeFrames("TDRC")
		return
	}
	t.setTextFrame(id, []string{strconv.Itoa(int(v))})
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

func (t *Tag) Track() uint {
	v := t.textFrame("TRCK")
	if len(v) == 0 {
		return 0
	}
	n, _ := parseNofM(v[0])
	return n
}
func (t *Tag) TrackTotal() uint {
	v := t.textFrame("TRCK")
	if len(v) == 0 {
		return 0
	}
	_, m := parseNofM(v[0])
	return m
}
func (t *Tag) SetTrack(v uint)      { t.setNofM("TRCK", v, t.TrackTotal()) }
func (t *Tag) SetTrackTotal(v uint) { t.setNofM("TRCK", t.Track(), v) }

func (t *Tag) Disc() uint {
	v := t.textFrame("TPOS")
	if len(v) == 0 {
		return 0
	}
	n, _ := parseNofM(v[0])
	return n
}
func (t *Tag) DiscTotal() uint {
	v := t.textFrame("TPOS")
	if len(v) == 0 {
		return 0
	}
	_, m := parseNofM(v[0])
	return m
}
func (t *Tag) SetDisc(v uint)      { t.setNofM("TPOS", v, t.DiscTotal()) }
func (t *Tag) SetDiscTotal(v uint) { t.setNofM("TPOS", t.Disc(), v) }

func (t *Tag) setNofM(id string, n, m uint) {
	if n == 0 && m == 0 {
		t.removeFrames(id)
		return
	}
	s := strconv.Itoa(int(n))
	if m > 0 {
		s += "/" + strconv.Itoa(int(m))
	}
	t.setTextFrame(id, []string{s})
}

func (t *Tag) Lyrics() string {
	for _, f := range t.framesByID("USLT") {
		if l, ok := decodeLyrics(f.Data); ok {
			return l.Text
		}
	}
	return ""
}
func (t *Tag) SetLyrics(v string) {
	t.removeFrames("USLT")
	if v == "" {
		return
	}
	l := LyricsFrame{Language: "eng", Text: v}
	t.Frames = append(t.Frames, &Frame{ID: "USLT", Data: encodeLyrics(l, t.Header.Version)})
}

func (t *Tag) Compilation() bool {
	v := t.textFrame("TCMP")
	return len(v) > 0 && (v[0] == "1" || strings.EqualFold(v[0], "true"))
}
func (t *Tag) SetCompilation(v bool) {
	if !v {
		t.removeFrames("TCMP")
		return
	}
	t.setTextFrame("TCMP", []string{"1"})
}

func (t *Tag) MusicBrainzID() string {
	for _, f := range t.framesByID("UFID") {
		if u, ok := decodeUFID(f.Data); ok && u.Owner == "http://musicbrainz.org" {
			return string(u.Identifier)
		}
	}
	return ""
}
func (t *Tag) SetMusicBrainzID(v string) {
	out := t.Frames[:0]
	for _, f := range t.Frames {
		if f.ID == "UFID" {
			if u, ok := decodeUFID(f.Data); ok && u.Owner == "http://musicbrainz.org" {
				continue
			}
		}
		out = append(out, f)
	}
	t.Frames = out
	if v == "" {
		return
	}
	u := UFIDFrame{Owner: "http://musicbrainz.org", Identifier: []byte(v)}
	t.Frames = append(t.Frames, &Frame{ID: "UFID", Data: encodeUFID(u)})
}

func (t *Tag) ISRC() string {
	v := t.textFrame("TSRC")
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
func (t *Tag) SetISRC(v string) { t.setTextFrame("TSRC", []string{v}) }

func (t *Tag) Pictures() []tagmodel.Picture {
	var out []tagmodel.Picture
	for _, f := range t.Frames {
		if f.ID != "APIC" {
			continue
		}
		if p, ok := decodePicture(f.Data, f.OriginalV22 != ""); ok {
			out = append(out, p)
		}
	}
	return out
}
func (t *Tag) SetPictures(v []tagmodel.Picture) {
	t.removeFrames("APIC")
	for _, p := range v {
		t.Frames = append(t.Frames, &Frame{ID: "APIC", Data: encodePicture(p, t.Header.Version)})
	}
}

// IsEmpty reports whether the tag holds no frames at all.
func (t *Tag) IsEmpty() bool { return len(t.Frames) == 0 }
