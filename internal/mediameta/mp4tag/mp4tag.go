// Package mp4tag decodes and encodes the iTunes-style metadata atoms that
// live under moov.udta.meta.ilst in an MPEG-4 container. It operates purely
// on the raw ilst body bytes; the box tree walk that locates that body is
// containers/iso's job.
package mp4tag

import (
	"encoding/binary"
	"strings"

	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// childAtom is one size/type/version-flags/payload entry nested inside an
// ilst item atom: "data", or (for freeform items) "mean"/"name"/"data".
type childAtom struct {
	typ     string
	flags   uint32
	payload []byte
}

// item is a single ilst entry: a known 4-byte-code atom (e.g. "©nam",
// "trkn", "covr") or a freeform "----" atom carrying a reverse-DNS mean/name
// pair plus one or more data children.
type item struct {
	code string
	mean string
	name string
	data []childAtom
}

// Tag is a decoded ilst metadata list. Known atoms are exposed through the
// tagmodel.Tag surface; atoms this codec does not interpret are preserved
// in extra and re-emitted on save.
type Tag struct {
	tagmodel.BasicTag
	extra []*item
}

// New returns an empty MP4 tag.
func New() *Tag { return &Tag{} }

var capabilities = map[tagmodel.Field]bool{
	tagmodel.FieldTitle: true, tagmodel.FieldPerformers: true, tagmodel.FieldAlbumArtists: true,
	tagmodel.FieldComposers: true, tagmodel.FieldAlbum: true, tagmodel.FieldComment: true,
	tagmodel.FieldGenres: true, tagmodel.FieldYear: true, tagmodel.FieldTrack: true,
	tagmodel.FieldTrackTotal: true, tagmodel.FieldDisc: true, tagmodel.FieldDiscTotal: true,
	tagmodel.FieldLyrics: true, tagmodel.FieldCompilation: true, tagmodel.FieldMusicBrainzID: true,
	tagmodel.FieldISRC: true, tagmodel.FieldPictures: true,
}

func (t *Tag) TagKind() tagmodel.Kind                { return tagmodel.KindApple }
func (t *Tag) Capabilities() map[tagmodel.Field]bool { return capabilities }

func (t *Tag) IsEmpty() bool { return t.BasicTag.IsEmpty() && len(t.extra) == 0 }

const (
	freeformCode  = "----"
	meanITunes    = "com.apple.iTunes"
	nameMBTrackID = "MusicBrainz Track Id"
	nameISRC      = "ISRC"
)

func (t *Tag) freeform(name string) *item {
	for _, it := range t.extra {
		if it.code == freeformCode && it.mean == meanITunes && it.name == name {
			return it
		}
	}
	return nil
}

func (t *Tag) setFreeformText(name, value string) {
	for i, it := range t.extra {
		if it.code == freeformCode && it.mean == meanITunes && it.name == name {
			if value == "" {
				t.extra = append(t.extra[:i], t.extra[i+1:]...)
				return
			}
			it.data = []childAtom{{typ: "data", flags: 1, payload: []byte(value)}}
			return
		}
	}
	if value == "" {
		return
	}
	t.extra = append(t.extra, &item{
		code: freeformCode,
		mean: meanITunes,
		name: name,
		data: []childAtom{{typ: "data", flags: 1, payload: []byte(value)}},
	})
}

func (t *Tag) freeformText(name string) string {
	it := t.freeform(name)
	if it == nil || len(it.data) == 0 {
		return ""
	}
	return string(it.data[0].payload)
}

func (t *Tag) MusicBrainzID() string     { return t.freeformText(nameMBTrackID) }
func (t *Tag) SetMusicBrainzID(v string) { t.setFreeformText(nameMBTrackID, v) }
func (t *Tag) ISRC() string              { return t.freeformText(nameISRC) }
func (t *Tag) SetISRC(v string)          { t.setFreeformText(nameISRC, v) }

// childHeaderLen returns the header length of a child atom: "data" carries
// a locale field after its version/flags word, "mean"/"name" do not.
func childHeaderLen(typ string) int {
	if typ == "data" {
		return 16
	}
	return 12
}

// parseChildAtoms walks a sequence of [size(4) type(4) flags(4) [locale(4)]
// payload] entries, the layout shared by "data"/"mean"/"name".
func parseChildAtoms(body []byte) ([]childAtom, error) {
	var out []childAtom
	pos := 0
	for pos < len(body) {
		if pos+12 > len(body) {
			return nil, mmerr.Truncatedf("mp4tag: child atom header truncated")
		}
		size := int(binary.BigEndian.Uint32(body[pos : pos+4]))
		typ := string(body[pos+4 : pos+8])
		hdr := childHeaderLen(typ)
		if size < hdr || pos+size > len(body) {
			return nil, mmerr.CorruptFilef("mp4tag: invalid child atom size %d", size)
		}
		flags := binary.BigEndian.Uint32(body[pos+8:pos+12]) & 0x00FFFFFF
		payload := body[pos+hdr : pos+size]
		out = append(out, childAtom{typ: typ, flags: flags, payload: payload})
		pos += size
	}
	return out, nil
}

func encodeChildAtom(typ string, flags uint32, payload []byte) []byte {
	hdr := childHeaderLen(typ)
	size := hdr + len(payload)
	out := make([]byte, size)
	binary.BigEndian.PutUint32(out[0:4], uint32(size))
	copy(out[4:8], typ)
	binary.BigEndian.PutUint32(out[8:12], flags&0x00FFFFFF)
	// for "data", bytes 12:16 are the locale field, left zero
	copy(out[hdr:], payload)
	return out
}

// Decode parses the raw ilst body (the concatenation of item atoms) into a
// Tag. Items this codec does not recognize are kept in extra and re-emitted
// on Encode with the same code and the same child types, flags and payloads
// (the child version byte and data locale are written as zero).
func Decode(body []byte) (*Tag, error) {
	t := New()
	pos := 0
	for pos < len(body) {
		if pos+8 > len(body) {
			return nil, mmerr.Truncatedf("mp4tag: ilst item header truncated")
		}
		size := int(binary.BigEndian.Uint32(body[pos : pos+4]))
		if size < 8 || pos+size > len(body) {
			return nil, mmerr.CorruptFilef("mp4tag: invalid ilst item size %d", size)
		}
		code := string(body[pos+4 : pos+8])
		children, err := parseChildAtoms(body[pos+8 : pos+size])
		if err != nil {
			return nil, err
		}
		if code == freeformCode {
			it := &item{code: code}
			for _, c := range children {
				switch c.typ {
				case "mean":
					it.mean = string(c.payload)
				case "name":
					it.name = string(c.payload)
				case "data":
					it.data = append(it.data, c)
				}
			}
			t.extra = append(t.extra, it)
		} else if !applyKnownAtom(t, code, children) {
			t.extra = append(t.extra, &item{code: code, data: children})
		}
		pos += size
	}
	return t, nil
}

// applyKnownAtom maps a known item onto the tag and reports whether code
// was one it knows.
func applyKnownAtom(t *Tag, code string, children []childAtom) bool {
	text := func() string {
		for _, c := range children {
			if c.typ == "data" {
				return string(c.payload)
			}
		}
		return ""
	}
	switch code {
	case "\xa9nam":
		t.SetTitle(text())
	case "\xa9ART":
		t.SetPerformers(splitSemicolon(text()))
	case "aART":
		t.SetAlbumArtists(splitSemicolon(text()))
	case "\xa9wrt":
		t.SetComposers(splitSemicolon(text()))
	case "\xa9alb":
		t.SetAlbum(text())
	case "\xa9cmt":
		t.SetComment(text())
	case "\xa9gen":
		t.SetGenres(splitSemicolon(text()))
	case "\xa9day":
		t.SetYear(parseYear(text()))
	case "\xa9lyr":
		t.SetLyrics(text())
	case "cpil":
		for _, c := range children {
			if c.typ == "data" && len(c.payload) > 0 {
				t.SetCompilation(c.payload[0] != 0)
			}
		}
	case "trkn":
		n, m := decodePair(children)
		t.SetTrack(n)
		t.SetTrackTotal(m)
	case "disk":
		n, m := decodePair(children)
		t.SetDisc(n)
		t.SetDiscTotal(m)
	case "covr":
		var pics []tagmodel.Picture
		for _, c := range children {
			if c.typ != "data" {
				continue
			}
			mime := "image/jpeg"
			if c.flags == 14 {
				mime = "image/png"
			}
			pics = append(pics, tagmodel.Picture{MimeType: mime, Kind: tagmodel.PictureFrontCover, Data: c.payload})
		}
		t.SetPictures(append(t.Pictures(), pics...))
	default:
		return false
	}
	return true
}

func decodePair(children []childAtom) (uint, uint) {
	for _, c := range children {
		if c.typ == "data" && len(c.payload) >= 6 {
			n := binary.BigEndian.Uint16(c.payload[2:4])
			m := binary.BigEndian.Uint16(c.payload[4:6])
			return uint(n), uint(m)
		}
	}
	return 0, 0
}

func splitSemicolon(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseYear(s string) uint {
	if len(s) < 4 {
		return 0
	}
	var y uint
	for _, c := range s[:4] {
		if c < '0' || c > '9' {
			return 0
		}
		y = y*10 + uint(c-'0')
	}
	return y
}

// Encode renders the full ilst body: one atom per populated known field,
// then every preserved freeform/unknown item.
func Encode(t *Tag) []byte {
	var out []byte
	emitText := func(code, s string) {
		if s == "" {
			return
		}
		out = append(out, encodeItem(code, []childAtom{{typ: "data", flags: 1, payload: []byte(s)}})...)
	}
	emitText("\xa9nam", t.Title())
	emitText("\xa9ART", strings.Join(t.Performers(), "; "))
	emitText("aART", strings.Join(t.AlbumArtists(), "; "))
	emitText("\xa9wrt", strings.Join(t.Composers(), "; "))
	emitText("\xa9alb", t.Album())
	emitText("\xa9cmt", t.Comment())
	emitText("\xa9gen", strings.Join(t.Genres(), "; "))
	if t.Year() != 0 {
		emitText("\xa9day", yearString(t.Year()))
	}
	emitText("\xa9lyr", t.Lyrics())
	if t.Compilation() {
		out = append(out, encodeItem("cpil", []childAtom{{typ: "data", flags: 21, payload: []byte{1}}})...)
	}
	if t.Track() != 0 || t.TrackTotal() != 0 {
		out = append(out, encodeItem("trkn", []childAtom{{typ: "data", flags: 0, payload: encodePair(t.Track(), t.TrackTotal())}})...)
	}
	if t.Disc() != 0 || t.DiscTotal() != 0 {
		out = append(out, encodeItem("disk", []childAtom{{typ: "data", flags: 0, payload: encodePair(t.Disc(), t.DiscTotal())}})...)
	}
	for _, p := range t.Pictures() {
		flags := uint32(13)
		if p.MimeType == "image/png" {
			flags = 14
		}
		out = append(out, encodeItem("covr", []childAtom{{typ: "data", flags: flags, payload: p.Data}})...)
	}
	for _, it := range t.extra {
		if it.code != freeformCode {
			out = append(out, encodeItem(it.code, it.data)...)
			continue
		}
		out = append(out, encodeFreeform(it)...)
	}
	return out
}

func yearString(y uint) string {
	digits := [4]byte{}
	v := y
	for i := 3; i >= 0; i-- {
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits[:])
}

func encodePair(n, m uint) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint16(buf[2:4], uint16(n))
	binary.BigEndian.PutUint16(buf[4:6], uint16(m))
	return buf
}

func encodeItem(code string, children []childAtom) []byte {
	var body []byte
	for _, c := range children {
		body = append(body, encodeChildAtom(c.typ, c.flags, c.payload)...)
	}
	size := 8 + len(body)
	out := make([]byte, 8, size)
	binary.BigEndian.PutUint32(out[0:4], uint32(size))
	copy(out[4:8], code)
	return append(out, body...)
}

func encodeFreeform(it *item) []byte {
	var children []childAtom
	children = append(children, childAtom{typ: "mean", payload: []byte(it.mean)})
	children = append(children, childAtom{typ: "name", payload: []byte(it.name)})
	children = append(children, it.data...)
	return encodeItem(freeformCode, children)
}
