// Package id3v1 decodes and encodes the 128-byte ID3v1 tag found at the tail
// of MPEG/MP3 files.
package id3v1

import (
	"strconv"
	"strings"

	"github.com/cesargomez89/navidrums/internal/mediameta/bytebuffer"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// Size is the fixed on-disk length of an ID3v1 tag.
const Size = 128

// Identifier is the 3-byte magic at the start of the tag.
var Identifier = []byte("TAG")

var genres = []string{
	"Blues", "Classic Rock", "Country", "Dance", "Disco", "Funk", "Grunge",
	"Hip-Hop", "Jazz", "Metal", "New Age", "Oldies", "Other", "Pop", "R&B",
	"Rap", "Reggae", "Rock", "Techno", "Industrial", "Alternative", "Ska",
	"Death Metal", "Pranks", "Soundtrack", "Euro-Techno", "Ambient",
	"Trip-Hop", "Vocal", "Jazz+Funk", "Fusion", "Trance", "Classical",
	"Instrumental", "Acid", "House", "Game", "Sound Clip", "Gospel", "Noise",
	"AlternRock", "Bass", "Soul", "Punk", "Space", "Meditative",
	"Instrumental Pop", "Instrumental Rock", "Ethnic", "Gothic", "Darkwave",
	"Techno-Industrial", "Electronic", "Pop-Folk", "Eurodance", "Dream",
	"Southern Rock", "Comedy", "Cult", "Gangsta", "Top 40", "Christian Rap",
	"Pop/Funk", "Jungle", "Native American", "Cabaret", "New Wave",
	"Psychedelic", "Rave", "Showtunes", "Trailer", "Lo-Fi", "Tribal",
	"Acid Punk", "Acid Jazz", "Polka", "Retro", "Musical", "Rock & Roll",
	"Hard Rock",
}

// Tag is the decoded ID3v1 structure. Track-total, disc, composer, lyrics,
// and pictures are not representable per ID3v1's fixed 30-byte fields.
type Tag struct {
	title   string
	artist  string
	album   string
	year    string
	comment string
	track   uint // 0 when the comment field uses its full 30 bytes (pre-v1.1)
	genre   uint8
}

// New returns an empty ID3v1 tag (genre unset).
func New() *Tag {
	return &Tag{genre: 255}
}

var capabilities = map[tagmodel.Field]bool{
	tagmodel.FieldTitle:      true,
	tagmodel.FieldPerformers: true,
	tagmodel.FieldAlbum:      true,
	tagmodel.FieldComment:    true,
	tagmodel.FieldGenres:     true,
	tagmodel.FieldYear:       true,
	tagmodel.FieldTrack:      true,
}

func (t *Tag) TagKind() tagmodel.Kind                { return tagmodel.KindID3v1 }
func (t *Tag) Capabilities() map[tagmodel.Field]bool { return capabilities }

func (t *Tag) Title() string     { return t.title }
func (t *Tag) SetTitle(v string) { t.title = truncate(v, 30) }

func (t *Tag) Performers() []string {
	if t.artist == "" {
		return nil
	}
	return []string{t.artist}
}
func (t *Tag) SetPerformers(v []string) {
	if len(v) > 0 {
		t.artist = truncate(v[0], 30)
	} else {
		t.artist = ""
	}
}

func (t *Tag) AlbumArtists() []string        { return nil }
func (t *Tag) SetAlbumArtists([]string)      {}
func (t *Tag) Composers() []string           { return nil }
func (t *Tag) SetComposers([]string)         {}

func (t *Tag) Album() string     { return t.album }
func (t *Tag) SetAlbum(v string) { t.album = truncate(v, 30) }

func (t *Tag) Comment() string     { return t.comment }
func (t *Tag) SetComment(v string) { t.comment = truncate(v, 28) }

func (t *Tag) Genres() []string {
	if int(t.genre) < len(genres) {
		return []string{genres[t.genre]}
	}
	return nil
}
func (t *Tag) SetGenres(v []string) {
	if len(v) == 0 {
		t.genre = 255
		return
	}
	for i, g := range genres {
		if strings.EqualFold(g, v[0]) {
			t.genre = uint8(i)
			return
		}
	}
	t.genre = 255
}

func (t *Tag) Year() uint {
	y, err := strconv.Atoi(strings.TrimSpace(t.year))
	if err != nil || y <= 0 {
		return 0
	}
	return uint(y)
}
func (t *Tag) SetYear(v uint) {
	if v == 0 {
		t.year = ""
		return
	}
	t.year = strconv.Itoa(int(v))
}

func (t *Tag) Track() uint      { return t.track }
func (t *Tag) SetTrack(v uint)  { t.track = v }
func (t *Tag) TrackTotal() uint { return 0 }
func (t *Tag) SetTrackTotal(uint) {}
func (t *Tag) Disc() uint         { return 0 }
func (t *Tag) SetDisc(uint)       {}
func (t *Tag) DiscTotal() uint    { return 0 }
func (t *Tag) SetDiscTotal(uint)  {}
func (t *Tag) Lyrics() string     { return "" }
func (t *Tag) SetLyrics(string)   {}
func (t *Tag) Compilation() bool  { return false }
func (t *Tag) SetCompilation(bool) {}
func (t *Tag) MusicBrainzID() string { return "" }
func (t *Tag) SetMusicBrainzID(string) {}
func (t *Tag) ISRC() string       { return "" }
func (t *Tag) SetISRC(string)     {}
func (t *Tag) Pictures() []tagmodel.Picture     { return nil }
func (t *Tag) SetPictures([]tagmodel.Picture)   {}

func (t *Tag) IsEmpty() bool {
	return t.title == "" && t.artist == "" && t.album == "" && t.year == "" &&
		t.comment == "" && t.track == 0 && t.genre == 255
}

// truncate limits s to n bytes of its Latin-1 rendition, the fixed field
// width ID3v1 stores.
func truncate(s string, n int) string {
	b := bytebuffer.EncodeString(s, bytebuffer.Latin1)
	if len(b) > n {
		b = b[:n]
	}
	return bytebuffer.DecodeString(b, bytebuffer.Latin1)
}

// Decode parses a 128-byte ID3v1 tag. The caller must have already verified
// the 3-byte "TAG" identifier and sliced exactly Size bytes starting from it
// (i.e. data[0:3] == "TAG").
func Decode(data []byte) (*Tag, error) {
	if len(data) != Size {
		return nil, mmerr.Truncatedf("id3v1: expected %d bytes, got %d", Size, len(data))
	}
	if string(data[0:3]) != "TAG" {
		return nil, mmerr.CorruptFilef("id3v1: missing TAG identifier")
	}
	t := New()
	t.title = trimNul(data[3:33])
	t.artist = trimNul(data[33:63])
	t.album = trimNul(data[63:93])
	t.year = trimNul(data[93:97])
	commentField := data[97:127]
	// ID3v1.1: byte 125 is zero and byte 126 holds the track number.
	if commentField[28] == 0 && commentField[29] != 0 {
		t.comment = trimNul(commentField[0:28])
		t.track = uint(commentField[29])
	} else {
		t.comment = trimNul(commentField)
	}
	t.genre = data[127]
	return t, nil
}

// Encode renders t as a 128-byte ID3v1.1 tag (always written with the
// track-number convention when Track is set).
func Encode(t *Tag) []byte {
	buf := make([]byte, Size)
	copy(buf[0:3], "TAG")
	copyPadded(buf[3:33], t.title)
	copyPadded(buf[33:63], t.artist)
	copyPadded(buf[63:93], t.album)
	copyPadded(buf[93:97], t.year)
	if t.track > 0 && t.track <= 255 {
		copyPadded(buf[97:125], t.comment)
		buf[125] = 0
		buf[126] = byte(t.track)
	} else {
		copyPadded(buf[97:127], t.comment)
	}
	buf[127] = t.genre
	return buf
}

func copyPadded(dst []byte, s string) {
	n := copy(dst, bytebuffer.EncodeString(s, bytebuffer.Latin1))
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func trimNul(b []byte) string {
	s := bytebuffer.DecodeString(b, bytebuffer.Latin1)
	return strings.TrimRight(strings.TrimRight(s, "\x00"), " ")
}
