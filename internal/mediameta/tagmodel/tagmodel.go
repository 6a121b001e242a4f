// Package tagmodel defines the abstract tag surface shared by every concrete
// tag codec (ID3v1, ID3v2, APE, Xiph, MP4 ilst, ASF, IFD/EXIF) and the
// CombinedTag that merges several coexisting tag formats in one file into a
// single read/write surface.
package tagmodel

// Kind discriminates concrete tag variants, replacing class inheritance with
// a tagged variant.
type Kind int

const (
	KindID3v1 Kind = iota
	KindID3v2
	KindAPE
	KindXiph
	KindIFD
	KindApple
	KindASF
	KindPNG
	KindGIF
	KindJPEGComment
)

func (k Kind) String() string {
	switch k {
	case KindID3v1:
		return "ID3v1"
	case KindID3v2:
		return "ID3v2"
	case KindAPE:
		return "APE"
	case KindXiph:
		return "Xiph"
	case KindIFD:
		return "IFD"
	case KindApple:
		return "Apple"
	case KindASF:
		return "ASF"
	case KindPNG:
		return "PNG"
	case KindGIF:
		return "GIF"
	case KindJPEGComment:
		return "JPEGComment"
	default:
		return "Unknown"
	}
}

// Field identifies a single semantic field a tag variant may or may not be
// able to represent.
type Field int

const (
	FieldTitle Field = iota
	FieldPerformers // artists
	FieldAlbumArtists
	FieldComposers
	FieldAlbum
	FieldComment
	FieldGenres
	FieldYear
	FieldTrack
	FieldTrackTotal
	FieldDisc
	FieldDiscTotal
	FieldLyrics
	FieldCompilation
	FieldMusicBrainzID
	FieldISRC
	FieldPictures
)

// PictureKind mirrors the ID3v2 attached-picture type enumeration.
type PictureKind int

const (
	PictureOther PictureKind = iota
	PictureFileIcon
	PictureOtherFileIcon
	PictureFrontCover
	PictureBackCover
	PictureLeafletPage
	PictureMedia
	PictureLeadArtist
	PictureArtist
	PictureConductor
	PictureBand
	PictureComposer
	PictureLyricist
	PictureRecordingLocation
	PictureDuringRecording
	PictureDuringPerformance
	PictureMovieScreenCapture
	PictureColouredFish
	PictureIllustration
	PictureBandLogo
	PicturePublisherLogo
)

// Picture is an embedded image: (mime_type, kind, description, data).
type Picture struct {
	MimeType    string
	Kind        PictureKind
	Description string
	Data        []byte
}

// Tag is the abstract tag surface. Fields are nullable in the sense that a
// zero value means "not set"; Capabilities reports which fields a concrete
// variant can represent so CombinedTag can route writes correctly.
type Tag interface {
	TagKind() Kind
	Capabilities() map[Field]bool

	Title() string
	SetTitle(string)
	Performers() []string
	SetPerformers([]string)
	AlbumArtists() []string
	SetAlbumArtists([]string)
	Composers() []string
	SetComposers([]string)
	Album() string
	SetAlbum(string)
	Comment() string
	SetComment(string)
	Genres() []string
	SetGenres([]string)
	Year() uint
	SetYear(uint)
	Track() uint
	SetTrack(uint)
	TrackTotal() uint
	SetTrackTotal(uint)
	Disc() uint
	SetDisc(uint)
	DiscTotal() uint
	SetDiscTotal(uint)
	Lyrics() string
	SetLyrics(string)
	Compilation() bool
	SetCompilation(bool)
	MusicBrainzID() string
	SetMusicBrainzID(string)
	ISRC() string
	SetISRC(string)
	Pictures() []Picture
	SetPictures([]Picture)

	// IsEmpty reports whether every representable field is unset.
	IsEmpty() bool
}

// Can reports whether t can represent field.
func Can(t Tag, f Field) bool {
	return t.Capabilities()[f]
}

// CombinedTag owns an ordered list of concrete tags and delegates reads to
// the first tag that provides a non-empty value; writes go to every child
// capable of representing the field.
type CombinedTag struct {
	children []Tag
}

// NewCombinedTag builds a CombinedTag over children in priority order (first
// child wins reads).
func NewCombinedTag(children ...Tag) *CombinedTag {
	return &CombinedTag{children: children}
}

// Children returns the underlying concrete tags in priority order.
func (c *CombinedTag) Children() []Tag { return c.children }

// Add appends a child tag at the end of the priority order.
func (c *CombinedTag) Add(t Tag) { c.children = append(c.children, t) }

func (c *CombinedTag) Title() string {
	for _, t := range c.children {
		if v := t.Title(); v != "" {
			return v
		}
	}
	return ""
}

func (c *CombinedTag) SetTitle(v string) {
	for _, t := range c.children {
		if Can(t, FieldTitle) {
			t.SetTitle(v)
		}
	}
}

func (c *CombinedTag) Performers() []string {
	for _, t := range c.children {
		if v := t.Performers(); len(v) > 0 {
			return v
		}
	}
	return nil
}

func (c *CombinedTag) SetPerformers(v []string) {
	for _, t := range c.children {
		if Can(t, FieldPerformers) {
			t.SetPerformers(v)
		}
	}
}

func (c *CombinedTag) AlbumArtists() []string {
	for _, t := range c.children {
		if v := t.AlbumArtists(); len(v) > 0 {
			return v
		}
	}
	return nil
}

func (c *CombinedTag) SetAlbumArtists(v []string) {
	for _, t := range c.children {
		if Can(t, FieldAlbumArtists) {
			t.SetAlbumArtists(v)
		}
	}
}

func (c *CombinedTag) Composers() []string {
	for _, t := range c.children {
		if v := t.Composers(); len(v) > 0 {
			return v
		}
	}
	return nil
}

func (c *CombinedTag) SetComposers(v []string) {
	for _, t := range c.children {
		if Can(t, FieldComposers) {
			t.SetComposers(v)
		}
	}
}

func (c *CombinedTag) Album() string {
	for _, t := range c.children {
		if v := t.Album(); v != "" {
			return v
		}
	}
	return ""
}

func (c *CombinedTag) SetAlbum(v string) {
	for _, t := range c.children {
		if Can(t, FieldAlbum) {
			t.SetAlbum(v)
		}
	}
}

func (c *CombinedTag) Comment() string {
	for _, t := range c.children {
		if v := t.Comment(); v != "" {
			return v
		}
	}
	return ""
}

func (c *CombinedTag) SetComment(v string) {
	for _, t := range c.children {
		if Can(t, FieldComment) {
			t.SetComment(v)
		}
	}
}

func (c *CombinedTag) Genres() []string {
	for _, t := range c.children {
		if v := t.Genres(); len(v) > 0 {
			return v
		}
	}
	return nil
}

func (c *CombinedTag) SetGenres(v []string) {
	for _, t := range c.children {
		if Can(t, FieldGenres) {
			t.SetGenres(v)
		}
	}
}

func (c *CombinedTag) Year() uint {
	for _, t := range c.children {
		if v := t.Year(); v != 0 {
			return v
		}
	}
	return 0
}

func (c *CombinedTag) SetYear(v uint) {
	for _, t := range c.children {
		if Can(t, FieldYear) {
			t.SetYear(v)
		}
	}
}

func (c *CombinedTag) Track() uint {
	for _, t := range c.children {
		if v := t.Track(); v != 0 {
			return v
		}
	}
	return 0
}

func (c *CombinedTag) SetTrack(v uint) {
	for _, t := range c.children {
		if Can(t, FieldTrack) {
			t.SetTrack(v)
		}
	}
}

func (c *CombinedTag) TrackTotal() uint {
	for _, t := range c.children {
		if v := t.TrackTotal(); v != 0 {
			return v
		}
	}
	return 0
}

func (c *CombinedTag) SetTrackTotal(v uint) {
	for _, t := range c.children {
		if Can(t, FieldTrackTotal) {
			t.SetTrackTotal(v)
		}
	}
}

func (c *CombinedTag) Disc() uint {
	for _, t := range c.children {
		if v := t.Disc(); v != 0 {
			return v
		}
	}
	return 0
}

func (c *CombinedTag) SetDisc(v uint) {
	for _, t := range c.children {
		if Can(t, FieldDisc) {
			t.SetDisc(v)
		}
	}
}

func (c *CombinedTag) DiscTotal() uint {
	for _, t := range c.children {
		if v := t.DiscTotal(); v != 0 {
			return v
		}
	}
	return 0
}

func (c *CombinedTag) SetDiscTotal(v uint) {
	for _, t := range c.children {
		if Can(t, FieldDiscTotal) {
			t.SetDiscTotal(v)
		}
	}
}

func (c *CombinedTag) Lyrics() string {
	for _, t := range c.children {
		if v := t.Lyrics(); v != "" {
			return v
		}
	}
	return ""
}

func (c *CombinedTag) SetLyrics(v string) {
	for _, t := range c.children {
		if Can(t, FieldLyrics) {
			t.SetLyrics(v)
		}
	}
}

func (c *CombinedTag) Compilation() bool {
	for _, t := range c.children {
		if t.Compilation() {
			return true
		}
	}
	return false
}

func (c *CombinedTag) SetCompilation(v bool) {
	for _, t := range c.children {
		if Can(t, FieldCompilation) {
			t.SetCompilation(v)
		}
	}
}

func (c *CombinedTag) MusicBrainzID() string {
	for _, t := range c.children {
		if v := t.MusicBrainzID(); v != "" {
			return v
		}
	}
	return ""
}

func (c *CombinedTag) SetMusicBrainzID(v string) {
	for _, t := range c.children {
		if Can(t, FieldMusicBrainzID) {
			t.SetMusicBrainzID(v)
		}
	}
}

func (c *CombinedTag) ISRC() string {
	for _, t := range c.children {
		if v := t.ISRC(); v != "" {
			return v
		}
	}
	return ""
}

func (c *CombinedTag) SetISRC(v string) {
	for _, t := range c.children {
		if Can(t, FieldISRC) {
			t.SetISRC(v)
		}
	}
}

func (c *CombinedTag) Pictures() []Picture {
	for _, t := range c.children {
		if v := t.Pictures(); len(v) > 0 {
			return v
		}
	}
	return nil
}

func (c *CombinedTag) SetPictures(v []Picture) {
	for _, t := range c.children {
		if Can(t, FieldPictures) {
			t.SetPictures(v)
		}
	}
}

// IsEmpty reports whether every child tag is empty.
func (c *CombinedTag) IsEmpty() bool {
	for _, t := range c.children {
		if !t.IsEmpty() {
			return false
		}
	}
	return true
}

// CopyTo copies every non-empty field that dest can represent, respecting
// overwrite per field: if overwrite is false, a field already set on dest is
// left untouched.
func CopyTo(src, dest Tag) {
	copyToWithOverwrite(src, dest, true)
}

// CopyToNoOverwrite behaves like CopyTo but never replaces a field already
// set on dest.
func CopyToNoOverwrite(src, dest Tag) {
	copyToWithOverwrite(src, dest, false)
}

func copyToWithOverwrite(src, dest Tag, overwrite bool) {
	if Can(dest, FieldTitle) && src.Title() != "" && (overwrite || dest.Title() == "") {
		dest.SetTitle(src.Title())
	}
	if Can(dest, FieldPerformers) && len(src.Performers()) > 0 && (overwrite || len(dest.Performers()) == 0) {
		dest.SetPerformers(src.Performers())
	}
	if Can(dest, FieldAlbumArtists) && len(src.AlbumArtists()) > 0 && (overwrite || len(dest.AlbumArtists()) == 0) {
		dest.SetAlbumArtists(src.AlbumArtists())
	}
	if Can(dest, FieldComposers) && len(src.Composers()) > 0 && (overwrite || len(dest.Composers()) == 0) {
		dest.SetComposers(src.Composers())
	}
	if Can(dest, FieldAlbum) && src.Album() != "" && (overwrite || dest.Album() == "") {
		dest.SetAlbum(src.Album())
	}
	if Can(dest, FieldComment) && src.Comment() != "" && (overwrite || dest.Comment() == "") {
		dest.SetComment(src.Comment())
	}
	if Can(dest, FieldGenres) && len(src.Genres()) > 0 && (overwrite || len(dest.Genres()) == 0) {
		dest.SetGenres(src.Genres())
	}
	if Can(dest, FieldYear) && src.Year() != 0 && (overwrite || dest.Year() == 0) {
		dest.SetYear(src.Year())
	}
	if Can(dest, FieldTrack) && src.Track() != 0 && (overwrite || dest.Track() == 0) {
		dest.SetTrack(src.Track())
	}
	if Can(dest, FieldTrackTotal) && src.TrackTotal() != 0 && (overwrite || dest.TrackTotal() == 0) {
		dest.SetTrackTotal(src.TrackTotal())
	}
	if Can(dest, FieldDisc) && src.Disc() != 0 && (overwrite || dest.Disc() == 0) {
		dest.SetDisc(src.Disc())
	}
	if Can(dest, FieldDiscTotal) && src.DiscTotal() != 0 && (overwrite || dest.DiscTotal() == 0) {
		dest.SetDiscTotal(src.DiscTotal())
	}
	if Can(dest, FieldLyrics) && src.Lyrics() != "" && (overwrite || dest.Lyrics() == "") {
		dest.SetLyrics(src.Lyrics())
	}
	if Can(dest, FieldCompilation) && src.Compilation() && (overwrite || !dest.Compilation()) {
		dest.SetCompilation(src.Compilation())
	}
	if Can(dest, FieldMusicBrainzID) && src.MusicBrainzID() != "" && (overwrite || dest.MusicBrainzID() == "") {
		dest.SetMusicBrainzID(src.MusicBrainzID())
	}
	if Can(dest, FieldISRC) && src.ISRC() != "" && (overwrite || dest.ISRC() == "") {
		dest.SetISRC(src.ISRC())
	}
	if Can(dest, FieldPictures) && len(src.Pictures()) > 0 && (overwrite || len(dest.Pictures()) == 0) {
		dest.SetPictures(src.Pictures())
	}
}
