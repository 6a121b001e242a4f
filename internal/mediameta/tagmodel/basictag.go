package tagmodel

// BasicTag is an embeddable in-memory field store that concrete tag codecs
// use to hold decoded values between read and save. It implements every
// getter/setter of Tag except TagKind and Capabilities, which each concrete
// variant supplies.
type BasicTag struct {
	title         string
	performers    []string
	albumArtists  []string
	composers     []string
	album         string
	comment       string
	genres        []string
	year          uint
	track         uint
	trackTotal    uint
	disc          uint
	discTotal     uint
	lyrics        string
	compilation   bool
	musicBrainzID string
	isrc          string
	pictures      []Picture
}

func (b *BasicTag) Title() string            { return b.title }
func (b *BasicTag) SetTitle(v string)        { b.title = v }
func (b *BasicTag) Performers() []string      { return b.performers }
func (b *BasicTag) SetPerformers(v []string) { b.performers = v }
func (b *BasicTag) AlbumArtists() []string    { return b.albumArtists }
func (b *BasicTag) SetAlbumArtists(v []string) { b.albumArtists = v }
func (b *BasicTag) Composers() []string       { return b.composers }
func (b *BasicTag) SetComposers(v []string)  { b.composers = v }
func (b *BasicTag) Album() string             { return b.album }
func (b *BasicTag) SetAlbum(v string)        { b.album = v }
func (b *BasicTag) Comment() string           { return b.comment }
func (b *BasicTag) SetComment(v string)      { b.comment = v }
func (b *BasicTag) Genres() []string          { return b.genres }
func (b *BasicTag) SetGenres(v []string)     { b.genres = v }
func (b *BasicTag) Year() uint                { return b.year }
func (b *BasicTag) SetYear(v uint)           { b.year = v }
func (b *BasicTag) Track() uint               { return b.track }
func (b *BasicTag) SetTrack(v uint)          { b.track = v }
func (b *BasicTag) TrackTotal() uint          { return b.trackTotal }
func (b *BasicTag) SetTrackTotal(v uint)     { b.trackTotal = v }
func (b *BasicTag) Disc() uint                { return b.disc }
func (b *BasicTag) SetDisc(v uint)           { b.disc = v }
func (b *BasicTag) DiscTotal() uint           { return b.discTotal }
func (b *BasicTag) SetDiscTotal(v uint)      { b.discTotal = v }
func (b *BasicTag) Lyrics() string            { return b.lyrics }
func (b *BasicTag) SetLyrics(v string)       { b.lyrics = v }
func (b *BasicTag) Compilation() bool         { return b.compilation }
func (b *BasicTag) SetCompilation(v bool)    { b.compilation = v }
func (b *BasicTag) MusicBrainzID() string     { return b.musicBrainzID }
func (b *BasicTag) SetMusicBrainzID(v string) { b.musicBrainzID = v }
func (b *BasicTag) ISRC() string              { return b.isrc }
func (b *BasicTag) SetISRC(v string)         { b.isrc = v }
func (b *BasicTag) Pictures() []Picture       { return b.pictures }
func (b *BasicTag) SetPictures(v []Picture)  { b.pictures = v }

// IsEmpty reports whether every field is at its zero value.
func (b *BasicTag) IsEmpty() bool {
	return b.title == "" && len(b.performers) == 0 && len(b.albumArtists) == 0 &&
		len(b.composers) == 0 && b.album == "" && b.comment == "" && len(b.genres) == 0 &&
		b.year == 0 && b.track == 0 && b.trackTotal == 0 && b.disc == 0 && b.discTotal == 0 &&
		b.lyrics == "" && !b.compilation && b.musicBrainzID == "" && b.isrc == "" && len(b.pictures) == 0
}
