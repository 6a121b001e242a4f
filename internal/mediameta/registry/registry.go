// Package registry maps a caller-declared MIME type to the container
// reader that understands it: a fixed table of
// (declared_mime_type, container_reader) pairs, and a single Create
// entry point that selects a reader and dispatches to it. An unrecognized
// mime type is an UnsupportedFormat error, never a guess from content.
package registry

import (
	"github.com/cesargomez89/navidrums/internal/mediameta/containers/aiff"
	"github.com/cesargomez89/navidrums/internal/mediameta/containers/asf"
	"github.com/cesargomez89/navidrums/internal/mediameta/containers/dsf"
	"github.com/cesargomez89/navidrums/internal/mediameta/containers/flac"
	"github.com/cesargomez89/navidrums/internal/mediameta/containers/iso"
	"github.com/cesargomez89/navidrums/internal/mediameta/containers/mpegfile"
	"github.com/cesargomez89/navidrums/internal/mediameta/containers/ogg"
	"github.com/cesargomez89/navidrums/internal/mediameta/containers/riff"
	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// Container is the uniform surface every format-specific reader is adapted
// to: the combined tag read from the file, the (possibly nil, if style was
// StyleNone) extracted properties, and a Save that re-splices the tag back
// into the stream it was read from.
type Container interface {
	Tag() *tagmodel.CombinedTag
	Properties() *mediainfo.Properties
	Save(stream *filestream.Stream) error
}

// opener is the per-format Read entry point, uniform across every
// containers/* package once its own Layout type is closed over by the
// adapter it returns.
type opener func(stream *filestream.Stream, style mediainfo.Style) (Container, error)

// openers is the declared-mime → container-reader table. Aliases for the
// same underlying format (e.g. "audio/x-flac" and "audio/flac") map to the
// same opener, matching how browsers and taggers disagree on canonical
// MIME strings for the same bytes.
var openers = map[string]opener{
	"audio/mpeg":             openMPEG,
	"audio/mp3":              openMPEG,
	"audio/x-mpeg":           openMPEG,
	"audio/flac":             openFLAC,
	"audio/x-flac":           openFLAC,
	"audio/mp4":              openISO,
	"audio/x-m4a":            openISO,
	"video/mp4":              openISO,
	"audio/wav":              openRIFF,
	"audio/x-wav":            openRIFF,
	"audio/vnd.wave":         openRIFF,
	"audio/aiff":             openAIFF,
	"audio/x-aiff":           openAIFF,
	"audio/dsf":              openDSF,
	"audio/x-dsf":            openDSF,
	"audio/ogg":              openOgg,
	"audio/x-ms-wma":         openASF,
	"video/x-ms-asf":         openASF,
	"application/vnd.ms-asf": openASF,
}

// Register adds or overrides an opener for a declared mime type. Exposed so
// a caller (or a test) can extend the table without forking the package.
func Register(mime string, open opener) { openers[mime] = open }

// Create selects a reader by declaredMime and dispatches to it. The caller
// owns stream and keeps it open for the returned Container's lifetime.
func Create(stream *filestream.Stream, declaredMime string, style mediainfo.Style) (Container, error) {
	open, ok := openers[declaredMime]
	if !ok {
		return nil, mmerr.UnsupportedFormatf("registry: no reader registered for mime %q", declaredMime)
	}
	return open(stream, style)
}

func openMPEG(stream *filestream.Stream, style mediainfo.Style) (Container, error) {
	tag, props, layout, err := mpegfile.Read(stream, style)
	if err != nil {
		return nil, err
	}
	return &mpegContainer{tag: tag, props: props, layout: layout}, nil
}

type mpegContainer struct {
	tag    *tagmodel.CombinedTag
	props  *mediainfo.Properties
	layout *mpegfile.Layout
}

func (c *mpegContainer) Tag() *tagmodel.CombinedTag        { return c.tag }
func (c *mpegContainer) Properties() *mediainfo.Properties { return c.props }
func (c *mpegContainer) Save(stream *filestream.Stream) error {
	return mpegfile.Save(stream, c.layout, c.tag)
}

func openFLAC(stream *filestream.Stream, style mediainfo.Style) (Container, error) {
	magicStart, leadingID3, err := flac.LocateMagic(stream)
	if err != nil {
		return nil, err
	}
	tag, props, fs, err := flac.Read(stream, magicStart, style)
	if err != nil {
		return nil, err
	}
	if leadingID3 != nil {
		tag.Add(leadingID3)
	}
	return &flacContainer{tag: tag, props: props, fs: fs}, nil
}

type flacContainer struct {
	tag   *tagmodel.CombinedTag
	props *mediainfo.Properties
	fs    *flac.Stream
}

func (c *flacContainer) Tag() *tagmodel.CombinedTag        { return c.tag }
func (c *flacContainer) Properties() *mediainfo.Properties { return c.props }
func (c *flacContainer) Save(stream *filestream.Stream) error {
	return flac.Save(stream, c.fs, c.tag)
}

func openISO(stream *filestream.Stream, style mediainfo.Style) (Container, error) {
	tag, props, layout, err := iso.Read(stream, style)
	if err != nil {
		return nil, err
	}
	return &isoContainer{tag: tag, props: props, layout: layout}, nil
}

type isoContainer struct {
	tag    *tagmodel.CombinedTag
	props  *mediainfo.Properties
	layout *iso.Layout
}

func (c *isoContainer) Tag() *tagmodel.CombinedTag        { return c.tag }
func (c *isoContainer) Properties() *mediainfo.Properties { return c.props }
func (c *isoContainer) Save(stream *filestream.Stream) error {
	return iso.Save(stream, c.layout, c.tag)
}

func openRIFF(stream *filestream.Stream, style mediainfo.Style) (Container, error) {
	tag, props, layout, err := riff.Read(stream, style)
	if err != nil {
		return nil, err
	}
	return &riffContainer{tag: tag, props: props, layout: layout}, nil
}

type riffContainer struct {
	tag    *tagmodel.CombinedTag
	props  *mediainfo.Properties
	layout *riff.Layout
}

func (c *riffContainer) Tag() *tagmodel.CombinedTag        { return c.tag }
func (c *riffContainer) Properties() *mediainfo.Properties { return c.props }
func (c *riffContainer) Save(stream *filestream.Stream) error {
	return riff.Save(stream, c.layout, c.tag)
}

func openAIFF(stream *filestream.Stream, style mediainfo.Style) (Container, error) {
	tag, props, layout, err := aiff.Read(stream, style)
	if err != nil {
		return nil, err
	}
	return &aiffContainer{tag: tag, props: props, layout: layout}, nil
}

type aiffContainer struct {
	tag    *tagmodel.CombinedTag
	props  *mediainfo.Properties
	layout *aiff.Layout
}

func (c *aiffContainer) Tag() *tagmodel.CombinedTag        { return c.tag }
func (c *aiffContainer) Properties() *mediainfo.Properties { return c.props }
func (c *aiffContainer) Save(stream *filestream.Stream) error {
	return aiff.Save(stream, c.layout, c.tag)
}

func openDSF(stream *filestream.Stream, style mediainfo.Style) (Container, error) {
	tag, props, layout, err := dsf.Read(stream, style)
	if err != nil {
		return nil, err
	}
	return &dsfContainer{tag: tag, props: props, layout: layout}, nil
}

type dsfContainer struct {
	tag    *tagmodel.CombinedTag
	props  *mediainfo.Properties
	layout *dsf.Layout
}

func (c *dsfContainer) Tag() *tagmodel.CombinedTag        { return c.tag }
func (c *dsfContainer) Properties() *mediainfo.Properties { return c.props }
func (c *dsfContainer) Save(stream *filestream.Stream) error {
	return dsf.Save(stream, c.layout, c.tag)
}

func openOgg(stream *filestream.Stream, style mediainfo.Style) (Container, error) {
	tag, props, fs, err := ogg.Read(stream, style)
	if err != nil {
		return nil, err
	}
	return &oggContainer{tag: tag, props: props, fs: fs}, nil
}

type oggContainer struct {
	tag   *tagmodel.CombinedTag
	props *mediainfo.Properties
	fs    *ogg.Stream
}

func (c *oggContainer) Tag() *tagmodel.CombinedTag        { return c.tag }
func (c *oggContainer) Properties() *mediainfo.Properties { return c.props }
func (c *oggContainer) Save(stream *filestream.Stream) error {
	return ogg.Save(stream, c.fs, c.tag)
}

func openASF(stream *filestream.Stream, style mediainfo.Style) (Container, error) {
	tag, props, layout, err := asf.Read(stream, style)
	if err != nil {
		return nil, err
	}
	return &asfContainer{tag: tag, props: props, layout: layout}, nil
}

type asfContainer struct {
	tag    *tagmodel.CombinedTag
	props  *mediainfo.Properties
	layout *asf.Layout
}

func (c *asfContainer) Tag() *tagmodel.CombinedTag        { return c.tag }
func (c *asfContainer) Properties() *mediainfo.Properties { return c.props }
func (c *asfContainer) Save(stream *filestream.Stream) error {
	return asf.Save(stream, c.layout, c.tag)
}
