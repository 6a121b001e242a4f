// Package mpegfile implements the MPEG/MP3 "non-container" reader: an
// optional ID3v2 tag at the head, an optional ID3v1 tag and/or APE tag at
// the tail, with the MPEG elementary stream in between.
package mpegfile

import (
	"github.com/cesargomez89/navidrums/internal/mediameta/ape"
	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/id3v1"
	"github.com/cesargomez89/navidrums/internal/mediameta/id3v2"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mpegaudio"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// Layout records where each recognized region starts/ends, so Save can
// compute the splice without re-scanning the file.
type Layout struct {
	ID3v2Tag   *id3v2.Tag
	ID3v2End   int64 // 0 if absent
	ID3v1Start int64 // -1 if absent
	APEStart   int64 // -1 if absent
	APEEnd     int64
	AudioStart int64
	AudioEnd   int64
}

// Read scans stream for the head ID3v2 tag and tail ID3v1/APE tags, then
// locates the first MPEG frame in between to extract properties.
func Read(stream *filestream.Stream, style mediainfo.Style) (*tagmodel.CombinedTag, *mediainfo.Properties, *Layout, error) {
	layout := &Layout{ID3v1Start: -1, APEStart: -1}
	length := stream.Length()

	var id3v2Tag *id3v2.Tag
	head, err := stream.ReadAt(0, 10)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(head) == 10 && string(head[0:3]) == "ID3" {
		hdr, err := id3v2.DecodeHeader(head)
		if err == nil {
			total := hdr.TotalSize()
			body, err := stream.ReadAt(0, int(total))
			if err == nil {
				if tag, err := id3v2.Decode(body); err == nil {
					id3v2Tag = tag
					layout.ID3v2End = total
				}
			}
		}
	}
	if id3v2Tag == nil {
		id3v2Tag = id3v2.New(id3v2.Version23)
	}
	layout.ID3v2Tag = id3v2Tag

	tailEnd := length
	var id3v1Tag *id3v1.Tag
	if length >= 128 {
		tail, err := stream.ReadAt(length-128, 128)
		if err == nil && len(tail) == 128 && string(tail[0:3]) == "TAG" {
			if tag, err := id3v1.Decode(tail); err == nil {
				id3v1Tag = tag
				layout.ID3v1Start = length - 128
				tailEnd = layout.ID3v1Start
			}
		}
	}
	if id3v1Tag == nil {
		id3v1Tag = id3v1.New()
	}

	var apeTag *ape.Tag
	if tailEnd >= ape.FooterSize {
		footer, err := stream.ReadAt(tailEnd-int64(ape.FooterSize), ape.FooterSize)
		if err == nil && len(footer) == ape.FooterSize && string(footer[0:8]) == string(ape.Identifier) {
			size := uint32(footer[12]) | uint32(footer[13])<<8 | uint32(footer[14])<<16 | uint32(footer[15])<<24
			apeStart := tailEnd - int64(size)
			if footer[23]&0x80 != 0 {
				// has-header flag: the size field excludes the 32-byte header
				apeStart -= int64(ape.FooterSize)
			}
			if apeStart >= 0 {
				block, err := stream.ReadAt(apeStart, int(tailEnd-apeStart))
				if err == nil {
					if tag, err := ape.Decode(block); err == nil {
						apeTag = tag
						layout.APEStart = apeStart
						layout.APEEnd = tailEnd
						tailEnd = apeStart
					}
				}
			}
		}
	}
	if apeTag == nil {
		apeTag = ape.New()
	}

	layout.AudioStart = layout.ID3v2End
	layout.AudioEnd = tailEnd

	combined := tagmodel.NewCombinedTag(id3v2Tag, apeTag, id3v1Tag)

	var props *mediainfo.Properties
	if style != mediainfo.StyleNone {
		p := extractProperties(stream, layout, style)
		props = &p
	}
	return combined, props, layout, nil
}

func extractProperties(stream *filestream.Stream, layout *Layout, style mediainfo.Style) mediainfo.Properties {
	off, hdr, err := mpegaudio.FindFirstFrame(stream, layout.AudioStart)
	if err != nil {
		return mediainfo.Properties{}
	}
	frameScanLen := 1024
	if int64(frameScanLen) > layout.AudioEnd-off {
		frameScanLen = int(layout.AudioEnd - off)
	}
	frameData, err := stream.ReadAt(off, frameScanLen)
	if err != nil {
		return mediainfo.Properties{}
	}
	var xing *mpegaudio.XingInfo
	var vbri *mpegaudio.VBRIInfo
	if style == mediainfo.StyleAccurate || style == mediainfo.StyleAverage {
		if x, ok := mpegaudio.ReadXing(frameData, hdr); ok {
			xing = x
		} else if v, ok := mpegaudio.ReadVBRI(frameData); ok {
			vbri = v
		}
	}
	return mpegaudio.Properties(hdr, xing, vbri, layout.AudioEnd-off, style)
}

// Save re-renders the ID3v2, APE, and ID3v1 tags and splices them back into
// their original regions (or appends them if previously absent).
//
// On disk the order (when both are present) is always APE before ID3v1
// before EOF, so ID3v1 sits at the higher offset. Splicing ID3v1 first,
// then APE, then ID3v2 means every not-yet-spliced region's absolute offset
// is still valid when its turn comes: nothing before a region's own start
// is touched until after it has been spliced.
func Save(stream *filestream.Stream, layout *Layout, tag *tagmodel.CombinedTag) error {
	id3v2Tag, apeTag, id3v1Tag := splitChildren(tag)
	audioLen := layout.AudioEnd - layout.AudioStart

	v1Len := int64(0)
	if id3v1Tag != nil && !id3v1Tag.IsEmpty() {
		body := id3v1.Encode(id3v1Tag)
		start, length := layout.AudioEnd, int64(0)
		if layout.APEStart >= 0 {
			start = layout.APEEnd
		}
		if layout.ID3v1Start >= 0 {
			start, length = layout.ID3v1Start, 128
		}
		if err := stream.Insert(body, start, length); err != nil {
			return err
		}
		v1Len = 128
	} else if layout.ID3v1Start >= 0 {
		if err := stream.Remove(layout.ID3v1Start, 128); err != nil {
			return err
		}
	}

	apeLen := int64(0)
	if apeTag != nil && !apeTag.IsEmpty() {
		body := ape.Encode(apeTag, true)
		start, end := layout.APEStart, layout.APEEnd
		if start < 0 {
			start, end = layout.AudioEnd, layout.AudioEnd
		}
		if err := stream.Insert(body, start, end-start); err != nil {
			return err
		}
		apeLen = int64(len(body))
	} else if layout.APEStart >= 0 {
		if err := stream.Remove(layout.APEStart, layout.APEEnd-layout.APEStart); err != nil {
			return err
		}
	}

	v2Len := int64(0)
	if id3v2Tag != nil && !id3v2Tag.IsEmpty() {
		body := id3v2Tag.Encode()
		if err := stream.Insert(body, 0, layout.ID3v2End); err != nil {
			return err
		}
		v2Len = int64(len(body))
	} else if layout.ID3v2End > 0 {
		if err := stream.Remove(0, layout.ID3v2End); err != nil {
			return err
		}
	}

	// Refresh the layout so a repeated Save splices at the new offsets.
	layout.ID3v2End = v2Len
	layout.AudioStart = v2Len
	layout.AudioEnd = v2Len + audioLen
	if apeLen > 0 {
		layout.APEStart = layout.AudioEnd
		layout.APEEnd = layout.APEStart + apeLen
	} else {
		layout.APEStart, layout.APEEnd = -1, 0
	}
	if v1Len > 0 {
		layout.ID3v1Start = layout.AudioEnd + apeLen
	} else {
		layout.ID3v1Start = -1
	}
	return nil
}

func splitChildren(tag *tagmodel.CombinedTag) (*id3v2.Tag, *ape.Tag, *id3v1.Tag) {
	var v2 *id3v2.Tag
	var a *ape.Tag
	var v1 *id3v1.Tag
	for _, c := range tag.Children() {
		switch t := c.(type) {
		case *id3v2.Tag:
			v2 = t
		case *ape.Tag:
			a = t
		case *id3v1.Tag:
			v1 = t
		}
	}
	return v2, a, v1
}
