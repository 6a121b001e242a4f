// Package mpegaudio implements the MPEG elementary-stream frame-header
// scanner and Xing/VBRI variable-bitrate resolution. It backs the MP3
// non-container reader's property extraction.
package mpegaudio

import (
	"bytes"

	"github.com/icza/bitio"

	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
)

// Version is the MPEG audio version carried in a frame header.
type Version int

const (
	VersionReserved Version = iota
	Version2_5
	Version2
	Version1
)

// Layer is the MPEG layer carried in a frame header.
type Layer int

const (
	LayerReserved Layer = iota
	Layer3
	Layer2
	Layer1
)

// ChannelMode is the channel configuration carried in a frame header.
type ChannelMode int

const (
	ChannelStereo ChannelMode = iota
	ChannelJointStereo
	ChannelDualMono
	ChannelMono
)

// FrameHeader is a decoded 4-byte MPEG audio frame header.
type FrameHeader struct {
	Version    Version
	Layer      Layer
	Channel    ChannelMode
	Protected  bool
	BitRate    int // kbps
	SampleRate int // Hz
	Padding    bool
}

var bitRateTable = map[Version]map[Layer][15]int{
	Version1: {
		Layer1: [15]int{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448},
		Layer2: [15]int{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384},
		Layer3: [15]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
	},
	Version2: {
		Layer1: [15]int{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256},
		Layer2: [15]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
		Layer3: [15]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	},
}

var sampleRateTable = map[Version][3]int{
	Version1:   {44100, 48000, 32000},
	Version2:   {22050, 24000, 16000},
	Version2_5: {11025, 12000, 8000},
}

// IsSync reports whether the two leading bytes match the MPEG frame sync
// pattern: first byte 0xFF, second byte's high three bits set and bits 4-5
// not equal to 01 (reserved version), bits 6-7 not both zero (reserved
// layer).
func IsSync(b0, b1 byte) bool {
	if b0 != 0xFF {
		return false
	}
	if b1&0xE0 != 0xE0 {
		return false
	}
	if (b1>>3)&0x03 == 0x01 {
		return false
	}
	if (b1>>1)&0x03 == 0x00 {
		return false
	}
	return true
}

// ParseHeader decodes a 4-byte MPEG frame header. It validates bitrate
// index != 15 and sample-rate index != 3.
func ParseHeader(data []byte) (FrameHeader, error) {
	if len(data) < 4 {
		return FrameHeader{}, mmerr.Truncatedf("mpegaudio: frame header needs 4 bytes, got %d", len(data))
	}
	if !IsSync(data[0], data[1]) {
		return FrameHeader{}, mmerr.CorruptFilef("mpegaudio: frame sync not found")
	}
	// Wire encoding: 00 = 2.5, 01 = reserved, 10 = 2, 11 = 1. IsSync has
	// already rejected the reserved value.
	var ver Version
	switch (data[1] >> 3) & 0x03 {
	case 0:
		ver = Version2_5
	case 2:
		ver = Version2
	case 3:
		ver = Version1
	default:
		ver = VersionReserved
	}
	layer := Layer((data[1] >> 1) & 0x03)
	protected := data[1]&0x01 == 0
	bitrateIdx := int((data[2] >> 4) & 0x0F)
	sampleIdx := int((data[2] >> 2) & 0x03)
	padding := data[2]&0x02 != 0
	channel := ChannelMode((data[3] >> 6) & 0x03)

	if bitrateIdx == 15 || bitrateIdx == 0 {
		return FrameHeader{}, mmerr.CorruptFilef("mpegaudio: invalid bitrate index %d", bitrateIdx)
	}
	if sampleIdx == 3 {
		return FrameHeader{}, mmerr.CorruptFilef("mpegaudio: invalid sample-rate index")
	}

	lookupVer := ver
	if lookupVer == Version2_5 {
		lookupVer = Version2
	}
	layers, ok := bitRateTable[lookupVer]
	if !ok {
		return FrameHeader{}, mmerr.CorruptFilef("mpegaudio: reserved version")
	}
	rates, ok := layers[layer]
	if !ok {
		return FrameHeader{}, mmerr.CorruptFilef("mpegaudio: reserved layer")
	}
	sampleRates, ok := sampleRateTable[ver]
	if !ok {
		return FrameHeader{}, mmerr.CorruptFilef("mpegaudio: reserved version")
	}

	return FrameHeader{
		Version:    ver,
		Layer:      layer,
		Channel:    channel,
		Protected:  protected,
		BitRate:    rates[bitrateIdx],
		SampleRate: sampleRates[sampleIdx],
		Padding:    padding,
	}, nil
}

// SamplesPerFrame returns the number of PCM samples a frame of this
// version/layer combination carries.
func (h FrameHeader) SamplesPerFrame() int {
	switch h.Layer {
	case Layer1:
		return 384
	case Layer2:
		return 1152
	case Layer3:
		if h.Version == Version1 {
			return 1152
		}
		return 576
	default:
		return 0
	}
}

// FrameLength returns the total byte length (header + body) of a frame
// with this header's bitrate/sample-rate/padding.
func (h FrameHeader) FrameLength() int {
	if h.SampleRate == 0 {
		return 0
	}
	if h.Layer == Layer1 {
		n := (12*h.BitRate*1000)/h.SampleRate + boolInt(h.Padding)
		return n * 4
	}
	n := (144 * h.BitRate * 1000) / h.SampleRate
	return n + boolInt(h.Padding)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// FindFirstFrame scans stream from "from" for the first valid frame sync,
// returning its absolute offset and decoded header.
func FindFirstFrame(stream *filestream.Stream, from int64) (int64, FrameHeader, error) {
	const window = 32 * 1024
	pos := from
	length := stream.Length()
	for pos < length {
		n := int64(window)
		if pos+n > length {
			n = length - pos
		}
		buf, err := stream.ReadAt(pos, int(n))
		if err != nil {
			return -1, FrameHeader{}, err
		}
		for i := 0; i+4 <= len(buf); i++ {
			if !IsSync(buf[i], buf[i+1]) {
				continue
			}
			hdr, err := ParseHeader(buf[i : i+4])
			if err != nil {
				continue
			}
			return pos + int64(i), hdr, nil
		}
		if len(buf) < int(n) || n <= 4 {
			break
		}
		pos += n - 3 // 3-byte overlap so a sync split across the boundary isn't missed
	}
	return -1, FrameHeader{}, mmerr.CorruptFilef("mpegaudio: no frame sync found")
}

// XingInfo is the decoded Xing/Info VBR side-data header.
type XingInfo struct {
	Frames  uint32
	Bytes   uint32
	HasTOC  bool
	TOC     [100]byte
	Quality uint32
}

const (
	xingFlagFrames = 1 << 0
	xingFlagBytes  = 1 << 1
	xingFlagTOC    = 1 << 2
	xingFlagQual   = 1 << 3
)

// xingOffset returns the byte offset of a Xing/Info header from the start
// of the frame, per the MPEG version / channel-mode side-info table.
func xingOffset(h FrameHeader) int {
	if h.Version == Version1 {
		if h.Channel == ChannelMono {
			return 0x15
		}
		return 0x24
	}
	if h.Channel == ChannelMono {
		return 0x0D
	}
	return 0x15
}

// ReadXing looks for a Xing or Info header inside frameData (the bytes of
// the first audio frame, at least xingOffset+8 long) and decodes it.
func ReadXing(frameData []byte, h FrameHeader) (*XingInfo, bool) {
	off := xingOffset(h)
	if off+8 > len(frameData) {
		return nil, false
	}
	tag := frameData[off : off+4]
	if !bytes.Equal(tag, []byte("Xing")) && !bytes.Equal(tag, []byte("Info")) {
		return nil, false
	}
	r := bitio.NewReader(bytes.NewReader(frameData[off+4:]))
	flags, err := r.ReadBits(32)
	if err != nil {
		return nil, false
	}
	info := &XingInfo{}
	if flags&xingFlagFrames != 0 {
		v, err := r.ReadBits(32)
		if err != nil {
			return nil, false
		}
		info.Frames = uint32(v)
	}
	if flags&xingFlagBytes != 0 {
		v, err := r.ReadBits(32)
		if err != nil {
			return nil, false
		}
		info.Bytes = uint32(v)
	}
	if flags&xingFlagTOC != 0 {
		for i := range info.TOC {
			v, err := r.ReadBits(8)
			if err != nil {
				return nil, false
			}
			info.TOC[i] = byte(v)
		}
		info.HasTOC = true
	}
	if flags&xingFlagQual != 0 {
		v, err := r.ReadBits(32)
		if err == nil {
			info.Quality = uint32(v)
		}
	}
	return info, true
}

// VBRIInfo is the decoded Fraunhofer VBRI side-data header.
type VBRIInfo struct {
	Version uint16
	Delay   uint16
	Quality uint16
	Bytes   uint32
	Frames  uint32
}

// vbriOffset is fixed: 32 bytes past the 4-byte frame header, independent
// of channel mode.
const vbriOffset = 4 + 32

// ReadVBRI looks for a VBRI header inside frameData at the fixed offset and
// decodes it.
func ReadVBRI(frameData []byte) (*VBRIInfo, bool) {
	if vbriOffset+26 > len(frameData) {
		return nil, false
	}
	if !bytes.Equal(frameData[vbriOffset:vbriOffset+4], []byte("VBRI")) {
		return nil, false
	}
	r := bitio.NewReader(bytes.NewReader(frameData[vbriOffset+4:]))
	version, _ := r.ReadBits(16)
	delay, _ := r.ReadBits(16)
	quality, _ := r.ReadBits(16)
	bytesTotal, err := r.ReadBits(32)
	if err != nil {
		return nil, false
	}
	framesTotal, err := r.ReadBits(32)
	if err != nil {
		return nil, false
	}
	return &VBRIInfo{
		Version: uint16(version),
		Delay:   uint16(delay),
		Quality: uint16(quality),
		Bytes:   uint32(bytesTotal),
		Frames:  uint32(framesTotal),
	}, true
}

// Properties computes duration/bitrate from a frame header plus whichever
// VBR side-data was found (Xing wins over VBRI), falling back to a
// constant-bitrate estimate over the given stream byte span when neither is
// present. style is advisory only: None still returns zero-value
// Properties, matching the "skip property extraction" short-circuit.
func Properties(h FrameHeader, xing *XingInfo, vbri *VBRIInfo, streamBytes int64, style mediainfo.Style) mediainfo.Properties {
	props := mediainfo.Properties{
		SampleRate: h.SampleRate,
		Channels:   2,
		Codec:      "MP3",
	}
	if h.Channel == ChannelMono {
		props.Channels = 1
	}
	if style == mediainfo.StyleNone {
		return mediainfo.Properties{}
	}

	switch {
	case xing != nil && xing.Frames > 0:
		samples := uint64(xing.Frames) * uint64(h.SamplesPerFrame())
		durationMs := samples * 1000 / uint64(h.SampleRate)
		props.Duration = int64(durationMs)
		totalBytes := xing.Bytes
		if totalBytes == 0 {
			totalBytes = uint32(streamBytes)
		}
		if durationMs > 0 {
			props.Bitrate = int(uint64(totalBytes) * 8 / durationMs)
		}
	case vbri != nil && vbri.Frames > 0:
		samples := uint64(vbri.Frames) * uint64(h.SamplesPerFrame())
		durationMs := samples * 1000 / uint64(h.SampleRate)
		props.Duration = int64(durationMs)
		totalBytes := vbri.Bytes
		if totalBytes == 0 {
			totalBytes = uint32(streamBytes)
		}
		if durationMs > 0 {
			props.Bitrate = int(uint64(totalBytes) * 8 / durationMs)
		}
	default:
		props.Bitrate = h.BitRate
		if h.BitRate > 0 {
			props.Duration = streamBytes * 8 / int64(h.BitRate)
		}
	}
	return props
}
