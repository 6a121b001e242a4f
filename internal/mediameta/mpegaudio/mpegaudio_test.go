package mpegaudio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
)

// mp3FrameHeader is a MPEGv1/Layer3, 128kbps, 44100Hz, stereo
// frame header with no padding: 0xFF 0xFB 0x90 0x00.
var mp3FrameHeader = []byte{0xFF, 0xFB, 0x90, 0x00}

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(mp3FrameHeader)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.Version != Version1 || h.Layer != Layer3 {
		t.Errorf("version/layer: got %v/%v", h.Version, h.Layer)
	}
	if h.SampleRate != 44100 {
		t.Errorf("sample rate: got %d", h.SampleRate)
	}
	if h.BitRate != 128 {
		t.Errorf("bitrate: got %d", h.BitRate)
	}
	if h.Channel != ChannelStereo {
		t.Errorf("channel: got %v", h.Channel)
	}
}

func TestParseHeaderVersion25(t *testing.T) {
	// 0xFF 0xE3: version bits 00 (MPEG 2.5), layer 01 (Layer3); 64kbps
	// (index 8 in the v2 table), 11025Hz (index 0).
	h, err := ParseHeader([]byte{0xFF, 0xE3, 0x80, 0x00})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.Version != Version2_5 {
		t.Errorf("version: got %v want Version2_5", h.Version)
	}
	if h.SampleRate != 11025 {
		t.Errorf("sample rate: got %d want 11025", h.SampleRate)
	}
	if h.BitRate != 64 {
		t.Errorf("bitrate: got %d want 64", h.BitRate)
	}
	if h.SamplesPerFrame() != 576 {
		t.Errorf("samples per frame: got %d want 576", h.SamplesPerFrame())
	}
}

func TestParseHeaderRejectsBadSync(t *testing.T) {
	if _, err := ParseHeader([]byte{0x00, 0x00, 0x00, 0x00}); err == nil {
		t.Fatal("expected error for missing sync")
	}
}

func TestFrameLength(t *testing.T) {
	h, _ := ParseHeader(mp3FrameHeader)
	// 144 * 128000 / 44100 = 417 (truncated), no padding.
	if got := h.FrameLength(); got != 417 {
		t.Errorf("frame length: got %d want 417", got)
	}
}

func TestFindFirstFrame(t *testing.T) {
	junk := []byte{0x00, 0x01, 0x02}
	content := append(append([]byte{}, junk...), mp3FrameHeader...)
	content = append(content, make([]byte, 64)...)

	dir := t.TempDir()
	path := filepath.Join(dir, "f.mp3")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	off, h, err := FindFirstFrame(s, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if off != int64(len(junk)) {
		t.Errorf("offset: got %d want %d", off, len(junk))
	}
	if h.SampleRate != 44100 {
		t.Errorf("sample rate: got %d", h.SampleRate)
	}
}

func TestReadXingAbsent(t *testing.T) {
	h, _ := ParseHeader(mp3FrameHeader)
	frame := make([]byte, 200)
	copy(frame, mp3FrameHeader)
	if _, ok := ReadXing(frame, h); ok {
		t.Error("expected no Xing header in zeroed frame")
	}
}

func TestReadXingPresent(t *testing.T) {
	h, _ := ParseHeader(mp3FrameHeader)
	frame := make([]byte, 0x24+16)
	copy(frame, mp3FrameHeader)
	off := xingOffset(h)
	copy(frame[off:], []byte("Xing"))
	// flags: frames + bytes present
	frame[off+4] = 0
	frame[off+5] = 0
	frame[off+6] = 0
	frame[off+7] = 0x03
	// frames = 1000
	frame[off+8], frame[off+9], frame[off+10], frame[off+11] = 0, 0, 0x03, 0xE8
	// bytes = 128000
	frame[off+12], frame[off+13], frame[off+14], frame[off+15] = 0, 0x01, 0xF4, 0x00

	info, ok := ReadXing(frame, h)
	if !ok {
		t.Fatal("expected Xing header found")
	}
	if info.Frames != 1000 {
		t.Errorf("frames: got %d", info.Frames)
	}
	if info.Bytes != 128000 {
		t.Errorf("bytes: got %d", info.Bytes)
	}
}

func TestPropertiesFromXing(t *testing.T) {
	h, _ := ParseHeader(mp3FrameHeader)
	xing := &XingInfo{Frames: 100, Bytes: 50000}
	props := Properties(h, xing, nil, 0, mediainfo.StyleAccurate)
	if props.SampleRate != 44100 {
		t.Errorf("sample rate: got %d", props.SampleRate)
	}
	if props.Duration <= 0 {
		t.Errorf("expected positive duration, got %d", props.Duration)
	}
	if props.Bitrate <= 0 {
		t.Errorf("expected positive bitrate, got %d", props.Bitrate)
	}
}

func TestPropertiesStyleNone(t *testing.T) {
	h, _ := ParseHeader(mp3FrameHeader)
	props := Properties(h, nil, nil, 1000, mediainfo.StyleNone)
	if props != (mediainfo.Properties{}) {
		t.Errorf("expected zero-value properties for StyleNone, got %+v", props)
	}
}

func TestPropertiesConstantBitrateFallback(t *testing.T) {
	h, _ := ParseHeader(mp3FrameHeader)
	props := Properties(h, nil, nil, 16000, mediainfo.StyleAverage)
	if props.Bitrate != 128 {
		t.Errorf("bitrate: got %d want 128", props.Bitrate)
	}
	if props.Duration <= 0 {
		t.Errorf("expected positive duration")
	}
}
