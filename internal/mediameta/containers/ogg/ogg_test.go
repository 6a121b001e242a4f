package ogg

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/xiph"
)

func writeTestFile(t *testing.T, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "t.ogg")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func pageBytes(serial, seq uint32, granule uint64, headerType byte, packet []byte) []byte {
	segTable := laceSegments(len(packet))
	headerLen := 27 + len(segTable)
	out := make([]byte, headerLen+len(packet))
	copy(out[0:4], Magic)
	out[4] = 0
	out[5] = headerType
	binary.LittleEndian.PutUint64(out[6:14], granule)
	binary.LittleEndian.PutUint32(out[14:18], serial)
	binary.LittleEndian.PutUint32(out[18:22], seq)
	out[26] = byte(len(segTable))
	copy(out[27:], segTable)
	copy(out[headerLen:], packet)
	return out
}

func vorbisIDPacket(sampleRate int, channels int) []byte {
	p := make([]byte, 30)
	p[0] = 0x01
	copy(p[1:7], "vorbis")
	p[11] = byte(channels)
	binary.LittleEndian.PutUint32(p[12:16], uint32(sampleRate))
	return p
}

func vorbisCommentPacket(vc *xiph.Tag) []byte {
	out := append([]byte{0x03}, []byte("vorbis")...)
	return append(out, xiph.Encode(vc)...)
}

func buildVorbisOgg(vc *xiph.Tag, sampleRate, channels int) []byte {
	const serial = 12345
	id := pageBytes(serial, 0, 0, 2, vorbisIDPacket(sampleRate, channels))
	comment := pageBytes(serial, 1, 0, 0, vorbisCommentPacket(vc))
	audio := pageBytes(serial, 2, 4800, 0, []byte("audio data"))
	var out []byte
	out = append(out, id...)
	out = append(out, comment...)
	out = append(out, audio...)
	return out
}

func TestReadDecodesVorbisCommentAndProperties(t *testing.T) {
	vc := xiph.New("navidrums")
	vc.SetTitle("Ogg Title")
	content := buildVorbisOgg(vc, 44100, 2)
	path := writeTestFile(t, content)

	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	combined, props, fs, err := Read(s, mediainfo.StyleAccurate)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if combined.Title() != "Ogg Title" {
		t.Errorf("title: got %q", combined.Title())
	}
	if fs.Codec != CodecVorbis {
		t.Errorf("codec: got %v", fs.Codec)
	}
	if props.SampleRate != 44100 || props.Channels != 2 {
		t.Errorf("props mismatch: %+v", props)
	}
}

func TestRejectsUnrecognizedMapping(t *testing.T) {
	junkID := make([]byte, 16)
	content := pageBytes(1, 0, 0, 2, junkID)
	path := writeTestFile(t, content)
	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _, _, err = Read(s, mediainfo.StyleNone)
	if err == nil {
		t.Fatal("expected error for unrecognized bitstream mapping")
	}
	if !errors.Is(err, mmerr.CorruptFile) {
		t.Errorf("expected CorruptFile, got %v", err)
	}
}

func TestRejectsNoPagesFound(t *testing.T) {
	path := writeTestFile(t, []byte("not an ogg file at all"))
	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _, _, err = Read(s, mediainfo.StyleNone)
	if err == nil {
		t.Fatal("expected error for no pages found")
	}
	if !errors.Is(err, mmerr.CorruptFile) {
		t.Errorf("expected CorruptFile, got %v", err)
	}
}

func pageBytesMulti(serial, seq uint32, granule uint64, headerType byte, packets ...[]byte) []byte {
	var segTable, body []byte
	for _, p := range packets {
		segTable = append(segTable, laceSegments(len(p))...)
		body = append(body, p...)
	}
	headerLen := 27 + len(segTable)
	out := make([]byte, headerLen+len(body))
	copy(out[0:4], Magic)
	out[5] = headerType
	binary.LittleEndian.PutUint64(out[6:14], granule)
	binary.LittleEndian.PutUint32(out[14:18], serial)
	binary.LittleEndian.PutUint32(out[18:22], seq)
	out[26] = byte(len(segTable))
	copy(out[27:], segTable)
	copy(out[headerLen:], body)
	return out
}

func TestSavePreservesSetupPacketSharingCommentPage(t *testing.T) {
	const serial = 777
	vc := xiph.New("navidrums")
	vc.SetTitle("Old")
	setup := append([]byte{0x05}, []byte("vorbis-setup-header-bytes")...)

	id := pageBytes(serial, 0, 0, 2, vorbisIDPacket(44100, 2))
	commentAndSetup := pageBytesMulti(serial, 1, 0, 0, vorbisCommentPacket(vc), setup)
	audio := pageBytes(serial, 2, 4800, 0, []byte("audio data"))
	var content []byte
	content = append(content, id...)
	content = append(content, commentAndSetup...)
	content = append(content, audio...)
	path := writeTestFile(t, content)

	s, err := filestream.Open(path, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	combined, _, fs, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	combined.SetTitle("Replacement Title With A Different Length")
	if err := Save(s, fs, combined); err != nil {
		t.Fatalf("save: %v", err)
	}

	reread, _, fs2, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Title() != "Replacement Title With A Different Length" {
		t.Errorf("title after save: got %q", reread.Title())
	}
	// The setup header is packet 2 of the stream and must have survived.
	setupAfter, err := readPacketBytes(s, fs2.pages, serial, 2)
	if err != nil {
		t.Fatalf("setup packet lost: %v", err)
	}
	if string(setupAfter) != string(setup) {
		t.Errorf("setup packet corrupted: got %q want %q", setupAfter, setup)
	}
}

func TestSaveReplacesCommentPageAndRecomputesCRC(t *testing.T) {
	vc := xiph.New("navidrums")
	vc.SetTitle("Old")
	content := buildVorbisOgg(vc, 44100, 2)
	path := writeTestFile(t, content)

	s, err := filestream.Open(path, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	combined, _, fs, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	combined.SetTitle("A New Title That Is Considerably Longer")
	if err := Save(s, fs, combined); err != nil {
		t.Fatalf("save: %v", err)
	}

	reread, _, _, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Title() != "A New Title That Is Considerably Longer" {
		t.Errorf("title after save: got %q", reread.Title())
	}

	full, err := s.ReadAt(0, int(s.Length()))
	if err != nil {
		t.Fatalf("readat: %v", err)
	}
	if string(full[len(full)-len("audio data"):]) != "audio data" {
		t.Errorf("trailing audio page corrupted or displaced")
	}
}
