package aiff

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/id3v2"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
)

func writeTestFile(t *testing.T, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "t.aiff")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

// encodeExtendedFloat is the inverse of decodeExtendedFloat for unshifted
// (shift=0) values: exponent fixed at 16383+63 so mantissa equals v exactly.
func encodeExtendedFloat(v uint64) []byte {
	b := make([]byte, 10)
	const exponent = 16383 + 63
	b[0] = byte(exponent >> 8)
	b[1] = byte(exponent & 0xFF)
	binary.BigEndian.PutUint64(b[2:10], v)
	return b
}

func commChunkBytes(sampleRate, channels, bitsPerSample int, numFrames int) []byte {
	body := make([]byte, 18)
	binary.BigEndian.PutUint16(body[0:2], uint16(channels))
	binary.BigEndian.PutUint32(body[2:6], uint32(numFrames))
	binary.BigEndian.PutUint16(body[6:8], uint16(bitsPerSample))
	copy(body[8:18], encodeExtendedFloat(uint64(sampleRate)))
	chunk := make([]byte, 8+len(body))
	copy(chunk[0:4], "COMM")
	binary.BigEndian.PutUint32(chunk[4:8], uint32(len(body)))
	copy(chunk[8:], body)
	return chunk
}

func ssndChunkBytes(n int) []byte {
	chunk := make([]byte, 8+8+n)
	copy(chunk[0:4], "SSND")
	binary.BigEndian.PutUint32(chunk[4:8], uint32(8+n))
	return chunk
}

func id3ChunkBytes(tag *id3v2.Tag) []byte {
	body := tag.Encode()
	if len(body)%2 == 1 {
		body = append(body, 0)
	}
	chunk := make([]byte, 8+len(body))
	copy(chunk[0:4], "ID3 ")
	binary.BigEndian.PutUint32(chunk[4:8], uint32(len(tag.Encode())))
	copy(chunk[8:], body)
	return chunk
}

func buildAIFF(form string, chunks ...[]byte) []byte {
	var body []byte
	for _, c := range chunks {
		body = append(body, c...)
	}
	out := make([]byte, 12+len(body))
	copy(out[0:4], "FORM")
	binary.BigEndian.PutUint32(out[4:8], uint32(4+len(body)))
	copy(out[8:12], form)
	copy(out[12:], body)
	return out
}

func TestReadCommAndID3(t *testing.T) {
	tag := id3v2.New(id3v2.Version23)
	tag.SetTitle("Aiff Title")
	content := buildAIFF("AIFF", commChunkBytes(44100, 2, 16, 1000), ssndChunkBytes(64), id3ChunkBytes(tag))
	path := writeTestFile(t, content)

	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	combined, props, layout, err := Read(s, mediainfo.StyleAccurate)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if combined.Title() != "Aiff Title" {
		t.Errorf("title: got %q", combined.Title())
	}
	if props.SampleRate != 44100 || props.Channels != 2 || props.BitsPerSample != 16 {
		t.Errorf("props mismatch: %+v", props)
	}
	if props.Duration <= 0 {
		t.Errorf("expected positive duration, got %d", props.Duration)
	}
	if layout.ID3ChunkStart < 0 {
		t.Error("expected ID3 chunk located")
	}
}

func TestRejectsNonAIFFForm(t *testing.T) {
	content := buildAIFF("WAVE", commChunkBytes(44100, 2, 16, 100))
	path := writeTestFile(t, content)
	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _, _, err = Read(s, mediainfo.StyleNone)
	if err == nil {
		t.Fatal("expected error for non-AIFF form type")
	}
	if !errors.Is(err, mmerr.CorruptFile) {
		t.Errorf("expected CorruptFile, got %v", err)
	}
}

func TestRejectsMissingFORMHeader(t *testing.T) {
	path := writeTestFile(t, []byte("not an aiff file at all"))
	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _, _, err = Read(s, mediainfo.StyleNone)
	if err == nil {
		t.Fatal("expected error for missing FORM header")
	}
	if !errors.Is(err, mmerr.CorruptFile) {
		t.Errorf("expected CorruptFile, got %v", err)
	}
}

func TestAIFCFormAccepted(t *testing.T) {
	content := buildAIFF("AIFC", commChunkBytes(48000, 1, 8, 500))
	path := writeTestFile(t, content)
	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, props, _, err := Read(s, mediainfo.StyleAccurate)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if props.SampleRate != 48000 {
		t.Errorf("sample rate: got %d", props.SampleRate)
	}
}

func TestSaveInsertsNewID3ChunkAndGrowsFORMSize(t *testing.T) {
	content := buildAIFF("AIFF", commChunkBytes(44100, 2, 16, 1000), ssndChunkBytes(64))
	path := writeTestFile(t, content)

	s, err := filestream.Open(path, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	combined, _, layout, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	combined.SetTitle("New Title")
	if err := Save(s, layout, combined); err != nil {
		t.Fatalf("save: %v", err)
	}

	sizeBuf, err := s.ReadAt(4, 4)
	if err != nil {
		t.Fatalf("readat: %v", err)
	}
	newSize := binary.BigEndian.Uint32(sizeBuf)
	if int64(newSize)+8 != s.Length() {
		t.Errorf("FORM size field %d does not match file length-8 %d", newSize, s.Length()-8)
	}

	reread, _, _, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Title() != "New Title" {
		t.Errorf("title after save: got %q", reread.Title())
	}
}
