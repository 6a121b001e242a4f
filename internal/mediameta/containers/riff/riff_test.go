package riff

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
	path := filepath.Join(dir, "t.wav")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func fmtChunkBytes(sampleRate, channels, bitsPerSample int) []byte {
	body := make([]byte, 16)
	binary.LittleEndian.PutUint16(body[0:2], 1) // PCM
	binary.LittleEndian.PutUint16(body[2:4], uint16(channels))
	binary.LittleEndian.PutUint32(body[4:8], uint32(sampleRate))
	byteRate := sampleRate * channels * bitsPerSample / 8
	binary.LittleEndian.PutUint32(body[8:12], uint32(byteRate))
	binary.LittleEndian.PutUint16(body[12:14], uint16(channels*bitsPerSample/8))
	binary.LittleEndian.PutUint16(body[14:16], uint16(bitsPerSample))
	chunk := make([]byte, 8+len(body))
	copy(chunk[0:4], "fmt ")
	binary.LittleEndian.PutUint32(chunk[4:8], uint32(len(body)))
	copy(chunk[8:], body)
	return chunk
}

func dataChunkBytes(n int) []byte {
	chunk := make([]byte, 8+n)
	copy(chunk[0:4], "data")
	binary.LittleEndian.PutUint32(chunk[4:8], uint32(n))
	return chunk
}

func id3ChunkBytes(tag *id3v2.Tag) []byte {
	body := tag.Encode()
	if len(body)%2 == 1 {
		body = append(body, 0)
	}
	chunk := make([]byte, 8+len(body))
	copy(chunk[0:4], "ID3 ")
	binary.LittleEndian.PutUint32(chunk[4:8], uint32(len(tag.Encode())))
	copy(chunk[8:], body)
	return chunk
}

func buildWAV(chunks ...[]byte) []byte {
	var body []byte
	for _, c := range chunks {
		body = append(body, c...)
	}
	out := make([]byte, 12+len(body))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(4+len(body)))
	copy(out[8:12], "WAVE")
	copy(out[12:], body)
	return out
}

func TestReadFmtAndID3(t *testing.T) {
	tag := id3v2.New(id3v2.Version23)
	tag.SetTitle("Wav Title")
	content := buildWAV(fmtChunkBytes(44100, 2, 16), dataChunkBytes(64), id3ChunkBytes(tag))
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
	if combined.Title() != "Wav Title" {
		t.Errorf("title: got %q", combined.Title())
	}
	if props.SampleRate != 44100 || props.Channels != 2 || props.BitsPerSample != 16 {
		t.Errorf("props mismatch: %+v", props)
	}
	if layout.ID3ChunkStart < 0 {
		t.Error("expected ID3 chunk located")
	}
}

func TestReadWithoutID3Chunk(t *testing.T) {
	content := buildWAV(fmtChunkBytes(22050, 1, 8), dataChunkBytes(16))
	path := writeTestFile(t, content)

	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	combined, _, layout, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !combined.IsEmpty() {
		t.Error("expected empty tag")
	}
	if layout.ID3ChunkStart != -1 {
		t.Errorf("expected no ID3 chunk, got start=%d", layout.ID3ChunkStart)
	}
}

func TestRejectsMissingRIFFHeader(t *testing.T) {
	path := writeTestFile(t, []byte("not a riff file at all"))
	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _, _, err = Read(s, mediainfo.StyleNone)
	if err == nil {
		t.Fatal("expected error for missing RIFF header")
	}
	if !errors.Is(err, mmerr.CorruptFile) {
		t.Errorf("expected CorruptFile, got %v", err)
	}
}

func TestSaveInsertsNewID3ChunkAndGrowsRIFFSize(t *testing.T) {
	content := buildWAV(fmtChunkBytes(44100, 2, 16), dataChunkBytes(64))
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
	newSize := binary.LittleEndian.Uint32(sizeBuf)
	if int64(newSize)+8 != s.Length() {
		t.Errorf("RIFF size field %d does not match file length-8 %d", newSize, s.Length()-8)
	}

	reread, _, _, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Title() != "New Title" {
		t.Errorf("title after save: got %q", reread.Title())
	}

	// The fresh chunk was appended at the end: everything before it, except
	// the RIFF size field at [4:8), is byte-identical to the original.
	head, err := s.ReadAt(0, len(content))
	if err != nil {
		t.Fatalf("readat head: %v", err)
	}
	for i := range content {
		if i >= 4 && i < 8 {
			continue
		}
		if head[i] != content[i] {
			t.Fatalf("byte %d changed: got %#x want %#x", i, head[i], content[i])
		}
	}
}

func TestSaveUpdatesExistingID3Chunk(t *testing.T) {
	tag := id3v2.New(id3v2.Version23)
	tag.SetTitle("Old")
	content := buildWAV(fmtChunkBytes(44100, 2, 16), dataChunkBytes(16), id3ChunkBytes(tag))
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
	combined.SetTitle("A substantially longer replacement title")
	if err := Save(s, layout, combined); err != nil {
		t.Fatalf("save: %v", err)
	}

	reread, _, _, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Title() != "A substantially longer replacement title" {
		t.Errorf("title after save: got %q", reread.Title())
	}
}
