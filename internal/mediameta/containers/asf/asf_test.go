package asf

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cesargomez89/navidrums/internal/mediameta/asftag"
	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
)

func writeTestFile(t *testing.T, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "t.wma")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func objectBytes(guid asftag.GUID, body []byte) []byte {
	out := make([]byte, 24+len(body))
	copy(out[0:16], guid[:])
	binary.LittleEndian.PutUint64(out[16:24], uint64(24+len(body)))
	copy(out[24:], body)
	return out
}

func filePropertiesObject(playDuration100ns uint64, bitrate uint32) []byte {
	body := make([]byte, 68)
	binary.LittleEndian.PutUint64(body[40:48], playDuration100ns)
	binary.LittleEndian.PutUint32(body[64:68], bitrate)
	return objectBytes(FilePropertiesGUID, body)
}

func contentDescriptionObject(title string) []byte {
	body := asftag.EncodeContentDescription(title, "", "", "", "")
	return objectBytes(asftag.ContentDescriptionGUID, body)
}

func buildASF(children ...[]byte) []byte {
	var body []byte
	for _, c := range children {
		body = append(body, c...)
	}
	headerSize := uint64(30 + len(body))
	header := make([]byte, 30)
	copy(header[0:16], HeaderObjectGUID[:])
	binary.LittleEndian.PutUint64(header[16:24], headerSize)
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(children)))
	var out []byte
	out = append(out, header...)
	out = append(out, body...)
	return out
}

func TestReadDecodesContentDescriptionAndProperties(t *testing.T) {
	content := buildASF(contentDescriptionObject("WMA Title"), filePropertiesObject(50000000, 128000))
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
	if combined.Title() != "WMA Title" {
		t.Errorf("title: got %q", combined.Title())
	}
	if props.Duration != 5000 {
		t.Errorf("duration: got %d want 5000", props.Duration)
	}
	if props.Bitrate != 128 {
		t.Errorf("bitrate: got %d want 128", props.Bitrate)
	}
	if layout.CDStart < 0 {
		t.Error("expected content description located")
	}
}

func TestRejectsMissingHeaderObject(t *testing.T) {
	content := make([]byte, 40)
	path := writeTestFile(t, content)
	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _, _, err = Read(s, mediainfo.StyleNone)
	if err == nil {
		t.Fatal("expected error for missing header object")
	}
	if !errors.Is(err, mmerr.CorruptFile) {
		t.Errorf("expected CorruptFile, got %v", err)
	}
}

func TestSaveInsertsNewObjectsAndGrowsHeader(t *testing.T) {
	content := buildASF(filePropertiesObject(10000000, 64000))
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
	if layout.CDStart != -1 || layout.ECDStart != -1 {
		t.Fatalf("expected no pre-existing CD/ECD objects")
	}
	combined.SetTitle("Fresh Title")
	if err := Save(s, layout, combined); err != nil {
		t.Fatalf("save: %v", err)
	}

	reread, _, layout2, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Title() != "Fresh Title" {
		t.Errorf("title after save: got %q", reread.Title())
	}
	headBuf, err := s.ReadAt(16, 8)
	if err != nil {
		t.Fatalf("readat: %v", err)
	}
	if int64(binary.LittleEndian.Uint64(headBuf)) != layout2.HeaderEnd {
		t.Errorf("header size field mismatch after insert")
	}
	if layout2.ObjectCount != layout.ObjectCount+2 {
		t.Errorf("object count: got %d want %d", layout2.ObjectCount, layout.ObjectCount+2)
	}
}

func TestSaveUpdatesExistingContentDescription(t *testing.T) {
	content := buildASF(contentDescriptionObject("Old"), filePropertiesObject(10000000, 64000))
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
	combined.SetTitle("A considerably longer replacement title for WMA")
	if err := Save(s, layout, combined); err != nil {
		t.Fatalf("save: %v", err)
	}

	reread, _, _, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Title() != "A considerably longer replacement title for WMA" {
		t.Errorf("title after save: got %q", reread.Title())
	}
}
