package mediafile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cesargomez89/navidrums/internal/mediameta/mediafile"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
)

func writeTestFile(t *testing.T, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "t.mp3")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func mp3WithFrame() []byte {
	frame := make([]byte, 512)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x00})
	return frame
}

func TestOpenReadAndClose(t *testing.T) {
	path := writeTestFile(t, mp3WithFrame())

	f, err := mediafile.Open(path, "audio/mpeg", mediainfo.StyleAccurate, 4096)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	if f.Tag() == nil {
		t.Error("expected non-nil tag")
	}
	if props := f.Properties(); props == nil || props.SampleRate != 44100 {
		t.Errorf("expected properties with sample rate 44100, got %+v", props)
	}
}

func TestOpenRejectsUnsupportedMime(t *testing.T) {
	path := writeTestFile(t, mp3WithFrame())
	if _, err := mediafile.Open(path, "application/x-not-real", mediainfo.StyleNone, 4096); err == nil {
		t.Fatal("expected error for unsupported mime")
	}
}

func TestSaveRoundTripsTitle(t *testing.T) {
	path := writeTestFile(t, mp3WithFrame())

	f, err := mediafile.Open(path, "audio/mpeg", mediainfo.StyleNone, 4096)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.Tag().SetTitle("Saved Title")
	if err := f.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := mediafile.Open(path, "audio/mpeg", mediainfo.StyleNone, 4096)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if reopened.Tag().Title() != "Saved Title" {
		t.Errorf("title: got %q", reopened.Tag().Title())
	}
}
