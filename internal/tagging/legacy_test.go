package tagging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/mewkiz/flac/meta"

	flaclib "github.com/mewkiz/flac"

	"github.com/cesargomez89/navidrums/internal/domain"
)

// These tests are a conformance cross-check, not a feature test: they write a
// file through TagFile (our own mediameta pipeline) and then decode it with
// the third-party libraries navidrums already depended on before mediameta
// existed, confirming our encoders produce frames those libraries still
// understand.

func mp3Fixture(t *testing.T) string {
	t.Helper()
	frame := make([]byte, 512)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x00})
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.mp3")
	if err := os.WriteFile(path, frame, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLegacyID3v2DecodesWhatWeWrote(t *testing.T) {
	path := mp3Fixture(t)
	track := &domain.Track{
		Title:  "Legacy Check",
		Artist: "Conformance Artist",
		Album:  "Conformance Album",
		Year:   2024,
	}
	if err := TagFile(path, track, nil); err != nil {
		t.Fatalf("TagFile: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("id3v2.Open: %v", err)
	}
	defer func() { _ = tag.Close() }()

	if got := tag.Title(); got != "Legacy Check" {
		t.Errorf("Title: got %q", got)
	}
	if got := tag.Artist(); got != "Conformance Artist" {
		t.Errorf("Artist: got %q", got)
	}
	if got := tag.Album(); got != "Conformance Album" {
		t.Errorf("Album: got %q", got)
	}
}

func flacFixture(t *testing.T) string {
	t.Helper()
	si := make([]byte, 34)
	si[0], si[1] = 0x10, 0x00
	si[2], si[3] = 0x10, 0x00
	packed := uint32(44100)<<4 | uint32(1)<<1
	si[10] = byte(packed >> 16)
	si[11] = byte(packed >> 8)
	si[12] = byte(packed)
	si[13] = 0xF0

	vendor := []byte("navidrums")
	var vc []byte
	vc = append(vc, le32(uint32(len(vendor)))...)
	vc = append(vc, vendor...)
	vc = append(vc, le32(0)...) // no comments yet; TagFile rewrites this block

	var out []byte
	out = append(out, []byte("fLaC")...)
	out = append(out, blockHeader(0, false, len(si))...)
	out = append(out, si...)
	out = append(out, blockHeader(4, true, len(vc))...)
	out = append(out, vc...)
	out = append(out, []byte("AUDIOFRAMESAUDIOFRAMES")...)

	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.flac")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func le32(n uint32) []byte {
	return []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
}

func blockHeader(typ byte, last bool, size int) []byte {
	flags := typ & 0x7F
	if last {
		flags |= 0x80
	}
	return []byte{flags, byte(size >> 16), byte(size >> 8), byte(size)}
}

func TestLegacyMewkizFlacDecodesWhatWeWrote(t *testing.T) {
	path := flacFixture(t)
	track := &domain.Track{
		Title:  "Legacy FLAC Check",
		Artist: "Conformance Artist",
		Album:  "Conformance Album",
	}
	if err := TagFile(path, track, nil); err != nil {
		t.Fatalf("TagFile: %v", err)
	}

	stream, err := flaclib.ParseFile(path)
	if err != nil {
		t.Fatalf("flac.ParseFile: %v", err)
	}
	defer func() { _ = stream.Close() }()

	var vc *meta.VorbisComment
	for _, b := range stream.Blocks {
		if b.Type == meta.TypeVorbisComment {
			vc = b.Body.(*meta.VorbisComment)
		}
	}
	if vc == nil {
		t.Fatal("expected a VORBIS_COMMENT block")
	}

	want := map[string]string{
		"TITLE":  "Legacy FLAC Check",
		"ARTIST": "Conformance Artist",
		"ALBUM":  "Conformance Album",
	}
	got := map[string]string{}
	for _, kv := range vc.Tags {
		got[kv[0]] = kv[1]
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("tag %s: got %q want %q", k, got[k], v)
		}
	}

	if stream.Info.SampleRate != 44100 {
		t.Errorf("sample rate: got %d want 44100", stream.Info.SampleRate)
	}
}
