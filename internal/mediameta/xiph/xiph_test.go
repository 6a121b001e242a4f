package xiph

import (
	"testing"

	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

func TestRoundTripTextFields(t *testing.T) {
	tag := New("navidrums-xiph-encoder")
	tag.SetTitle("Hello")
	tag.SetPerformers([]string{"Artist One", "Artist Two"})
	tag.SetAlbum("Album")
	tag.SetYear(2020)
	tag.SetTrack(2)
	tag.SetTrackTotal(9)
	tag.SetGenres([]string{"Jazz"})

	decoded, err := Decode(Encode(tag))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Vendor != "navidrums-xiph-encoder" {
		t.Errorf("vendor: got %q", decoded.Vendor)
	}
	if decoded.Title() != "Hello" {
		t.Errorf("title: got %q", decoded.Title())
	}
	if got := decoded.Performers(); len(got) != 2 {
		t.Errorf("performers: got %v", got)
	}
	if decoded.Year() != 2020 {
		t.Errorf("year: got %d", decoded.Year())
	}
	if decoded.Track() != 2 || decoded.TrackTotal() != 9 {
		t.Errorf("track: got %d/%d", decoded.Track(), decoded.TrackTotal())
	}
}

func TestKeysAreCaseInsensitive(t *testing.T) {
	line := "title=from lowercase source"
	data := []byte{1, 0, 0, 0, 'v', 1, 0, 0, 0, byte(len(line)), 0, 0, 0}
	data = append(data, line...)
	tag, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag.Title() != "from lowercase source" {
		t.Errorf("got %q", tag.Title())
	}
}

func TestMalformedEntryWithoutEqualsSkipped(t *testing.T) {
	tag := New("v")
	tag.SetTitle("kept")
	encoded := Encode(tag)
	// Splice in a comment entry with no '=' after incrementing the count
	// (vendor "v" is byte 4, so the count starts at byte 5).
	encoded[5]++
	encoded = append(encoded, 8, 0, 0, 0)
	encoded = append(encoded, "noequals"...)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Title() != "kept" {
		t.Errorf("got %q", decoded.Title())
	}
	if len(decoded.entries) != 1 {
		t.Errorf("expected the malformed entry to be skipped, got %d entries", len(decoded.entries))
	}
}

func TestTruncatedVendorLengthErrors(t *testing.T) {
	if _, err := Decode([]byte{0xFF, 0xFF, 0xFF, 0xFF}); err == nil {
		t.Fatal("expected error for oversized vendor length")
	}
}

func TestPictureBlockRoundTrip(t *testing.T) {
	tag := New("v")
	tag.SetPictures([]tagmodel.Picture{{
		MimeType:    "image/png",
		Kind:        tagmodel.PictureFrontCover,
		Description: "cover art",
		Data:        []byte{0x89, 'P', 'N', 'G', 1, 2, 3},
	}})
	decoded, err := Decode(Encode(tag))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pics := decoded.Pictures()
	if len(pics) != 1 {
		t.Fatalf("expected 1 picture, got %d", len(pics))
	}
	if pics[0].MimeType != "image/png" || pics[0].Description != "cover art" {
		t.Errorf("got %+v", pics[0])
	}
	if string(pics[0].Data) != "\x89PNG\x01\x02\x03" {
		t.Errorf("data mismatch: %v", pics[0].Data)
	}
}

func TestDiscAndMusicBrainzAndCompilation(t *testing.T) {
	tag := New("v")
	tag.SetDisc(1)
	tag.SetDiscTotal(2)
	tag.SetCompilation(true)
	tag.SetMusicBrainzID("mb-xyz")

	decoded, err := Decode(Encode(tag))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Disc() != 1 || decoded.DiscTotal() != 2 {
		t.Errorf("disc: got %d/%d", decoded.Disc(), decoded.DiscTotal())
	}
	if !decoded.Compilation() {
		t.Error("expected compilation true")
	}
	if decoded.MusicBrainzID() != "mb-xyz" {
		t.Errorf("got %q", decoded.MusicBrainzID())
	}
}

func TestEmptyTagIsEmpty(t *testing.T) {
	tag := New("v")
	if !tag.IsEmpty() {
		t.Error("expected empty tag")
	}
	tag.SetTitle("x")
	if tag.IsEmpty() {
		t.Error("expected non-empty tag after set")
	}
}
