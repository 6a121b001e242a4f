package id3v1

import (
	"bytes"
	"testing"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	tag := New()
	tag.SetTitle("Hello")
	tag.SetPerformers([]string{"Artist"})
	tag.SetAlbum("Album")
	tag.SetYear(1999)
	tag.SetComment("comment")
	tag.SetTrack(5)
	tag.SetGenres([]string{"Rock"})

	encoded := Encode(tag)
	if len(encoded) != Size {
		t.Fatalf("expected %d bytes, got %d", Size, len(encoded))
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Title() != "Hello" {
		t.Errorf("title: got %q", decoded.Title())
	}
	if got := decoded.Performers(); len(got) != 1 || got[0] != "Artist" {
		t.Errorf("performers: got %v", got)
	}
	if decoded.Album() != "Album" {
		t.Errorf("album: got %q", decoded.Album())
	}
	if decoded.Year() != 1999 {
		t.Errorf("year: got %d", decoded.Year())
	}
	if decoded.Comment() != "comment" {
		t.Errorf("comment: got %q", decoded.Comment())
	}
	if decoded.Track() != 5 {
		t.Errorf("track: got %d", decoded.Track())
	}
	if got := decoded.Genres(); len(got) != 1 || got[0] != "Rock" {
		t.Errorf("genres: got %v", got)
	}
}

func TestDecodeTruncatedTitleScenario(t *testing.T) {
	// End-to-end scenario 1: ID3v1 title truncated to "HELLO" padded with NUL.
	buf := make([]byte, Size)
	copy(buf[0:3], "TAG")
	copy(buf[3:33], "HELLO")
	tag, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag.Title() != "HELLO" {
		t.Errorf("got %q want %q", tag.Title(), "HELLO")
	}
}

func TestSetTitleUpdatesBytePadding(t *testing.T) {
	tag := New()
	tag.SetTitle("World")
	encoded := Encode(tag)
	field := encoded[3:33]
	want := make([]byte, 30)
	copy(want, "World")
	if !bytes.Equal(field, want) {
		t.Errorf("got %v want %v", field, want)
	}
}

func TestLatin1RoundTrip(t *testing.T) {
	tag := New()
	tag.SetTitle("Café Müller")
	tag.SetPerformers([]string{"Béla Fleck"})

	encoded := Encode(tag)
	// On disk the é is the single Latin-1 byte 0xE9, not a UTF-8 sequence.
	if encoded[3] != 'C' || encoded[6] != 0xE9 {
		t.Errorf("title field not Latin-1 encoded: % x", encoded[3:14])
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Title() != "Café Müller" {
		t.Errorf("title: got %q", decoded.Title())
	}
	if got := decoded.Performers(); len(got) != 1 || got[0] != "Béla Fleck" {
		t.Errorf("performers: got %v", got)
	}
}

func TestMissingIdentifierRejected(t *testing.T) {
	buf := make([]byte, Size)
	copy(buf[0:3], "XXX")
	if _, err := Decode(buf); err == nil {
		t.Fatal("expected error for missing TAG identifier")
	}
}

func TestTruncatedInput(t *testing.T) {
	if _, err := Decode(make([]byte, 10)); err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestGenreOutOfRangeYieldsNoGenre(t *testing.T) {
	buf := make([]byte, Size)
	copy(buf[0:3], "TAG")
	buf[127] = 255
	tag, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := tag.Genres(); len(got) != 0 {
		t.Errorf("expected no genre, got %v", got)
	}
}
