package tagging

import (
	"testing"

	"github.com/cesargomez89/navidrums/internal/domain"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
	"github.com/cesargomez89/navidrums/internal/mediameta/xiph"
)

func TestFormatToLRC(t *testing.T) {
	input := "[00:10.00] Line 1\n[00:20.00] Line 2\n  \n [00:30.00] Line 3 "
	expected := "[00:10.00] Line 1\n[00:20.00] Line 2\n[00:30.00] Line 3\n"
	result := formatToLRC(input)
	if result != expected {
		t.Errorf("formatToLRC mismatch.\nGot: %q\nWant: %q", result, expected)
	}
}

func TestApplyTrack(t *testing.T) {
	track := &domain.Track{
		Title:       "Test Title",
		Artist:      "Solo Artist",
		Album:       "Test Album",
		Year:        2023,
		TrackNumber: 5,
		TotalTracks: 12,
		Genre:       "Rock",
		Compilation: true,
	}

	tag := tagmodel.NewCombinedTag(xiph.New("navidrums"))
	applyTrack(tag, track)

	if tag.Title() != "Test Title" {
		t.Errorf("Title = %q, want Test Title", tag.Title())
	}
	if got := tag.Performers(); len(got) != 1 || got[0] != "Solo Artist" {
		t.Errorf("Performers = %v, want [Solo Artist]", got)
	}
	if tag.Album() != "Test Album" {
		t.Errorf("Album = %q, want Test Album", tag.Album())
	}
	if tag.Year() != 2023 {
		t.Errorf("Year = %d, want 2023", tag.Year())
	}
	if tag.Track() != 5 || tag.TrackTotal() != 12 {
		t.Errorf("Track/TrackTotal = %d/%d, want 5/12", tag.Track(), tag.TrackTotal())
	}
	if !tag.Compilation() {
		t.Errorf("Compilation = false, want true")
	}
}

func TestApplyTrack_MultiArtist(t *testing.T) {
	track := &domain.Track{
		Artists:      []string{"Artist A", "Artist B"},
		AlbumArtists: []string{"Album Artist 1"},
	}

	tag := tagmodel.NewCombinedTag(xiph.New("navidrums"))
	applyTrack(tag, track)

	if got := tag.Performers(); len(got) != 2 {
		t.Errorf("expected 2 performers, got %v", got)
	}
	if got := tag.AlbumArtists(); len(got) != 1 || got[0] != "Album Artist 1" {
		t.Errorf("AlbumArtists = %v, want [Album Artist 1]", got)
	}
}
