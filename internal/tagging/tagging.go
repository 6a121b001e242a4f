package tagging

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cesargomez89/navidrums/internal/constants"
	"github.com/cesargomez89/navidrums/internal/domain"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediafile"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
	"github.com/cesargomez89/navidrums/internal/storage"
)

// mimeByExt maps the extensions Navidrums downloads to the declared MIME
// type the mediameta registry dispatches on (internal/mediameta/registry).
var mimeByExt = map[string]string{
	".flac": constants.MimeTypeFLAC,
	".mp3":  constants.MimeTypeMP3,
	".mp4":  constants.MimeTypeMP4,
	".m4a":  "audio/x-m4a",
}

// TagFile writes metadata tags to the audio file at filePath, dispatching to
// the mediameta CoreAPI (internal/mediameta/mediafile) by file extension.
func TagFile(filePath string, track *domain.Track, albumArtData []byte) error {
	ext := strings.ToLower(filepath.Ext(filePath))
	mime, ok := mimeByExt[ext]
	if !ok {
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	f, err := mediafile.Open(filePath, mime, mediainfo.StyleNone, constants.DefaultTagWriteWindow)
	if err != nil {
		return fmt.Errorf("failed to open %s for tagging: %w", filePath, err)
	}
	defer func() { _ = f.Close() }()

	tag := f.Tag()
	applyTrack(tag, track)

	if len(albumArtData) > 0 {
		if int64(len(albumArtData)) > constants.DefaultCoverArtMaxBytes {
			return fmt.Errorf("cover art too large: %d bytes", len(albumArtData))
		}
		tag.SetPictures([]tagmodel.Picture{coverPicture(albumArtData)})
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("failed to save tags to %s: %w", filePath, err)
	}
	return nil
}

// applyTrack copies Navidrums' domain.Track fields onto the abstract
// tagmodel.Tag surface; CombinedTag routes each Set call to whichever
// concrete child tags (ID3v2, Xiph, ilst, ...) can represent the field.
func applyTrack(tag *tagmodel.CombinedTag, track *domain.Track) {
	if track.Title != "" {
		tag.SetTitle(track.Title)
	}

	if len(track.Artists) > 0 {
		tag.SetPerformers(track.Artists)
	} else if track.Artist != "" {
		tag.SetPerformers([]string{track.Artist})
	}

	if len(track.AlbumArtists) > 0 {
		tag.SetAlbumArtists(track.AlbumArtists)
	} else if track.AlbumArtist != "" {
		tag.SetAlbumArtists([]string{track.AlbumArtist})
	}

	if track.Album != "" {
		tag.SetAlbum(track.Album)
	}
	if track.Year > 0 {
		tag.SetYear(uint(track.Year))
	}
	if track.Genre != "" {
		tag.SetGenres([]string{track.Genre})
	}
	if track.TrackNumber > 0 {
		tag.SetTrack(uint(track.TrackNumber))
	}
	if track.TotalTracks > 0 {
		tag.SetTrackTotal(uint(track.TotalTracks))
	}
	if track.DiscNumber > 0 {
		tag.SetDisc(uint(track.DiscNumber))
	}
	if track.TotalDiscs > 0 {
		tag.SetDiscTotal(uint(track.TotalDiscs))
	}
	if track.Compilation {
		tag.SetCompilation(true)
	}

	if track.Subtitles != "" {
		tag.SetLyrics(formatToLRC(track.Subtitles))
	} else if track.Lyrics != "" {
		tag.SetLyrics(track.Lyrics)
	}
}

// formatToLRC normalizes a synced-lyrics blob into well-formed LRC: each
// line trimmed, blank lines dropped, a single trailing newline.
func formatToLRC(lyrics string) string {
	lines := strings.Split(lyrics, "\n")
	var out strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out.WriteString(trimmed)
		out.WriteByte('\n')
	}
	return out.String()
}

// coverPicture builds the embedded front-cover Picture frame shared by every
// tag variant's attached-picture representation.
func coverPicture(data []byte) tagmodel.Picture {
	mime := http.DetectContentType(data)
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return tagmodel.Picture{
		MimeType:    mime,
		Kind:        tagmodel.PictureFrontCover,
		Description: "Front Cover",
		Data:        data,
	}
}

// ── Utilities ─────────────────────────────────────────────────────────────────

// DownloadImage fetches raw image bytes from a URL.
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, nil
	}

	client := &http.Client{Timeout: constants.DefaultHTTPTimeout}
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d (URL: %s)", resp.StatusCode, url)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveImageToFile persists image bytes to filePath, creating directories as needed.
func SaveImageToFile(imageData []byte, filePath string) error {
	if len(imageData) == 0 {
		return nil
	}
	if err := storage.EnsureDir(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := storage.WriteFile(filePath, imageData); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	return nil
}
