// Command mediainfo opens one or more media files through the mediameta
// Registry and prints their tags and extracted properties, in the idiom of
// cmd/server: config.Load() + logger.New() wiring, then the actual work.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cesargomez89/navidrums/internal/config"
	"github.com/cesargomez89/navidrums/internal/logger"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediafile"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
)

var mimeByExt = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".mp4":  "audio/mp4",
	".m4a":  "audio/x-m4a",
	".m4b":  "audio/x-m4a",
	".wav":  "audio/wav",
	".aiff": "audio/aiff",
	".aif":  "audio/aiff",
	".dsf":  "audio/dsf",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".wma":  "audio/x-ms-wma",
}

var styleByName = map[string]mediainfo.Style{
	"none":     mediainfo.StyleNone,
	"fast":     mediainfo.StyleFast,
	"average":  mediainfo.StyleAverage,
	"accurate": mediainfo.StyleAccurate,
}

func main() {
	styleFlag := flag.String("style", "average", "property extraction style: none, fast, average, accurate")
	mimeFlag := flag.String("mime", "", "override the declared MIME type (defaults to a guess from the file extension)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: mediainfo [-style none|fast|average|accurate] [-mime type] file [file...]")
		os.Exit(2)
	}

	style, ok := styleByName[strings.ToLower(*styleFlag)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown style %q\n", *styleFlag)
		os.Exit(2)
	}

	cfg := config.Load()
	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}).WithComponent("mediainfo")

	exit := 0
	for _, path := range flag.Args() {
		mime := *mimeFlag
		if mime == "" {
			mime = guessMime(path)
		}
		if mime == "" {
			appLogger.Error("cannot determine mime type", "file", path)
			exit = 1
			continue
		}
		if err := printFile(path, mime, style, cfg.TagWriteWindow, appLogger); err != nil {
			appLogger.Error("failed to read file", "file", path, "error", err)
			exit = 1
		}
	}
	os.Exit(exit)
}

func guessMime(path string) string {
	return mimeByExt[strings.ToLower(filepath.Ext(path))]
}

func printFile(path, mime string, style mediainfo.Style, tagWriteWindow int, log *logger.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	f, err := mediafile.Open(path, mime, style, tagWriteWindow)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	tag := f.Tag()
	fmt.Printf("%s\n", path)
	fmt.Printf("  size:      %s\n", humanize.Bytes(uint64(info.Size())))
	fmt.Printf("  title:     %s\n", tag.Title())
	fmt.Printf("  artist:    %s\n", strings.Join(tag.Performers(), ", "))
	fmt.Printf("  album:     %s\n", tag.Album())
	if year := tag.Year(); year > 0 {
		fmt.Printf("  year:      %d\n", year)
	}
	if track := tag.Track(); track > 0 {
		fmt.Printf("  track:     %d/%d\n", track, tag.TrackTotal())
	}
	if genres := tag.Genres(); len(genres) > 0 {
		fmt.Printf("  genre:     %s\n", strings.Join(genres, ", "))
	}
	if pics := tag.Pictures(); len(pics) > 0 {
		fmt.Printf("  pictures:  %d\n", len(pics))
	}

	if props := f.Properties(); props != nil {
		fmt.Printf("  duration:  %s\n", (time.Duration(props.Duration) * time.Millisecond).Round(time.Second))
		if props.Bitrate > 0 {
			fmt.Printf("  bitrate:   %s kbps\n", humanize.Comma(int64(props.Bitrate)))
		}
		if props.SampleRate > 0 {
			fmt.Printf("  sample rate: %s Hz\n", humanize.Comma(int64(props.SampleRate)))
		}
		if props.Channels > 0 {
			fmt.Printf("  channels:  %d\n", props.Channels)
		}
		if props.Codec != "" {
			fmt.Printf("  codec:     %s\n", props.Codec)
		}
	} else if style != mediainfo.StyleNone {
		log.Debug("no properties extracted", "file", path)
	}
	fmt.Println()
	return nil
}
