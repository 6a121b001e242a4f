// Package mediafile is the library's top-level API: File ties a
// FileStream, a Registry-selected ContainerReader, and the TagModel/
// Properties it produced into the single object navidrums callers open,
// mutate, and save.
package mediafile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/registry"
	"github.com/cesargomez89/navidrums/internal/mediameta/tagmodel"
)

// File is the lifecycle object: created by Open (which performs the initial
// read), carries the decoded Tag/Properties until the caller calls Save or
// Close, and re-serializes on Save.
type File struct {
	name         string
	declaredMime string
	style        mediainfo.Style
	writeWindow  int
	readStream   *filestream.Stream
	container    registry.Container
}

// Open reads name through the Registry's reader for declaredMime. The
// stream it reads with is held open (Read mode) for the File's lifetime so
// repeated Tag()/Properties() calls don't re-scan; Save acquires its own
// scoped read-write stream (see Save).
func Open(name, declaredMime string, style mediainfo.Style, writeWindow int) (*File, error) {
	stream, err := filestream.Open(name, false)
	if err != nil {
		return nil, err
	}
	stream.SetWriteWindow(writeWindow)
	container, err := registry.Create(stream, declaredMime, style)
	if err != nil {
		_ = stream.Close()
		return nil, err
	}
	return &File{
		name: name, declaredMime: declaredMime, style: style, writeWindow: writeWindow,
		readStream: stream, container: container,
	}, nil
}

// Tag returns the combined tag decoded at Open time. Mutate it in place and
// call Save to persist the changes.
func (f *File) Tag() *tagmodel.CombinedTag { return f.container.Tag() }

// Properties returns the extracted audio/image properties, or nil if Open
// was called with mediainfo.StyleNone.
func (f *File) Properties() *mediainfo.Properties { return f.container.Properties() }

// Save re-serializes the current Tag and splices it into the file in
// place. It acquires its own read-write FileStream scoped to this call and
// guarantees that stream is released back to Closed on every exit path,
// so a save failure never
// leaves a write-mode handle open.
//
// Because filestream.Stream mutates the file directly (shifting bytes
// in-place rather than writing to a new file and renaming over it), a
// container.Save that fails partway can leave the file in a corrupt
// intermediate state. Save guards against that by snapshotting the file to
// a uuid-suffixed sibling first and restoring from it if the splice fails,
// the same disposable-temp-artifact convention the rest of navidrums uses
// for job/download IDs.
func (f *File) Save() error {
	backup, err := snapshot(f.name)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(backup) }()

	rw, err := filestream.Open(f.name, true)
	if err != nil {
		return err
	}
	rw.SetWriteWindow(f.writeWindow)
	defer func() { _ = rw.Close() }()

	if err := f.container.Save(rw); err != nil {
		if restoreErr := restore(backup, f.name); restoreErr != nil {
			return fmt.Errorf("save failed (%w) and restore failed (%v)", err, restoreErr)
		}
		return err
	}
	return nil
}

func snapshot(name string) (string, error) {
	backup := filepath.Join(filepath.Dir(name), "."+filepath.Base(name)+"."+uuid.New().String()+".bak")
	src, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(backup)
	if err != nil {
		return "", err
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(backup)
		return "", err
	}
	return backup, nil
}

func restore(backup, name string) error {
	src, err := os.Open(backup)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	_, err = io.Copy(dst, src)
	return err
}

// Close releases the File's read stream. After Close, Tag/Properties
// reflect the last successful read or save but further Save calls will
// reopen their own stream regardless.
func (f *File) Close() error {
	return f.readStream.Close()
}
