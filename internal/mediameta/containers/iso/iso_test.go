package iso

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cesargomez89/navidrums/internal/mediameta/filestream"
	"github.com/cesargomez89/navidrums/internal/mediameta/mediainfo"
	"github.com/cesargomez89/navidrums/internal/mediameta/mmerr"
	"github.com/cesargomez89/navidrums/internal/mediameta/mp4tag"
)

func writeTestFile(t *testing.T, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "t.mp4")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func testBox(typ string, body []byte) []byte {
	out := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(body)))
	copy(out[4:8], typ)
	copy(out[8:], body)
	return out
}

func mvhdBody(timescale, durationMs uint32) []byte {
	body := make([]byte, 24)
	binary.BigEndian.PutUint32(body[12:16], timescale)
	binary.BigEndian.PutUint32(body[16:20], durationMs*timescale/1000)
	return body
}

func stcoBody(offset uint32) []byte {
	body := make([]byte, 12)
	binary.BigEndian.PutUint32(body[4:8], 1) // count
	binary.BigEndian.PutUint32(body[8:12], offset)
	return body
}

func hdlrBody(handlerType string) []byte {
	body := make([]byte, 20) // version/flags(4) + pre_defined(4) + handler_type(4) + reserved(12... trimmed)
	copy(body[8:12], handlerType)
	return body
}

func audioSampleEntry(format string, sampleRate uint32, channels, bits uint16) []byte {
	body := make([]byte, 28)
	binary.BigEndian.PutUint16(body[16:18], channels)
	binary.BigEndian.PutUint16(body[18:20], bits)
	binary.BigEndian.PutUint32(body[24:28], sampleRate<<16)
	return testBox(format, body)
}

func stsdBody(entry []byte) []byte {
	hdr := make([]byte, 8)
	binary.BigEndian.PutUint32(hdr[4:8], 1) // entry_count
	return append(hdr, entry...)
}

func buildMP4(ilstTag *mp4tag.Tag, chunkOffset uint32) []byte {
	ftyp := testBox("ftyp", []byte("isomiso2mp41"))
	mvhd := testBox("mvhd", mvhdBody(1000, 5000))
	stco := testBox("stco", stcoBody(chunkOffset))
	stsd := testBox("stsd", stsdBody(audioSampleEntry("mp4a", 44100, 2, 16)))
	stbl := testBox("stbl", append(append([]byte{}, stco...), stsd...))
	minf := testBox("minf", stbl)
	hdlr := testBox("hdlr", hdlrBody("soun"))
	mdia := testBox("mdia", append(append([]byte{}, hdlr...), minf...))
	trak := testBox("trak", mdia)

	var udta []byte
	if ilstTag != nil {
		ilst := testBox("ilst", mp4tag.Encode(ilstTag))
		metaBody := append([]byte{0, 0, 0, 0}, ilst...)
		meta := testBox("meta", metaBody)
		udta = testBox("udta", meta)
	}

	moovBody := append(append([]byte{}, mvhd...), trak...)
	moovBody = append(moovBody, udta...)
	moov := testBox("moov", moovBody)

	mdat := testBox("mdat", make([]byte, 32))

	var out []byte
	out = append(out, ftyp...)
	out = append(out, moov...)
	out = append(out, mdat...)
	return out
}

func TestReadDecodesIlstAndProperties(t *testing.T) {
	tag := mp4tag.New()
	tag.SetTitle("MP4 Title")
	content := buildMP4(tag, 12345)
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
	if combined.Title() != "MP4 Title" {
		t.Errorf("title: got %q", combined.Title())
	}
	if props.Duration != 5000 {
		t.Errorf("duration: got %d want 5000", props.Duration)
	}
	if layout.IlstStart == 0 && layout.IlstEnd == 0 {
		t.Error("expected ilst located")
	}
	if len(layout.ChunkTables) != 1 {
		t.Fatalf("expected 1 chunk table, got %d", len(layout.ChunkTables))
	}
	if props.SampleRate != 44100 {
		t.Errorf("sample rate: got %d want 44100", props.SampleRate)
	}
	if props.Channels != 2 {
		t.Errorf("channels: got %d want 2", props.Channels)
	}
	if props.BitsPerSample != 16 {
		t.Errorf("bits per sample: got %d want 16", props.BitsPerSample)
	}
	if len(layout.SampleDescriptions) != 1 || layout.SampleDescriptions[0].HandlerType != "soun" {
		t.Fatalf("expected 1 soun sample description, got %+v", layout.SampleDescriptions)
	}
	if len(layout.AllUDTA) != 1 {
		t.Fatalf("expected 1 udta box recorded, got %d", len(layout.AllUDTA))
	}
	wantPath := []string{"moov"}
	if got := layout.AllUDTA[0].AncestorPath; len(got) != len(wantPath) || got[0] != wantPath[0] {
		t.Errorf("udta ancestor path: got %v want %v", got, wantPath)
	}
}

func TestRejectsMissingFtyp(t *testing.T) {
	mdat := testBox("mdat", make([]byte, 16))
	path := writeTestFile(t, mdat)
	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _, _, err = Read(s, mediainfo.StyleNone)
	if err == nil {
		t.Fatal("expected error for missing ftyp box")
	}
	if !errors.Is(err, mmerr.CorruptFile) {
		t.Errorf("expected CorruptFile, got %v", err)
	}
}

func TestRejectsFtypNotFirst(t *testing.T) {
	// ftyp exists but is preceded by another box: still corrupt.
	free := testBox("free", make([]byte, 4))
	ftyp := testBox("ftyp", []byte("isomiso2mp41"))
	content := append(append([]byte{}, free...), ftyp...)
	path := writeTestFile(t, content)
	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _, _, err = Read(s, mediainfo.StyleNone)
	if err == nil {
		t.Fatal("expected error for non-leading ftyp box")
	}
	if !errors.Is(err, mmerr.CorruptFile) {
		t.Errorf("expected CorruptFile, got %v", err)
	}
}

func TestCollectsMultipleUDTABoxesWithAncestorPaths(t *testing.T) {
	ftyp := testBox("ftyp", []byte("isomiso2mp41"))
	mvhd := testBox("mvhd", mvhdBody(1000, 1000))

	trakUDTA := testBox("udta", testBox("meta", append([]byte{0, 0, 0, 0}, testBox("ilst", []byte{})...)))
	trak := testBox("trak", append(testBox("mdia", testBox("minf", testBox("stbl", []byte{}))), trakUDTA...))

	moovUDTA := testBox("udta", testBox("meta", append([]byte{0, 0, 0, 0}, testBox("ilst", mp4tag.Encode(mp4tag.New()))...)))
	moovBody := append(append(append([]byte{}, mvhd...), trak...), moovUDTA...)
	moov := testBox("moov", moovBody)
	mdat := testBox("mdat", make([]byte, 8))

	var content []byte
	content = append(content, ftyp...)
	content = append(content, moov...)
	content = append(content, mdat...)

	path := writeTestFile(t, content)
	s, err := filestream.Open(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _, layout, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(layout.AllUDTA) != 2 {
		t.Fatalf("expected 2 udta boxes, got %d: %+v", len(layout.AllUDTA), layout.AllUDTA)
	}
	// The first udta (moov.trak.udta) is not the canonical target; moov.udta
	// is, and is what Layout.IlstStart/IlstEnd point at.
	if layout.IlstStart == 0 && layout.IlstEnd == 0 {
		t.Error("expected the moov.udta ilst to be located as the canonical target")
	}
}

func TestSaveShiftsChunkOffsetsAndGrowsAncestors(t *testing.T) {
	tag := mp4tag.New()
	tag.SetTitle("Short")
	const chunkOffset = 54321
	content := buildMP4(tag, chunkOffset)
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
	combined.SetTitle("A substantially longer title that forces the ilst atom to grow")
	if err := Save(s, layout, combined); err != nil {
		t.Fatalf("save: %v", err)
	}

	reread, _, layout2, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Title() != "A substantially longer title that forces the ilst atom to grow" {
		t.Errorf("title after save: got %q", reread.Title())
	}

	countBuf, err := s.ReadAt(layout2.ChunkTables[0].start, 4)
	if err != nil {
		t.Fatalf("readat count: %v", err)
	}
	if binary.BigEndian.Uint32(countBuf) != 1 {
		t.Fatalf("chunk table count corrupted: got %d", binary.BigEndian.Uint32(countBuf))
	}
	entryBuf, err := s.ReadAt(layout2.ChunkTables[0].start+4, 4)
	if err != nil {
		t.Fatalf("readat entry: %v", err)
	}
	newOffset := binary.BigEndian.Uint32(entryBuf)
	if newOffset <= chunkOffset {
		t.Errorf("expected chunk offset to grow past %d, got %d", chunkOffset, newOffset)
	}
}

func TestSaveShiftsChunkTableLocatedAfterIlst(t *testing.T) {
	// moov children ordered udta-then-trak, so the stco table sits past the
	// spliced ilst and its own file offset moves when the ilst grows.
	tag := mp4tag.New()
	tag.SetTitle("Short")
	const chunkOffset = 77777

	ftyp := testBox("ftyp", []byte("isomiso2mp41"))
	mvhd := testBox("mvhd", mvhdBody(1000, 2000))
	ilst := testBox("ilst", mp4tag.Encode(tag))
	meta := testBox("meta", append([]byte{0, 0, 0, 0}, ilst...))
	udta := testBox("udta", meta)
	stco := testBox("stco", stcoBody(chunkOffset))
	stbl := testBox("stbl", stco)
	minf := testBox("minf", stbl)
	mdia := testBox("mdia", minf)
	trak := testBox("trak", mdia)
	moovBody := append(append(append([]byte{}, mvhd...), udta...), trak...)
	moov := testBox("moov", moovBody)
	mdat := testBox("mdat", make([]byte, 16))

	var content []byte
	content = append(content, ftyp...)
	content = append(content, moov...)
	content = append(content, mdat...)
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
	combined.SetTitle("A much longer title that grows the ilst atom by many bytes")
	if err := Save(s, layout, combined); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, _, layout2, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	countBuf, err := s.ReadAt(layout2.ChunkTables[0].start, 4)
	if err != nil {
		t.Fatalf("readat count: %v", err)
	}
	if binary.BigEndian.Uint32(countBuf) != 1 {
		t.Fatalf("chunk table count corrupted: got %d", binary.BigEndian.Uint32(countBuf))
	}
	entryBuf, err := s.ReadAt(layout2.ChunkTables[0].start+4, 4)
	if err != nil {
		t.Fatalf("readat entry: %v", err)
	}
	if got := binary.BigEndian.Uint32(entryBuf); got <= chunkOffset {
		t.Errorf("expected chunk offset to grow past %d, got %d", chunkOffset, got)
	}
}

func TestSaveCreatesIlstUnderExistingMeta(t *testing.T) {
	ftyp := testBox("ftyp", []byte("isomiso2mp41"))
	meta := testBox("meta", []byte{0, 0, 0, 0}) // empty meta, no ilst yet
	udta := testBox("udta", meta)
	moov := testBox("moov", append(append([]byte{}, testBox("mvhd", mvhdBody(1000, 1000))...), udta...))
	mdat := testBox("mdat", make([]byte, 8))

	var content []byte
	content = append(content, ftyp...)
	content = append(content, moov...)
	content = append(content, mdat...)
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
	if layout.MetaStart == 0 {
		t.Fatal("expected MetaStart recorded for a meta box with no ilst")
	}
	combined.SetTitle("Fresh")
	if err := Save(s, layout, combined); err != nil {
		t.Fatalf("save: %v", err)
	}

	reread, _, _, err := Read(s, mediainfo.StyleNone)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Title() != "Fresh" {
		t.Errorf("title after save: got %q", reread.Title())
	}
}

func TestSaveNoopWhenNoIlstAndTagEmpty(t *testing.T) {
	content := buildMP4(nil, 100)
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
	if !combined.IsEmpty() {
		t.Fatal("expected empty tag when no ilst box present")
	}
	if err := Save(s, layout, combined); err != nil {
		t.Fatalf("save: %v", err)
	}
}
