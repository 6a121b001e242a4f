// Package mediainfo defines the types shared by every container reader's
// read/save contract: the advisory property-extraction Style,
// the decoded audio/image Properties, and the Region/TagRegion bookkeeping
// a reader hands back to the save pipeline. It has no dependencies on any
// codec or container package so that both can depend on it without a cycle.
package mediainfo

// Style selects how much work PropertyExtraction does. It is advisory:
// every container reader must behave correctly for every value but may
// short-circuit scans for Fast and skip extraction entirely for None.
type Style int

const (
	StyleNone Style = iota
	StyleFast
	StyleAverage
	StyleAccurate
)

// RegionKind discriminates the semantic purpose of a Region.
type RegionKind int

const (
	RegionAudio RegionKind = iota
	RegionTagID3v1
	RegionTagID3v2
	RegionTagAPE
	RegionTagXiph
	RegionTagASF
	RegionTagIlst
	RegionTagIFD
	RegionPadding
	RegionContainer
)

// Region is an absolute byte range inside a container with an associated
// semantic kind. Sibling regions never overlap.
type Region struct {
	Offset int64
	Size   int64
	Kind   RegionKind
}

// End returns the exclusive end offset of the region.
func (r Region) End() int64 { return r.Offset + r.Size }

// TagRegion marks where a specific tag lives in the file; it is created
// during read and consumed during save to compute the splice.
type TagRegion struct {
	Start int64
	End   int64
	Kind  RegionKind
}

// Properties holds the codec-level properties PropertyExtraction derives
// from a container walk: duration, sample rate, channels, bitrate for
// audio; pixel dimensions for image containers.
type Properties struct {
	Duration      int64 // milliseconds
	Bitrate       int   // kbps
	SampleRate    int   // Hz
	Channels      int
	BitsPerSample int
	Width         int
	Height        int
	Codec         string
}
