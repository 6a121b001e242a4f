package id3v2

import (
	"strings"

	"github.com/cesargomez89/navidrums/internal/mediameta/bytebuffer"
)

// encodingByte values, from the ID3v2 text-encoding table.
const (
	encLatin1  = 0x00
	encUTF16   = 0x01
	encUTF16BE = 0x02
	encUTF8    = 0x03
)

func encodingToCodec(b byte) bytebuffer.StringEncoding {
	switch b {
	case encUTF16:
		return bytebuffer.UTF16
	case encUTF16BE:
		return bytebuffer.UTF16BE
	case encUTF8:
		return bytebuffer.UTF8
	default:
		return bytebuffer.Latin1
	}
}

func codecToEncodingByte(c bytebuffer.StringEncoding) byte {
	switch c {
	case bytebuffer.UTF16:
		return encUTF16
	case bytebuffer.UTF16BE:
		return encUTF16BE
	case bytebuffer.UTF8:
		return encUTF8
	default:
		return encLatin1
	}
}

// terminatorLen returns the width of the string null-terminator for enc.
func terminatorLen(enc byte) int {
	if enc == encUTF16 || enc == encUTF16BE {
		return 2
	}
	return 1
}

// splitTerminated splits data at the first null terminator sized for enc,
// returning the text before it and the remainder after. If no terminator is
// found, the whole slice is returned as text with an empty remainder.
func splitTerminated(data []byte, enc byte) (text, rest []byte) {
	n := terminatorLen(enc)
	for i := 0; i+n <= len(data); i += n {
		allZero := true
		for j := 0; j < n; j++ {
			if data[i+j] != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			return data[:i], data[i+n:]
		}
	}
	return data, nil
}

// decodeText decodes a text-information frame body: 1 encoding byte + text.
// Multiple values are separated by the Go-NUL only in ID3v2.4 text frames;
// this decoder splits on it regardless of version (v2.3 encoders in
// practice also use it for multi-valued frames like TCOM/TPE1).
func decodeText(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	enc := data[0]
	body := data[1:]
	// The on-disk separator is the encoding's NUL; after DecodeString it is
	// a single U+0000 regardless of how wide the encoding wrote it.
	s := bytebuffer.DecodeString(trimTrailingTerminator(body, enc), encodingToCodec(enc))
	parts := strings.Split(s, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "\x00")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func trimTrailingTerminator(data []byte, enc byte) []byte {
	n := terminatorLen(enc)
	if len(data) >= n {
		isTerm := true
		for i := 0; i < n; i++ {
			if data[len(data)-n+i] != 0 {
				isTerm = false
				break
			}
		}
		if isTerm {
			return data[:len(data)-n]
		}
	}
	return data
}

// pickEncoding chooses the narrowest encoding that losslessly represents s,
// defaulting to UTF-8 for v2.4 and UTF-16 for v2.3/v2.2.
func pickEncoding(s string, v Version) bytebuffer.StringEncoding {
	if isLatin1(s) {
		return bytebuffer.Latin1
	}
	if v == Version24 {
		return bytebuffer.UTF8
	}
	return bytebuffer.UTF16
}

func isLatin1(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}

// encodeText renders a text-information frame body from one or more values,
// joined with the version's text separator.
func encodeText(values []string, v Version) []byte {
	joined := strings.Join(values, "\x00")
	enc := pickEncoding(joined, v)
	buf := &bytebuffer.Buffer{}
	buf.Append(codecToEncodingByte(enc))
	buf.Append(bytebuffer.EncodeString(joined, enc)...)
	return buf.Bytes()
}

// decodeUserText decodes a TXXX/WXXX-shaped frame: encoding byte,
// null-terminated description, then value (text for TXXX, Latin-1 URL for
// WXXX, not null-terminated).
func decodeUserText(data []byte, valueIsText bool) (description, value string) {
	if len(data) == 0 {
		return "", ""
	}
	enc := data[0]
	descBytes, rest := splitTerminated(data[1:], enc)
	description = bytebuffer.DecodeString(descBytes, encodingToCodec(enc))
	if valueIsText {
		value = bytebuffer.DecodeString(trimTrailingTerminator(rest, enc), encodingToCodec(enc))
	} else {
		value = bytebuffer.DecodeString(rest, bytebuffer.Latin1)
	}
	return description, value
}

func encodeUserText(description, value string, v Version, valueIsText bool) []byte {
	enc := pickEncoding(description+value, v)
	if !valueIsText {
		enc = pickEncoding(description, v) // URL value is always Latin-1
	}
	buf := &bytebuffer.Buffer{}
	buf.Append(codecToEncodingByte(enc))
	buf.Append(bytebuffer.EncodeString(description, enc)...)
	buf.Append(make([]byte, terminatorLen(codecToEncodingByte(enc)))...)
	if valueIsText {
		buf.Append(bytebuffer.EncodeString(value, enc)...)
	} else {
		buf.Append(bytebuffer.EncodeString(value, bytebuffer.Latin1)...)
	}
	return buf.Bytes()
}
