package mft

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// utf16Decoder substitutes U+FFFD for unpaired surrogates instead of failing
var utf16Decoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ParseFileName decodes a $FILE_NAME structure. The name is decoded with
// DecodeName; a name running past the end of data is an error.
func ParseFileName(data []byte) (*types.FileName, error) {
	if len(data) < types.FileNameHeaderSize {
		return nil, fmt.Errorf("insufficient data for $FILE_NAME: %d bytes", len(data))
	}

	fn := ParseFileNameHeader(data)

	nameEnd := types.FileNameHeaderSize + 2*int(fn.NameLength)
	if nameEnd > len(data) {
		return nil, fmt.Errorf("$FILE_NAME name length %d exceeds available data", fn.NameLength)
	}
	fn.Name = DecodeName(data[types.FileNameHeaderSize:nameEnd])

	return fn, nil
}

// ParseFileNameHeader decodes the fixed part of a $FILE_NAME structure
// without the name. data must hold at least FileNameHeaderSize bytes.
func ParseFileNameHeader(data []byte) *types.FileName {
	return &types.FileName{
		ParentRef:     binary.LittleEndian.Uint64(data[0:8]) & 0x0000FFFFFFFFFFFF,
		ParentSeq:     binary.LittleEndian.Uint16(data[6:8]),
		Created:       binary.LittleEndian.Uint64(data[8:16]),
		Modified:      binary.LittleEndian.Uint64(data[16:24]),
		MftModified:   binary.LittleEndian.Uint64(data[24:32]),
		Accessed:      binary.LittleEndian.Uint64(data[32:40]),
		AllocatedSize: binary.LittleEndian.Uint64(data[40:48]),
		RealSize:      binary.LittleEndian.Uint64(data[48:56]),
		Flags:         binary.LittleEndian.Uint64(data[56:64]),
		NameLength:    data[64],
		NameSpace:     data[65],
	}
}

// DecodeName converts a little-endian UTF-16 name to UTF-8. Invalid code
// units are replaced, the result is cut at the first NUL and limited to
// MaxNameLenUTF8 bytes, and control characters become '^'.
func DecodeName(raw []byte) string {
	if len(raw)%2 != 0 {
		raw = raw[:len(raw)-1]
	}

	decoded, err := utf16Decoder.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}

	if i := strings.IndexByte(string(decoded), 0); i >= 0 {
		decoded = decoded[:i]
	}

	if len(decoded) > types.MaxNameLenUTF8 {
		cut := types.MaxNameLenUTF8
		for cut > 0 && !utf8.RuneStart(decoded[cut]) {
			cut--
		}
		decoded = decoded[:cut]
	}

	return cleanName(decoded)
}

// cleanName replaces control characters so names print safely
func cleanName(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c < 0x20 {
			sb.WriteByte(types.ControlCharReplacement)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// EncodeName converts a UTF-8 name to little-endian UTF-16 bytes.
func EncodeName(name string) []byte {
	encoded, err := utf16Decoder.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil
	}
	return encoded
}
