// Package imagebind embeds and extracts file payloads inside PNG images
// using a private ancillary chunk, leaving every other chunk untouched.
package imagebind

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"strings"
	"time"
)

// Sentinel errors for codec failures.
var (
	ErrInvalidContainer = errors.New("invalid container format")
	ErrNotEmbedded      = errors.New("no embedded payload")
)

// chunkType is the reserved custom chunk: lowercase first letter
// (ancillary), lowercase second (private), lowercase fourth (safe to
// copy), so PNG tooling passes it through.
const chunkType = "ftEb"

// payloadVersion identifies the payload document layout.
const payloadVersion = 1

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// Type tags derived from filename heuristics. Used for selective
// extraction, never for access control.
const (
	TagWorldBook = "WB"
	TagRegex     = "RX"
	TagCharacter = "CH"
	TagPreset    = "PS"
	TagPersona   = "PE"
	TagOther     = "OT"
)

// File is one payload member.
type File struct {
	Path    string
	Tag     string
	Content []byte
}

// Entry describes one embedded file without its content.
type Entry struct {
	Path string `json:"path"`
	Tag  string `json:"tag"`
	Size int    `json:"size"`
}

// Payload is the decoded content of an embed operation.
type Payload struct {
	Version   int    `json:"version"`
	CreatedAt string `json:"created_at"`
	Files     []File `json:"-"`
}

// payloadDoc is the on-wire JSON document inside the chunk.
type payloadDoc struct {
	Version   int            `json:"version"`
	CreatedAt string         `json:"created_at"`
	Files     []payloadEntry `json:"files"`
}

type payloadEntry struct {
	Path    string `json:"path"`
	Tag     string `json:"tag"`
	Size    int    `json:"size"`
	Content string `json:"content"` // base64
}

// TagFor derives a type tag from a filename.
func TagFor(path string) string {
	name := strings.ToLower(path)
	switch {
	case strings.Contains(name, "world") || strings.Contains(name, "lorebook"):
		return TagWorldBook
	case strings.Contains(name, "regex"):
		return TagRegex
	case strings.Contains(name, "character") || strings.Contains(name, "char_"):
		return TagCharacter
	case strings.Contains(name, "preset"):
		return TagPreset
	case strings.Contains(name, "persona"):
		return TagPersona
	default:
		return TagOther
	}
}

// chunk is one parsed PNG chunk. raw spans length through CRC so
// untouched chunks are reassembled byte-for-byte.
type chunk struct {
	typ  string
	data []byte
	raw  []byte
}

// parseChunks validates the PNG signature and walks the chunk sequence
// through IEND.
func parseChunks(container []byte) ([]chunk, error) {
	if len(container) < len(pngSignature) || !bytes.Equal(container[:len(pngSignature)], pngSignature) {
		return nil, fmt.Errorf("%w: missing PNG signature", ErrInvalidContainer)
	}

	var chunks []chunk
	off := len(pngSignature)
	sawEnd := false

	for off < len(container) {
		if off+8 > len(container) {
			return nil, fmt.Errorf("%w: truncated chunk header at offset %d", ErrInvalidContainer, off)
		}

		length := binary.BigEndian.Uint32(container[off : off+4])
		typ := string(container[off+4 : off+8])
		end := off + 8 + int(length) + 4
		if end > len(container) || end < off {
			return nil, fmt.Errorf("%w: truncated chunk %q", ErrInvalidContainer, typ)
		}

		data := container[off+8 : off+8+int(length)]
		want := binary.BigEndian.Uint32(container[off+8+int(length) : end])
		if got := crc32.ChecksumIEEE(container[off+4 : off+8+int(length)]); got != want {
			return nil, fmt.Errorf("%w: CRC mismatch in chunk %q", ErrInvalidContainer, typ)
		}

		chunks = append(chunks, chunk{typ: typ, data: data, raw: container[off:end]})
		off = end

		if typ == "IEND" {
			sawEnd = true
			break
		}
	}

	if !sawEnd {
		return nil, fmt.Errorf("%w: missing IEND chunk", ErrInvalidContainer)
	}

	return chunks, nil
}

// buildChunk serializes a chunk: 4-byte length, 4-byte type, data,
// 4-byte CRC over type+data.
func buildChunk(typ string, data []byte) []byte {
	out := make([]byte, 0, 12+len(data))

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	out = append(out, length[:]...)
	out = append(out, typ...)
	out = append(out, data...)

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	out = append(out, sum[:]...)

	return out
}

// Embed inserts files as one payload chunk immediately before IEND.
// Every other chunk passes through byte-for-byte, so the result stays a
// valid, displayable image. An existing payload chunk is replaced, never
// stacked, so repeated embeds cannot grow the container unboundedly.
func Embed(container []byte, files []File) ([]byte, error) {
	chunks, err := parseChunks(container)
	if err != nil {
		return nil, err
	}

	doc := payloadDoc{
		Version:   payloadVersion,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, f := range files {
		tag := f.Tag
		if tag == "" {
			tag = TagFor(f.Path)
		}
		doc.Files = append(doc.Files, payloadEntry{
			Path:    f.Path,
			Tag:     tag,
			Size:    len(f.Content),
			Content: base64.StdEncoding.EncodeToString(f.Content),
		})
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}

	out := make([]byte, 0, len(container)+compressed.Len()+12)
	out = append(out, pngSignature...)
	for _, c := range chunks {
		if c.typ == chunkType {
			continue // replace, never stack
		}
		if c.typ == "IEND" {
			out = append(out, buildChunk(chunkType, compressed.Bytes())...)
		}
		out = append(out, c.raw...)
	}

	return out, nil
}

// Extract decodes the payload from the first matching chunk. Absence of
// a payload yields ErrNotEmbedded, not a parse failure.
func Extract(container []byte) (*Payload, error) {
	chunks, err := parseChunks(container)
	if err != nil {
		return nil, err
	}

	for _, c := range chunks {
		if c.typ != chunkType {
			continue
		}
		return decodePayload(c.data)
	}

	return nil, ErrNotEmbedded
}

// ExtractTagged decodes the payload keeping only files whose tag is in
// tags. An empty tag list keeps everything.
func ExtractTagged(container []byte, tags ...string) (*Payload, error) {
	p, err := Extract(container)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return p, nil
	}

	keep := make(map[string]bool, len(tags))
	for _, t := range tags {
		keep[t] = true
	}

	filtered := p.Files[:0]
	for _, f := range p.Files {
		if keep[f.Tag] {
			filtered = append(filtered, f)
		}
	}
	p.Files = filtered
	return p, nil
}

// IsEmbedded reports whether a payload chunk is present. It stops at the
// first match without decoding content.
func IsEmbedded(container []byte) bool {
	chunks, err := parseChunks(container)
	if err != nil {
		return false
	}
	for _, c := range chunks {
		if c.typ == chunkType {
			return true
		}
	}
	return false
}

// Inspect lists the embedded files without their content.
func Inspect(container []byte) ([]Entry, error) {
	p, err := Extract(container)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(p.Files))
	for _, f := range p.Files {
		entries = append(entries, Entry{Path: f.Path, Tag: f.Tag, Size: len(f.Content)})
	}
	return entries, nil
}

func decodePayload(data []byte) (*Payload, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: payload not compressed correctly", ErrInvalidContainer)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: payload decompression failed", ErrInvalidContainer)
	}

	var doc payloadDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: payload document malformed", ErrInvalidContainer)
	}

	p := &Payload{Version: doc.Version, CreatedAt: doc.CreatedAt}
	for _, e := range doc.Files {
		content, err := base64.StdEncoding.DecodeString(e.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: file %q content malformed", ErrInvalidContainer, e.Path)
		}
		p.Files = append(p.Files, File{Path: e.Path, Tag: e.Tag, Content: content})
	}

	return p, nil
}
