// Package snapshot implements the VASNAP state file: a fixed header
// (magic, version triple, compressor tag, raw size) followed by a
// dependency-ordered sequence of named component blobs, optionally
// compressed as a whole (spec.md §6; supplemented from
// Emulator/VACore/Media/Snapshot.cpp and
// Emulator/VAmiga/Utilities/Compression.cpp, which this core's snapshot
// format and run-length codec are grounded on).
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

// Compressor names the compression method applied to a snapshot's body.
type Compressor uint8

const (
	CompressorNone Compressor = iota
	CompressorGzip
	CompressorLZ4
	CompressorRLE2
	CompressorRLE3
)

func (c Compressor) String() string {
	switch c {
	case CompressorNone:
		return "none"
	case CompressorGzip:
		return "gzip"
	case CompressorLZ4:
		return "lz4"
	case CompressorRLE2:
		return "rle2"
	case CompressorRLE3:
		return "rle3"
	default:
		return fmt.Sprintf("compressor(%d)", uint8(c))
	}
}

// This core's own snapshot format version, independent of any upstream
// emulator's version numbering.
const (
	FormatMajor    = 1
	FormatMinor    = 0
	FormatSubminor = 0
)

var magic = [6]byte{'V', 'A', 'S', 'N', 'A', 'P'}

// Header is the fixed-size prefix of every snapshot file.
type Header struct {
	Major, Minor, Subminor uint8
	Compressor             Compressor
	RawSize                uint32 // size of the component section once uncompressed
}

// ErrBadMagic is returned by Load when the buffer does not begin with
// the VASNAP signature.
var ErrBadMagic = fmt.Errorf("snapshot: bad magic, not a VASNAP file")

// VersionError reports a snapshot whose format version this core cannot
// read, mirroring the original's isTooOld/isTooNew checks.
type VersionError struct {
	Have   Header
	TooOld bool
	TooNew bool
}

func (e *VersionError) Error() string {
	if e.TooOld {
		return fmt.Sprintf("snapshot: file version %d.%d.%d is older than this core supports (%d.%d.%d)",
			e.Have.Major, e.Have.Minor, e.Have.Subminor, FormatMajor, FormatMinor, FormatSubminor)
	}
	return fmt.Sprintf("snapshot: file version %d.%d.%d is newer than this core supports (%d.%d.%d)",
		e.Have.Major, e.Have.Minor, e.Have.Subminor, FormatMajor, FormatMinor, FormatSubminor)
}

// Component is one named state blob within a snapshot, in the
// dependency order the owning container wrote them (e.g. memory before
// register file before chipset, matching spec.md §6's save/restore
// ordering).
type Component struct {
	Name string
	Data []byte
}

// Save serializes components into a complete snapshot file, applying
// the given compressor to the component section only — the header
// always stays uncompressed so Load can validate it before touching the
// body.
func Save(components []Component, compressor Compressor) ([]byte, error) {
	var body bytes.Buffer
	for _, c := range components {
		if len(c.Name) > 255 {
			return nil, fmt.Errorf("snapshot: component name %q exceeds 255 bytes", c.Name)
		}
		body.WriteByte(byte(len(c.Name)))
		body.WriteString(c.Name)
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(c.Data)))
		body.Write(lenBuf[:])
		body.Write(c.Data)
	}
	raw := body.Bytes()

	compressed, err := compress(raw, compressor)
	if err != nil {
		return nil, fmt.Errorf("snapshot: compress: %w", err)
	}

	var out bytes.Buffer
	out.Write(magic[:])
	out.WriteByte(FormatMajor)
	out.WriteByte(FormatMinor)
	out.WriteByte(FormatSubminor)
	out.WriteByte(byte(compressor))
	var rawSizeBuf [4]byte
	binary.LittleEndian.PutUint32(rawSizeBuf[:], uint32(len(raw)))
	out.Write(rawSizeBuf[:])
	out.Write(compressed)

	return out.Bytes(), nil
}

const headerSize = 6 + 1 + 1 + 1 + 1 + 4 // magic + major + minor + subminor + compressor + rawSize

// Load parses and validates a snapshot file's header, decompresses its
// body, and returns the component list in the order they were saved.
func Load(buf []byte) (Header, []Component, error) {
	if len(buf) < headerSize || !bytes.Equal(buf[:6], magic[:]) {
		return Header{}, nil, ErrBadMagic
	}

	h := Header{
		Major:      buf[6],
		Minor:      buf[7],
		Subminor:   buf[8],
		Compressor: Compressor(buf[9]),
		RawSize:    binary.LittleEndian.Uint32(buf[10:14]),
	}

	if tooOld, tooNew := versionCompare(h); tooOld || tooNew {
		return h, nil, &VersionError{Have: h, TooOld: tooOld, TooNew: tooNew}
	}

	raw, err := decompress(buf[headerSize:], h.Compressor, int(h.RawSize))
	if err != nil {
		return h, nil, fmt.Errorf("snapshot: decompress: %w", err)
	}

	var components []Component
	r := bytes.NewReader(raw)
	for r.Len() > 0 {
		nameLen, err := r.ReadByte()
		if err != nil {
			return h, nil, fmt.Errorf("snapshot: truncated component name length: %w", err)
		}
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return h, nil, fmt.Errorf("snapshot: truncated component name: %w", err)
		}
		var dataLen [4]byte
		if _, err := io.ReadFull(r, dataLen[:]); err != nil {
			return h, nil, fmt.Errorf("snapshot: truncated component length: %w", err)
		}
		data := make([]byte, binary.LittleEndian.Uint32(dataLen[:]))
		if _, err := io.ReadFull(r, data); err != nil {
			return h, nil, fmt.Errorf("snapshot: truncated component data: %w", err)
		}
		components = append(components, Component{Name: string(nameBuf), Data: data})
	}

	return h, components, nil
}

func versionCompare(h Header) (tooOld, tooNew bool) {
	have := [3]uint8{h.Major, h.Minor, h.Subminor}
	want := [3]uint8{FormatMajor, FormatMinor, FormatSubminor}
	for i := range have {
		if have[i] < want[i] {
			return true, false
		}
		if have[i] > want[i] {
			return false, true
		}
	}
	return false, false
}

func compress(raw []byte, c Compressor) ([]byte, error) {
	switch c {
	case CompressorNone:
		return raw, nil
	case CompressorGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressorLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressorRLE2:
		return runLengthEncode(raw, 2), nil
	case CompressorRLE3:
		return runLengthEncode(raw, 3), nil
	default:
		return nil, fmt.Errorf("unknown compressor %d", uint8(c))
	}
}

func decompress(data []byte, c Compressor, rawSize int) ([]byte, error) {
	switch c {
	case CompressorNone:
		return data, nil
	case CompressorGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		out := make([]byte, 0, rawSize)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, r); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressorLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		out := make([]byte, 0, rawSize)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, r); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressorRLE2:
		return runLengthDecode(data, 2), nil
	case CompressorRLE3:
		return runLengthDecode(data, 3), nil
	default:
		return nil, fmt.Errorf("unknown compressor %d", uint8(c))
	}
}

// runLengthEncode implements the same scheme as Compression.cpp's rle():
// a run of n or more identical bytes is written as n literal copies
// followed by one or more run-length bytes (0..255, chained with 255
// meaning "more follows") covering the remaining count.
func runLengthEncode(data []byte, n int) []byte {
	const max = 255
	result := make([]byte, 0, len(data))

	encode := func(b byte, count int) {
		lits := count
		if lits > n {
			lits = n
		}
		for k := 0; k < lits; k++ {
			result = append(result, b)
		}
		count -= n
		for count >= 0 {
			run := count
			if run > max {
				run = max
			}
			result = append(result, byte(run))
			count -= run
			if run != max {
				break
			}
		}
	}

	if len(data) == 0 {
		return result
	}
	prev := data[0]
	repetitions := 0
	for _, b := range data {
		if b == prev {
			repetitions++
		} else {
			encode(prev, repetitions)
			prev = b
			repetitions = 1
		}
	}
	encode(prev, repetitions)
	return result
}

// runLengthDecode reverses runLengthEncode.
func runLengthDecode(data []byte, n int) []byte {
	const max = 255
	result := make([]byte, 0, 2*len(data))
	prev := byte(0)
	repetitions := 0

	for i := 0; i < len(data); i++ {
		b := data[i]
		result = append(result, b)
		if prev != b {
			repetitions = 1
		} else {
			repetitions++
		}
		prev = b

		if repetitions == n {
			for i < len(data)-1 {
				i++
				run := int(data[i])
				for k := 0; k < run; k++ {
					result = append(result, prev)
				}
				if run != max {
					break
				}
			}
			repetitions = 0
		}
	}
	return result
}
