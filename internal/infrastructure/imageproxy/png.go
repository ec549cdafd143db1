package imageproxy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
)

// ErrMalformedPNG is returned when a PNG signature is followed by a broken chunk stream
var ErrMalformedPNG = errors.New("imageproxy: malformed png")

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

const (
	chunkIHDR = "IHDR"
	chunkPHYs = "pHYs"
	chunkIEND = "IEND"

	metersPerInch = 0.0254
)

type chunk struct {
	typ  string
	data []byte
}

// IsPNG reports whether data starts with the PNG signature
func IsPNG(data []byte) bool {
	return len(data) >= len(pngSignature) && bytes.Equal(data[:len(pngSignature)], pngSignature)
}

// PixelsPerMeter converts dots per inch to the pHYs unit, clamped to
// [1, MaxUint32]. NaN maps to 1.
func PixelsPerMeter(dpi float64) uint32 {
	ppm := math.Round(dpi / metersPerInch)
	switch {
	case !(ppm >= 1):
		return 1
	case ppm >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(ppm)
}

// SetDPI drops any pHYs chunk and inserts a new one right after IHDR with
// both axes at dpi. Image data chunks are copied untouched.
func SetDPI(data []byte, dpi float64) ([]byte, error) {
	if !IsPNG(data) {
		return nil, ErrMalformedPNG
	}
	chunks, err := readChunks(data[len(pngSignature):])
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 || chunks[0].typ != chunkIHDR {
		return nil, ErrMalformedPNG
	}

	ppm := PixelsPerMeter(dpi)
	phys := make([]byte, 9)
	binary.BigEndian.PutUint32(phys[0:4], ppm)
	binary.BigEndian.PutUint32(phys[4:8], ppm)
	phys[8] = 1 // unit: metre

	out := bytes.NewBuffer(make([]byte, 0, len(data)+21))
	out.Write(pngSignature)
	writeChunk(out, chunks[0])
	writeChunk(out, chunk{typ: chunkPHYs, data: phys})
	for _, c := range chunks[1:] {
		if c.typ == chunkPHYs {
			continue
		}
		writeChunk(out, c)
	}
	return out.Bytes(), nil
}

// readChunks walks the chunk stream up to and including IEND.
// Trailing bytes after IEND are ignored.
func readChunks(b []byte) ([]chunk, error) {
	var chunks []chunk
	for len(b) > 0 {
		if len(b) < 12 {
			return nil, ErrMalformedPNG
		}
		n := binary.BigEndian.Uint32(b[0:4])
		if uint64(n)+12 > uint64(len(b)) {
			return nil, ErrMalformedPNG
		}
		c := chunk{typ: string(b[4:8]), data: b[8 : 8+n]}
		chunks = append(chunks, c)
		b = b[12+n:]
		if c.typ == chunkIEND {
			break
		}
	}
	return chunks, nil
}

func writeChunk(buf *bytes.Buffer, c chunk) {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(c.data)))
	copy(hdr[4:8], c.typ)
	buf.Write(hdr[:])
	buf.Write(c.data)

	crc := crc32.NewIEEE()
	crc.Write(hdr[4:8])
	crc.Write(c.data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	buf.Write(sum[:])
}
