package raster

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// TIFF tags and field types, limited to the single-band float32 profile the
// strike products use. ModelPixelScale and ModelTiepoint are the standard
// GeoTIFF georeferencing tags; the geokey directory pins the CRS to WGS-84.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
)

const (
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

const (
	compressionNone   = 1
	sampleFormatFloat = 3
)

// WriteGeoTIFF persists the grid as a single-strip GeoTIFF with one 32-bit
// float sample per cell.
func WriteGeoTIFF(path string, g *Grid) error {
	data, err := EncodeGeoTIFF(g)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write raster: %w", err)
	}
	return nil
}

// EncodeGeoTIFF renders the grid into little-endian GeoTIFF bytes.
func EncodeGeoTIFF(g *Grid) ([]byte, error) {
	if g.Rows <= 0 || g.Cols <= 0 {
		return nil, fmt.Errorf("encode raster: empty grid %dx%d", g.Rows, g.Cols)
	}
	if len(g.Data) != g.Rows*g.Cols {
		return nil, fmt.Errorf("encode raster: data length %d does not match shape %dx%d", len(g.Data), g.Rows, g.Cols)
	}

	le := binary.LittleEndian

	const headerSize = 8
	const entryCount = 14
	pixelBytes := g.Rows * g.Cols * 4
	ifdOff := headerSize + pixelBytes
	scaleOff := ifdOff + 2 + entryCount*12 + 4
	tieOff := scaleOff + 3*8
	geoOff := tieOff + 6*8
	total := geoOff + 16*2

	buf := make([]byte, total)

	buf[0], buf[1] = 'I', 'I'
	le.PutUint16(buf[2:], 42)
	le.PutUint32(buf[4:], uint32(ifdOff))

	for i, v := range g.Data {
		le.PutUint32(buf[headerSize+i*4:], math.Float32bits(v))
	}

	le.PutUint16(buf[ifdOff:], entryCount)
	off := ifdOff + 2
	put := func(tag, typ uint16, count, value uint32) {
		le.PutUint16(buf[off:], tag)
		le.PutUint16(buf[off+2:], typ)
		le.PutUint32(buf[off+4:], count)
		le.PutUint32(buf[off+8:], value)
		off += 12
	}
	put(tagImageWidth, typeLong, 1, uint32(g.Cols))
	put(tagImageLength, typeLong, 1, uint32(g.Rows))
	put(tagBitsPerSample, typeShort, 1, 32)
	put(tagCompression, typeShort, 1, compressionNone)
	put(tagPhotometric, typeShort, 1, 1) // BlackIsZero
	put(tagStripOffsets, typeLong, 1, headerSize)
	put(tagSamplesPerPixel, typeShort, 1, 1)
	put(tagRowsPerStrip, typeLong, 1, uint32(g.Rows))
	put(tagStripByteCounts, typeLong, 1, uint32(pixelBytes))
	put(tagPlanarConfig, typeShort, 1, 1)
	put(tagSampleFormat, typeShort, 1, sampleFormatFloat)
	put(tagModelPixelScale, typeDouble, 3, uint32(scaleOff))
	put(tagModelTiepoint, typeDouble, 6, uint32(tieOff))
	put(tagGeoKeyDirectory, typeShort, 16, uint32(geoOff))
	le.PutUint32(buf[off:], 0) // no next IFD

	dx := g.Env.Width() / float64(g.Cols)
	dy := g.Env.Height() / float64(g.Rows)
	for i, v := range []float64{dx, dy, 0} {
		le.PutUint64(buf[scaleOff+i*8:], math.Float64bits(v))
	}
	// Raster origin (0,0) pins to the envelope's northwest corner.
	for i, v := range []float64{0, 0, 0, g.Env.West, g.Env.North, 0} {
		le.PutUint64(buf[tieOff+i*8:], math.Float64bits(v))
	}
	geokeys := []uint16{
		1, 1, 0, 3,
		1024, 0, 1, 2, // GTModelType: geographic
		1025, 0, 1, 1, // GTRasterType: pixel is area
		2048, 0, 1, 4326, // GeographicType: WGS-84
	}
	for i, v := range geokeys {
		le.PutUint16(buf[geoOff+i*2:], v)
	}

	return buf, nil
}

// ReadGeoTIFF loads a single-band float32 GeoTIFF from disk.
func ReadGeoTIFF(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raster: %w", err)
	}
	g, err := DecodeGeoTIFF(data)
	if err != nil {
		return nil, fmt.Errorf("read raster %s: %w", path, err)
	}
	return g, nil
}

// DecodeGeoTIFF parses GeoTIFF bytes into a grid. Both byte orders are
// accepted; the sample profile must be single-band uncompressed 32-bit float
// with ModelPixelScale and ModelTiepoint georeferencing.
func DecodeGeoTIFF(data []byte) (*Grid, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("geotiff: truncated header")
	}
	var bo binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		bo = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("geotiff: unrecognized byte-order mark %q", data[:2])
	}
	if bo.Uint16(data[2:4]) != 42 {
		return nil, fmt.Errorf("geotiff: bad magic number")
	}

	ifdOff := int(bo.Uint32(data[4:8]))
	if ifdOff < 8 || ifdOff+2 > len(data) {
		return nil, fmt.Errorf("geotiff: IFD offset out of range")
	}
	count := int(bo.Uint16(data[ifdOff:]))
	if ifdOff+2+count*12+4 > len(data) {
		return nil, fmt.Errorf("geotiff: truncated IFD")
	}

	entries := make(map[uint16]ifdEntry, count)
	for i := 0; i < count; i++ {
		base := ifdOff + 2 + i*12
		entries[bo.Uint16(data[base:])] = ifdEntry{
			typ:   bo.Uint16(data[base+2:]),
			count: bo.Uint32(data[base+4:]),
			value: data[base+8 : base+12],
		}
	}

	required := func(tag uint16) (ifdEntry, error) {
		e, ok := entries[tag]
		if !ok {
			return ifdEntry{}, fmt.Errorf("geotiff: missing required tag %d", tag)
		}
		return e, nil
	}

	widthEntry, err := required(tagImageWidth)
	if err != nil {
		return nil, err
	}
	heightEntry, err := required(tagImageLength)
	if err != nil {
		return nil, err
	}
	width, err := intValue(data, bo, widthEntry)
	if err != nil {
		return nil, err
	}
	height, err := intValue(data, bo, heightEntry)
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("geotiff: empty raster %dx%d", height, width)
	}

	if err := checkProfile(data, bo, entries); err != nil {
		return nil, err
	}

	pix, err := stripData(data, bo, entries, int(height)*int(width)*4)
	if err != nil {
		return nil, err
	}

	env, err := georeference(data, bo, entries, int(height), int(width))
	if err != nil {
		return nil, err
	}

	g := NewGrid(env, int(height), int(width))
	for i := range g.Data {
		g.Data[i] = math.Float32frombits(bo.Uint32(pix[i*4:]))
	}
	return g, nil
}

type ifdEntry struct {
	typ   uint16
	count uint32
	value []byte // raw 4-byte value-or-offset field
}

// checkProfile rejects rasters outside the supported float32 profile.
func checkProfile(data []byte, bo binary.ByteOrder, entries map[uint16]ifdEntry) error {
	expect := func(tag uint16, want uint32, dflt uint32, what string) error {
		e, ok := entries[tag]
		if !ok {
			if dflt == want {
				return nil
			}
			return fmt.Errorf("geotiff: missing %s tag", what)
		}
		v, err := intValue(data, bo, e)
		if err != nil {
			return err
		}
		if v != want {
			return fmt.Errorf("geotiff: unsupported %s %d", what, v)
		}
		return nil
	}

	if err := expect(tagBitsPerSample, 32, 1, "bits per sample"); err != nil {
		return err
	}
	if err := expect(tagSampleFormat, sampleFormatFloat, 1, "sample format"); err != nil {
		return err
	}
	if err := expect(tagCompression, compressionNone, compressionNone, "compression"); err != nil {
		return err
	}
	if err := expect(tagSamplesPerPixel, 1, 1, "samples per pixel"); err != nil {
		return err
	}
	return nil
}

// stripData concatenates the raster's strips and verifies the total size.
func stripData(data []byte, bo binary.ByteOrder, entries map[uint16]ifdEntry, want int) ([]byte, error) {
	offsetsEntry, ok := entries[tagStripOffsets]
	if !ok {
		return nil, fmt.Errorf("geotiff: missing strip offsets")
	}
	countsEntry, ok := entries[tagStripByteCounts]
	if !ok {
		return nil, fmt.Errorf("geotiff: missing strip byte counts")
	}
	offsets, err := intValues(data, bo, offsetsEntry)
	if err != nil {
		return nil, err
	}
	counts, err := intValues(data, bo, countsEntry)
	if err != nil {
		return nil, err
	}
	if len(offsets) != len(counts) {
		return nil, fmt.Errorf("geotiff: %d strip offsets but %d byte counts", len(offsets), len(counts))
	}

	pix := make([]byte, 0, want)
	for i := range offsets {
		start, n := int(offsets[i]), int(counts[i])
		if start+n > len(data) {
			return nil, fmt.Errorf("geotiff: strip %d out of range", i)
		}
		pix = append(pix, data[start:start+n]...)
	}
	if len(pix) != want {
		return nil, fmt.Errorf("geotiff: %d pixel bytes, expected %d", len(pix), want)
	}
	return pix, nil
}

// georeference reconstructs the envelope from the pixel scale and tiepoint.
func georeference(data []byte, bo binary.ByteOrder, entries map[uint16]ifdEntry, rows, cols int) (Envelope, error) {
	scaleEntry, ok := entries[tagModelPixelScale]
	if !ok {
		return Envelope{}, fmt.Errorf("geotiff: missing pixel scale")
	}
	tieEntry, ok := entries[tagModelTiepoint]
	if !ok {
		return Envelope{}, fmt.Errorf("geotiff: missing tiepoint")
	}
	scale, err := doubleValues(data, bo, scaleEntry)
	if err != nil {
		return Envelope{}, err
	}
	tie, err := doubleValues(data, bo, tieEntry)
	if err != nil {
		return Envelope{}, err
	}
	if len(scale) < 2 || len(tie) < 6 {
		return Envelope{}, fmt.Errorf("geotiff: short georeferencing tags")
	}

	dx, dy := scale[0], scale[1]
	west := tie[3] - tie[0]*dx
	north := tie[4] + tie[1]*dy
	return Envelope{
		West:  west,
		East:  west + dx*float64(cols),
		South: north - dy*float64(rows),
		North: north,
	}, nil
}

// intValues extracts an entry's integer values (SHORT or LONG), whether
// stored inline or at an offset.
func intValues(data []byte, bo binary.ByteOrder, e ifdEntry) ([]uint32, error) {
	var size int
	switch e.typ {
	case typeShort:
		size = 2
	case typeLong:
		size = 4
	default:
		return nil, fmt.Errorf("geotiff: unsupported integer field type %d", e.typ)
	}

	n := int(e.count)
	raw := e.value
	if n*size > 4 {
		off := int(bo.Uint32(e.value))
		if off+n*size > len(data) {
			return nil, fmt.Errorf("geotiff: field offset out of range")
		}
		raw = data[off:]
	}

	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		if size == 2 {
			out[i] = uint32(bo.Uint16(raw[i*2:]))
		} else {
			out[i] = bo.Uint32(raw[i*4:])
		}
	}
	return out, nil
}

func intValue(data []byte, bo binary.ByteOrder, e ifdEntry) (uint32, error) {
	vs, err := intValues(data, bo, e)
	if err != nil {
		return 0, err
	}
	if len(vs) != 1 {
		return 0, fmt.Errorf("geotiff: expected a single value, got %d", len(vs))
	}
	return vs[0], nil
}

func doubleValues(data []byte, bo binary.ByteOrder, e ifdEntry) ([]float64, error) {
	if e.typ != typeDouble {
		return nil, fmt.Errorf("geotiff: expected DOUBLE field, got type %d", e.typ)
	}
	off := int(bo.Uint32(e.value))
	n := int(e.count)
	if off+n*8 > len(data) {
		return nil, fmt.Errorf("geotiff: field offset out of range")
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(bo.Uint64(data[off+i*8:]))
	}
	return out, nil
}
