// Package gaia encodes and decodes SpatiaLite BLOB geometries.
//
// The BLOB layout follows the gaia-gis BLOB-Geometry specification:
// a start byte, an endian flag, the SRID, the MBR, an MBR-end marker,
// the geometry body (standard WKB with its leading endian byte
// stripped) and an end byte. Geometry parsing itself is delegated to
// the orb WKB codec.
package gaia

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

const (
	blobStart  = 0x00
	mbrEnd     = 0x7C
	blobEnd    = 0xFE
	headerSize = 39 // start + endian + srid + mbr + mbr-end

	littleEndian = 0x01
)

// Geometry class codes used by SpatiaLite and WKB.
const (
	TypePoint              = 1
	TypeLineString         = 2
	TypePolygon            = 3
	TypeMultiPoint         = 4
	TypeMultiLineString    = 5
	TypeMultiPolygon       = 6
	TypeGeometryCollection = 7
)

var typeNames = map[uint32]string{
	TypePoint:              "POINT",
	TypeLineString:         "LINESTRING",
	TypePolygon:            "POLYGON",
	TypeMultiPoint:         "MULTIPOINT",
	TypeMultiLineString:    "MULTILINESTRING",
	TypeMultiPolygon:       "MULTIPOLYGON",
	TypeGeometryCollection: "GEOMETRYCOLLECTION",
}

// TypeName returns the SQL name of a SpatiaLite geometry class code.
func TypeName(code uint32) (string, error) {
	name, ok := typeNames[code]
	if !ok {
		return "", fmt.Errorf("unknown geometry class code: %d", code)
	}
	return name, nil
}

// Decode parses a SpatiaLite BLOB geometry into an orb geometry and its
// SRID. Z, M and compressed geometry classes are rejected.
func Decode(blob []byte) (orb.Geometry, int, error) {
	if len(blob) < headerSize+5 {
		return nil, 0, fmt.Errorf("blob too short: %d bytes", len(blob))
	}
	if blob[0] != blobStart {
		return nil, 0, fmt.Errorf("invalid start marker: 0x%02X", blob[0])
	}
	if blob[len(blob)-1] != blobEnd {
		return nil, 0, fmt.Errorf("invalid end marker: 0x%02X", blob[len(blob)-1])
	}
	if blob[38] != mbrEnd {
		return nil, 0, fmt.Errorf("invalid mbr end marker: 0x%02X", blob[38])
	}

	var order binary.ByteOrder = binary.BigEndian
	if blob[1] == littleEndian {
		order = binary.LittleEndian
	}

	srid := int(int32(order.Uint32(blob[2:6])))

	body := blob[headerSize : len(blob)-1]
	class := order.Uint32(body[:4])
	if class > TypeGeometryCollection {
		return nil, 0, fmt.Errorf("unsupported geometry class %d (Z/M or compressed)", class)
	}

	// Rebuild standard WKB: the endian flag byte followed by the body.
	raw := make([]byte, 0, 1+len(body))
	raw = append(raw, blob[1])
	raw = append(raw, body...)

	g, err := wkb.Unmarshal(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode wkb body: %w", err)
	}

	return g, srid, nil
}

// Encode serializes an orb geometry as a little-endian SpatiaLite BLOB
// with the given SRID.
func Encode(g orb.Geometry, srid int) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("nil geometry")
	}

	raw, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("failed to encode wkb body: %w", err)
	}

	bound := g.Bound()

	out := make([]byte, 0, headerSize+len(raw)+1)
	out = append(out, blobStart, littleEndian)
	out = binary.LittleEndian.AppendUint32(out, uint32(int32(srid)))
	out = binary.LittleEndian.AppendUint64(out, math.Float64bits(bound.Min[0]))
	out = binary.LittleEndian.AppendUint64(out, math.Float64bits(bound.Min[1]))
	out = binary.LittleEndian.AppendUint64(out, math.Float64bits(bound.Max[0]))
	out = binary.LittleEndian.AppendUint64(out, math.Float64bits(bound.Max[1]))
	out = append(out, mbrEnd)
	// Drop the WKB endian byte, already carried by the blob header.
	out = append(out, raw[1:]...)
	out = append(out, blobEnd)

	return out, nil
}
