package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"geosql/pkg/dialect"
	"geosql/pkg/geom"
	"strings"

	gogeom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/ewkbhex"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkbhex"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// ErrMalformedWKB is returned when a binary payload is shorter than its
// declared structure, carries an unknown type code, or cannot be unframed.
var ErrMalformedWKB = errors.New("malformed wkb")

const sridPrefix = "SRID="

// Encode serializes g to WKT, e.g. "POINT (1 2)". Coordinates are written in
// x y order without any range checks.
func Encode(g geom.Geometry) (string, error) {
	t, err := geom.ToT(g)
	if err != nil {
		return "", err
	}

	out, err := wkt.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("%w: %v", geom.ErrInvalidGeometry, err)
	}
	return out, nil
}

// EncodeForWrite returns the WKT literal to bind into the dialect's geometry
// construction call, SRID prefix included.
func EncodeForWrite(g geom.Geometry, rule dialect.Rule) (string, error) {
	out, err := Encode(g)
	if err != nil {
		return "", err
	}
	return rule.SRIDPrefixOnWrite + out, nil
}

// ParseWKT is the inverse of Encode. An EWKT "SRID=n;" prefix is accepted
// and discarded.
func ParseWKT(s string) (geom.Geometry, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), sridPrefix) {
		end := strings.Index(s, ";")
		if end == -1 {
			return nil, fmt.Errorf("%w: missing ; after SRID declaration in %q", geom.ErrInvalidGeometry, s)
		}
		s = s[end+1:]
	}

	t, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse wkt: %v", geom.ErrInvalidGeometry, err)
	}
	return geom.FromT(t)
}

// Decode turns a driver payload into a Geometry using exactly the framing
// rules of the given dialect.
func Decode(payload []byte, rule dialect.Rule) (geom.Geometry, error) {
	var body []byte

	switch rule.BinaryEncoding {
	case dialect.Raw:
		if len(payload) < rule.BinaryPrefixBytes {
			return nil, fmt.Errorf("%w: payload of %d bytes is shorter than the %d byte %s header",
				ErrMalformedWKB, len(payload), rule.BinaryPrefixBytes, rule.Name)
		}
		body = payload[rule.BinaryPrefixBytes:]

	case dialect.Hex:
		text := strings.TrimPrefix(strings.TrimSpace(string(payload)), `\x`)
		var err error
		if body, err = hex.DecodeString(text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedWKB, err)
		}

	default:
		return nil, fmt.Errorf("%w: unknown binary encoding %v for %s", ErrMalformedWKB, rule.BinaryEncoding, rule.Name)
	}

	var (
		t   gogeom.T
		err error
	)

	r := bytes.NewReader(body)
	if rule.ExtendedWKB {
		t, err = ewkb.Read(r)
	} else {
		t, err = wkb.Read(r)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWKB, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %s payload", ErrMalformedWKB, r.Len(), rule.Name)
	}

	g, err := geom.FromT(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedWKB, err)
	}
	return g, nil
}

// WKB returns the canonical OGC WKB of g.
func WKB(g geom.Geometry, byteOrder binary.ByteOrder) ([]byte, error) {
	t, err := geom.ToT(g)
	if err != nil {
		return nil, err
	}
	return wkb.Marshal(t, byteOrder)
}

// Frame renders g the way the dialect's driver hands a stored value back:
// MySQL's SRID header in front of little-endian WKB, PostGIS EWKB as hex
// text, or bare WKB. Decode(Frame(g, rule, srid), rule) yields g.
func Frame(g geom.Geometry, rule dialect.Rule, srid int) ([]byte, error) {
	t, err := geom.ToT(g)
	if err != nil {
		return nil, err
	}

	if rule.ExtendedWKB && srid != 0 {
		setSRID(t, srid)
	}

	switch rule.BinaryEncoding {
	case dialect.Hex:
		var text string
		if rule.ExtendedWKB {
			text, err = ewkbhex.Encode(t, binary.LittleEndian)
		} else {
			text, err = wkbhex.Encode(t, binary.LittleEndian)
		}
		if err != nil {
			return nil, err
		}
		return []byte(strings.ToUpper(text)), nil

	default:
		var body []byte
		if rule.ExtendedWKB {
			body, err = ewkb.Marshal(t, binary.LittleEndian)
		} else {
			body, err = wkb.Marshal(t, binary.LittleEndian)
		}
		if err != nil {
			return nil, err
		}

		header := make([]byte, rule.BinaryPrefixBytes)
		if len(header) >= 4 {
			binary.LittleEndian.PutUint32(header, uint32(srid))
		}
		return append(header, body...), nil
	}
}

func setSRID(t gogeom.T, srid int) {
	switch t := t.(type) {
	case *gogeom.Point:
		t.SetSRID(srid)
	case *gogeom.LineString:
		t.SetSRID(srid)
	case *gogeom.Polygon:
		t.SetSRID(srid)
	case *gogeom.MultiPoint:
		t.SetSRID(srid)
	case *gogeom.MultiLineString:
		t.SetSRID(srid)
	case *gogeom.MultiPolygon:
		t.SetSRID(srid)
	case *gogeom.GeometryCollection:
		t.SetSRID(srid)
	}
}
