// Package codec serializes generated wind fields for transport and storage.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/couchcryptid/storm-data-windfield/internal/domain"
)

// Encoding names a wire format for Documents.
type Encoding string

const (
	EncodingJSON        Encoding = "json"
	EncodingMsgpackZstd Encoding = "msgpack+zstd"
)

// ErrUnknownEncoding is returned for an encoding name that is not supported.
var ErrUnknownEncoding = errors.New("unknown encoding")

// ParseEncoding accepts "json" or "msgpack+zstd" (case-insensitive).
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case EncodingJSON, EncodingMsgpackZstd:
		return e, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
}

// Ext returns the file extension used for the encoding, including the dot.
func (e Encoding) Ext() string {
	if e == EncodingMsgpackZstd {
		return ".msgpack.zst"
	}
	return ".json"
}

// ContentType returns the media type for HTTP responses and message headers.
func (e Encoding) ContentType() string {
	if e == EncodingMsgpackZstd {
		return "application/x-msgpack+zstd"
	}
	return "application/json"
}

// Document is the serialized form of one wind field. Levels appear in
// request order; U and V are row-major with Size.Rows*Size.Cols values.
type Document struct {
	Scenario    domain.Scenario `json:"scenario"`
	GeneratedAt time.Time       `json:"generated_at"`
	StdDev      float64         `json:"std_dev"`
	Size        domain.GridSize `json:"size"`
	Levels      []LevelGrid     `json:"levels"`
}

// LevelGrid is one level's wind components.
type LevelGrid struct {
	Level domain.Level `json:"level"`
	Seed  int64        `json:"seed"`
	U     []float64    `json:"u"`
	V     []float64    `json:"v"`
}

// FromField flattens f into a Document. s should be the resolved scenario
// the field was built from so the document can be regenerated on its own.
func FromField(f *domain.WindField3D, s domain.Scenario, at time.Time) Document {
	doc := Document{
		Scenario:    s,
		GeneratedAt: at.UTC(),
		StdDev:      f.StdDev(),
		Size:        f.Size(),
		Levels:      make([]LevelGrid, 0, f.Len()),
	}
	for level, g := range f.All() {
		doc.Levels = append(doc.Levels, LevelGrid{
			Level: level,
			Seed:  g.Seed,
			U:     g.UData(),
			V:     g.VData(),
		})
	}
	return doc
}

// Field rebuilds the wind field held by the document.
func (d Document) Field() (*domain.WindField3D, error) {
	grids := make([]*domain.WindGrid2D, 0, len(d.Levels))
	for _, lg := range d.Levels {
		g, err := domain.WindGridFromData(lg.Level, lg.Seed, d.Size, lg.U, lg.V)
		if err != nil {
			return nil, fmt.Errorf("level %s: %w", lg.Level, err)
		}
		grids = append(grids, g)
	}
	return domain.NewWindField3D(d.Scenario.Region, d.StdDev, d.Scenario.BaseSeed, grids)
}

// Write encodes doc to w.
func Write(w io.Writer, doc Document, enc Encoding) error {
	switch enc {
	case EncodingJSON:
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			return fmt.Errorf("encode json document: %w", err)
		}
		return nil
	case EncodingMsgpackZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create zstd writer: %w", err)
		}
		defer zw.Close()

		me := msgpack.NewEncoder(zw)
		me.SetCustomStructTag("json")
		if err := me.Encode(doc); err != nil {
			return fmt.Errorf("encode msgpack document: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close zstd writer: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
}

// Read decodes a document from r.
func Read(r io.Reader, enc Encoding) (Document, error) {
	var doc Document
	switch enc {
	case EncodingJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decode json document: %w", err)
		}
		doc.GeneratedAt = doc.GeneratedAt.UTC()
		return doc, nil
	case EncodingMsgpackZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return Document{}, fmt.Errorf("create zstd reader: %w", err)
		}
		defer zr.Close()

		md := msgpack.NewDecoder(zr)
		md.SetCustomStructTag("json")
		if err := md.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decode msgpack document: %w", err)
		}
		doc.GeneratedAt = doc.GeneratedAt.UTC()
		return doc, nil
	}
	return Document{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
}

// Encode returns doc serialized with enc.
func Encode(doc Document, enc Encoding) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, doc, enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses data serialized with enc.
func Decode(data []byte, enc Encoding) (Document, error) {
	return Read(bytes.NewReader(data), enc)
}

// EncodingForPath infers the encoding from a file name.
func EncodingForPath(name string) (Encoding, bool) {
	switch {
	case strings.HasSuffix(name, EncodingMsgpackZstd.Ext()):
		return EncodingMsgpackZstd, true
	case strings.HasSuffix(name, EncodingJSON.Ext()):
		return EncodingJSON, true
	}
	return "", false
}
