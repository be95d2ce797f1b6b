package curve

import (
	"io"
	"math"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Document is the portable form of a curve used for export and import.
type Document struct {
	TankID     string    `json:"tankId,omitempty" yaml:"tank_id,omitempty"`
	ExportedAt time.Time `json:"exportedAt" yaml:"exported_at,omitempty"`
	FullScale  float64   `json:"fullScale" yaml:"full_scale"`
	Samples    []Sample  `json:"samples" yaml:"samples"`
}

// WriteYAML encodes doc to w.
func WriteYAML(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return pkgerrors.Wrap(err, "failed to encode curve")
	}
	return enc.Close()
}

// ReadYAML decodes and validates a curve document from r.
func ReadYAML(r io.Reader) (Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, pkgerrors.Wrap(err, "failed to decode curve")
	}
	if doc.FullScale <= 0 {
		doc.FullScale = FullScale
	}
	if err := Validate(doc.Samples, doc.FullScale); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Validate checks that a sample set is usable for lookups: at least two
// samples, raw values within [0, fullScale] and fractions within [0, 1].
func Validate(samples []Sample, fullScale float64) error {
	if len(samples) < 2 {
		return pkgerrors.Errorf("curve needs at least 2 samples, got %d", len(samples))
	}
	for i, s := range samples {
		if math.IsNaN(s.Raw) || s.Raw < 0 || s.Raw > fullScale {
			return pkgerrors.Errorf("sample %d: raw %v out of range [0, %v]", i, s.Raw, fullScale)
		}
		if math.IsNaN(s.Fraction) || s.Fraction < 0 || s.Fraction > 1 {
			return pkgerrors.Errorf("sample %d: fraction %v out of range [0, 1]", i, s.Fraction)
		}
	}
	return nil
}
