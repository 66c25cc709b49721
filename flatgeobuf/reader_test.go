package flatgeobuf

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
)

func TestNewReaderFromData_Invalid(t *testing.T) {
	if _, err := NewReaderFromData([]byte("not a flatgeobuf")); err == nil {
		t.Error("expected error for invalid data")
	}
	if _, err := NewReaderFromData([]byte{}); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestNewReader_NonExistent(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.fgb")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadAll_Properties(t *testing.T) {
	_, data := exportPlaces(t, &Options{IncludeIndex: true, Logger: discard})
	path := filepath.Join(t.TempDir(), "places.fgb")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	fc, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(fc.Features) != len(testPlaces) {
		t.Fatalf("expected %d features, got %d", len(testPlaces), len(fc.Features))
	}

	byName := make(map[string]int)
	for i, f := range fc.Features {
		name, ok := f.Properties["name"].(string)
		if !ok {
			t.Fatalf("feature %d: expected string name, got %T", i, f.Properties["name"])
		}
		byName[name] = i
	}

	for _, p := range testPlaces {
		i, ok := byName[p.name]
		if !ok {
			t.Errorf("missing feature %s", p.name)
			continue
		}
		f := fc.Features[i]
		if pt, ok := f.Geometry.(orb.Point); !ok || pt != p.pt {
			t.Errorf("%s: expected %v, got %v", p.name, p.pt, f.Geometry)
		}
		if p.pop == nil {
			if _, ok := f.Properties["pop"]; ok {
				t.Errorf("%s: expected null pop to be absent", p.name)
			}
		} else if f.Properties["pop"] != p.pop {
			t.Errorf("%s: expected pop %v, got %v (%T)", p.name, p.pop, f.Properties["pop"], f.Properties["pop"])
		}
	}

	props := fc.Features[byName["alpha"]].Properties
	expected := map[string]any{
		"area":    12.25,
		"small":   int8(-3),
		"flag":    true,
		"founded": "2020-05-01",
		"ratio":   float32(1.5),
		"mid":     int32(70000),
		"short":   int16(-300),
	}
	for k, want := range expected {
		if props[k] != want {
			t.Errorf("%s: expected %v (%T), got %v (%T)", k, want, want, props[k], props[k])
		}
	}
	if photo, ok := props["photo"].([]byte); !ok || !bytes.Equal(photo, []byte{0xde, 0xad, 0}) {
		t.Errorf("photo: expected dead00, got %v", props["photo"])
	}
}

func TestSearch(t *testing.T) {
	_, data := exportPlaces(t, nil)
	r, err := NewReaderFromData(data)
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}

	fc, err := r.Search(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{4, 5}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc.Features))
	}
	for _, f := range fc.Features {
		if f.Properties["name"] == "gamma" {
			t.Error("gamma is outside the search bounds")
		}
	}

	fc, err = r.Search(orb.Bound{Min: orb.Point{100, 100}, Max: orb.Point{101, 101}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(fc.Features) != 0 {
		t.Errorf("expected no features, got %d", len(fc.Features))
	}
}

func TestReadValue_Truncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		typ  flattypes.ColumnType
	}{
		{"empty bool", nil, flattypes.ColumnTypeBool},
		{"short int", []byte{1, 0}, flattypes.ColumnTypeInt},
		{"short double", []byte{0, 0, 0, 0}, flattypes.ColumnTypeDouble},
		{"missing length", []byte{3, 0}, flattypes.ColumnTypeString},
		{"string past end", []byte{9, 0, 0, 0, 'a', 'b'}, flattypes.ColumnTypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := readValue(tt.data, tt.typ); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeProperties_TruncatedIndex(t *testing.T) {
	if _, err := decodeProperties([]byte{1}, nil); !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
	props, err := decodeProperties(nil, nil)
	if err != nil || props != nil {
		t.Errorf("expected no properties, got %v, %v", props, err)
	}
}

func TestReader_Close(t *testing.T) {
	_, data := exportPlaces(t, nil)
	r, err := NewReaderFromData(data)
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
