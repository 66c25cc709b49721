package flatgeobuf

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	geopackage "github.com/tingold/orb-geopackage"
)

func TestImportFeatures(t *testing.T) {
	gp, data := exportPlaces(t, nil)
	ctx := context.Background()
	dao := createPlaces(t, gp, "places_copy", false)

	r, err := NewReaderFromData(data)
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	n, err := ImportFeatures(ctx, r, dao, discard)
	if err != nil {
		t.Fatalf("ImportFeatures failed: %v", err)
	}
	if n != len(testPlaces) {
		t.Errorf("expected %d rows, got %d", len(testPlaces), n)
	}

	for _, p := range testPlaces {
		var found *geopackage.FeatureRow
		for row, err := range dao.QueryForEq(ctx, "name", geopackage.TextValue(p.name)) {
			if err != nil {
				t.Fatalf("QueryForEq failed: %v", err)
			}
			if found, err = dao.FeatureRow(row); err != nil {
				t.Fatal(err)
			}
		}
		if found == nil {
			t.Errorf("missing row %s", p.name)
			continue
		}
		g, err := found.Geometry()
		if err != nil {
			t.Fatalf("Geometry failed: %v", err)
		}
		if pt, ok := g.(orb.Point); !ok || pt != p.pt {
			t.Errorf("%s: expected %v, got %v", p.name, p.pt, g)
		}
		want, _ := geopackage.ValueOf(p.pop)
		if got := found.Value("pop"); !got.Equal(want) {
			t.Errorf("%s: expected pop %v, got %v", p.name, want, got)
		}
		if got := found.Value("short"); !got.Equal(geopackage.IntValue(-300)) {
			t.Errorf("%s: expected short -300, got %v", p.name, got)
		}
		if got := found.Value("flag"); got.Kind() != geopackage.KindBool {
			t.Errorf("%s: expected boolean flag, got %v", p.name, got.Kind())
		}
	}
}

func TestImportFeatures_RollsBackInTx(t *testing.T) {
	gp, data := exportPlaces(t, nil)
	ctx := context.Background()
	// beta has no pop, so one insert must fail.
	dao := createPlaces(t, gp, "strict_places", true)

	r, err := NewReaderFromData(data)
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	err = gp.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := ImportFeatures(ctx, r, dao.WithTx(tx), discard)
		return err
	})
	if !errors.Is(err, geopackage.ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
	if count, err := dao.Count(ctx); err != nil || count != 0 {
		t.Errorf("expected 0 rows after rollback, got %d, %v", count, err)
	}
}

func TestPropertyValue(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		expected any
		wantErr  bool
	}{
		{"uint64", uint64(42), int64(42), false},
		{"uint64 overflow", uint64(1 << 63), nil, true},
		{"object", map[string]any{"a": 1.0}, `{"a":1}`, false},
		{"array", []any{"x", true}, `["x",true]`, false},
		{"string", "plain", "plain", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := propertyValue(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
