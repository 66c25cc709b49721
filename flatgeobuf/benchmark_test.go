package flatgeobuf

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	geopackage "github.com/tingold/orb-geopackage"
)

var errRollback = errors.New("rollback")

// generatePoints creates n random points within the given bounds.
func generatePoints(r *rand.Rand, n int, minX, maxX, minY, maxY float64) []orb.Point {
	points := make([]orb.Point, n)
	for i := 0; i < n; i++ {
		x := minX + r.Float64()*(maxX-minX)
		y := minY + r.Float64()*(maxY-minY)
		points[i] = orb.Point{x, y}
	}
	return points
}

// seedRandomPlaces fills dao with n random places in one transaction.
func seedRandomPlaces(tb testing.TB, gp *geopackage.GeoPackage, dao *geopackage.FeatureDao, n int) {
	tb.Helper()
	ctx := context.Background()
	r := rand.New(rand.NewSource(42))
	err := gp.WithTx(ctx, func(tx *sql.Tx) error {
		txDao := dao.WithTx(tx)
		for i, pt := range generatePoints(r, n, -180, 180, -90, 90) {
			row := txDao.NewRow()
			if err := row.SetGeometry(pt); err != nil {
				return err
			}
			if err := row.SetAny("name", fmt.Sprintf("place %d", i)); err != nil {
				return err
			}
			if err := row.SetAny("pop", r.Int63n(1_000_000)); err != nil {
				return err
			}
			if _, err := txDao.Create(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tb.Fatalf("seed: %v", err)
	}
}

func openBenchPackage(b *testing.B, n int) (*geopackage.GeoPackage, *geopackage.FeatureDao) {
	b.Helper()
	gp := openTestPackage(b)
	dao := createPlaces(b, gp, "places", false)
	seedRandomPlaces(b, gp, dao, n)
	return gp, dao
}

func benchmarkExport(b *testing.B, n int, index bool) {
	_, dao := openBenchPackage(b, n)
	ctx := context.Background()
	opts := &Options{IncludeIndex: index, Logger: discard}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		if _, err := ExportFeatures(ctx, &buf, dao, opts); err != nil {
			b.Fatal(err)
		}
		b.SetBytes(int64(buf.Len()))
	}
}

func BenchmarkExport_Points_1000(b *testing.B) {
	benchmarkExport(b, 1000, false)
}

func BenchmarkExportIdx_Points_1000(b *testing.B) {
	benchmarkExport(b, 1000, true)
}

func BenchmarkImport_Points_1000(b *testing.B) {
	gp, dao := openBenchPackage(b, 1000)
	ctx := context.Background()
	var buf bytes.Buffer
	if _, err := ExportFeatures(ctx, &buf, dao, &Options{IncludeIndex: true, Logger: discard}); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()
	target := createPlaces(b, gp, "places_copy", false)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r, err := NewReaderFromData(data)
		if err != nil {
			b.Fatal(err)
		}
		// Rolled back so every iteration starts from an empty table.
		err = gp.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := ImportFeatures(ctx, r, target.WithTx(tx), discard); err != nil {
				return err
			}
			return errRollback
		})
		if !errors.Is(err, errRollback) {
			b.Fatal(err)
		}
	}
}
