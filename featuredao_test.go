package geopackage

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func newTestFeatures(t *testing.T) (*GeoPackage, *FeatureDao) {
	t.Helper()
	gp := openTestPackage(t)
	ctx := context.Background()
	gc := NewGeometryColumns("test_features", "geom", GeometryTypePoint, 4326)
	_, err := gp.CreateFeatureTableWithGeometryColumns(ctx, gc, WorldBoundingBox(), 4326, []Column{
		NewPrimaryKeyColumn(0, "id"),
		NewGeometryColumn(1, "geom", GeometryTypePoint, false, nil),
		NewColumn(2, "name", DataTypeText, false, nil),
	})
	if err != nil {
		t.Fatalf("create test_features: %v", err)
	}
	dao, err := gp.FeatureDao(ctx, "test_features")
	if err != nil {
		t.Fatalf("FeatureDao failed: %v", err)
	}
	return gp, dao
}

func TestFeatureDao_InsertPoint(t *testing.T) {
	_, dao := newTestFeatures(t)
	ctx := context.Background()

	row := dao.NewRow()
	if err := row.SetGeometry(orb.Point{1, 2}); err != nil {
		t.Fatalf("SetGeometry failed: %v", err)
	}
	if err := row.Set("name", TextValue("hello")); err != nil {
		t.Fatal(err)
	}
	id, err := dao.Create(ctx, row)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if count, err := dao.Count(ctx); err != nil || count != 1 {
		t.Fatalf("expected count 1, got %d, %v", count, err)
	}

	got, err := dao.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	g, err := got.Geometry()
	if err != nil {
		t.Fatalf("Geometry failed: %v", err)
	}
	p, ok := g.(orb.Point)
	if !ok {
		t.Fatalf("expected orb.Point, got %T", g)
	}
	if p.X() != 1 || p.Y() != 2 {
		t.Errorf("expected POINT(1 2), got %v", p)
	}
	if name, _ := got.Value("name").Text(); name != "hello" {
		t.Errorf("expected name hello, got %v", got.Value("name"))
	}

	gd := got.GeometryData()
	if gd.SRSID != 4326 {
		t.Errorf("expected srs 4326, got %d", gd.SRSID)
	}
	if gd.Envelope == nil || gd.Envelope.BoundingBox() != NewBoundingBox(1, 1, 2, 2) {
		t.Errorf("expected computed envelope, got %+v", gd.Envelope)
	}
}

func TestFeatureDao_Metadata(t *testing.T) {
	_, dao := newTestFeatures(t)

	if c := dao.GeometryColumn(); c.Name != "geom" || c.GeometryType != GeometryTypePoint {
		t.Errorf("unexpected geometry column %+v", c)
	}
	if gc := dao.GeometryColumns(); gc.TableName != "test_features" || gc.SRSID != 4326 {
		t.Errorf("unexpected geometry columns %+v", gc)
	}
	if dao.SRSID() != 4326 {
		t.Errorf("expected srs 4326, got %d", dao.SRSID())
	}
}

func TestFeatureDao_GeometryTypeChecked(t *testing.T) {
	_, dao := newTestFeatures(t)
	ctx := context.Background()

	row := dao.NewRow()
	if err := row.SetGeometry(orb.LineString{{0, 0}, {1, 1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := dao.Create(ctx, row); !errors.Is(err, ErrType) {
		t.Errorf("expected ErrType, got %v", err)
	}

	empty := dao.NewRow()
	if err := empty.SetGeometryData(EmptyGeometryData(4326)); err != nil {
		t.Fatal(err)
	}
	id, err := dao.Create(ctx, empty)
	if err != nil {
		t.Fatalf("expected empty geometry to be accepted, got %v", err)
	}
	got, err := dao.Read(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if gd := got.GeometryData(); gd == nil || !gd.Empty {
		t.Errorf("expected empty geometry, got %+v", gd)
	}
}

func TestFeatureDao_UpdateAndBound(t *testing.T) {
	_, dao := newTestFeatures(t)
	ctx := context.Background()

	if _, ok, err := dao.Bound(ctx); err != nil || ok {
		t.Fatalf("expected no bound on empty table, got %v, %v", ok, err)
	}

	for _, p := range []orb.Point{{-3, 4}, {5, -1}} {
		row := dao.NewRow()
		if err := row.SetGeometry(p); err != nil {
			t.Fatal(err)
		}
		if _, err := dao.Create(ctx, row); err != nil {
			t.Fatal(err)
		}
	}

	box, ok, err := dao.Bound(ctx)
	if err != nil || !ok {
		t.Fatalf("Bound failed: %v, %v", ok, err)
	}
	if want := NewBoundingBox(-3, 5, -1, 4); box != want {
		t.Errorf("expected %+v, got %+v", want, box)
	}

	var first *FeatureRow
	for r, err := range dao.Features(ctx) {
		if err != nil {
			t.Fatal(err)
		}
		first = r
		break
	}
	if first == nil {
		t.Fatal("expected a feature")
	}
	if err := first.SetGeometry(orb.Point{10, 10}); err != nil {
		t.Fatal(err)
	}
	if err := dao.Update(ctx, first); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	box, _, _ = dao.Bound(ctx)
	if want := NewBoundingBox(5, 10, -1, 10); box != want {
		t.Errorf("expected %+v after update, got %+v", want, box)
	}
}

func TestFeatureDao_NotAFeatureTable(t *testing.T) {
	gp := openTestPackage(t)
	if _, err := gp.FeatureDao(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
