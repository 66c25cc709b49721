package geopackage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func newRoadsDao(t *testing.T) (*GeoPackage, *Dao) {
	t.Helper()
	gp := openTestPackage(t)
	gc := NewGeometryColumns("roads", "geom", GeometryTypeLineString, 4326)
	if _, err := gp.CreateFeatureTableWithGeometryColumns(context.Background(), gc, WorldBoundingBox(), 4326, roadColumns()); err != nil {
		t.Fatalf("create roads: %v", err)
	}
	dao, err := gp.DaoForTable(context.Background(), "roads")
	if err != nil {
		t.Fatalf("DaoForTable failed: %v", err)
	}
	return gp, dao
}

func mustSet(t *testing.T, r *Row, column string, x any) {
	t.Helper()
	if err := r.SetAny(column, x); err != nil {
		t.Fatalf("set %s: %v", column, err)
	}
}

func TestDao_CreateRead(t *testing.T) {
	_, dao := newRoadsDao(t)
	ctx := context.Background()

	row := dao.NewRow()
	if name, _ := row.Value("name").Text(); name != "unnamed" {
		t.Errorf("expected default name, got %v", row.Value("name"))
	}
	mustSet(t, row, "name", "Main St")
	mustSet(t, row, "lanes", 4)
	mustSet(t, row, "speed", 50)
	mustSet(t, row, "paved", false)
	mustSet(t, row, "opened", "1999-12-31")
	mustSet(t, row, "surveyed", "2024-03-01T12:30:00Z")
	mustSet(t, row, "photo", []byte{0xff, 0xd8})

	id, err := dao.Create(ctx, row)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if got, ok := row.ID(); !ok || got != id {
		t.Errorf("expected row id %d, got %d", id, got)
	}

	got, err := dao.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for _, tt := range []struct {
		column string
		want   Value
	}{
		{"id", IntValue(id)},
		{"geom", NullValue()},
		{"name", TextValue("Main St")},
		{"lanes", IntValue(4)},
		{"speed", RealValue(50)},
		{"paved", BoolValue(false)},
		{"opened", TextValue("1999-12-31")},
		{"surveyed", TextValue("2024-03-01T12:30:00.000Z")},
		{"photo", BlobValue([]byte{0xff, 0xd8})},
	} {
		if v := got.Value(tt.column); !v.Equal(tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.column, tt.want, v)
		}
	}
}

func TestDao_CountAndDelete(t *testing.T) {
	_, dao := newRoadsDao(t)
	ctx := context.Background()

	const n = 5
	var ids []int64
	for i := 0; i < n; i++ {
		row := dao.NewRow()
		mustSet(t, row, "lanes", i)
		id, err := dao.Create(ctx, row)
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}
	if count, err := dao.Count(ctx); err != nil || count != n {
		t.Fatalf("expected count %d, got %d, %v", n, count, err)
	}

	deleted, err := dao.Delete(ctx, ids[2])
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v, %v", deleted, err)
	}
	if count, _ := dao.Count(ctx); count != n-1 {
		t.Errorf("expected count %d, got %d", n-1, count)
	}
	if deleted, err := dao.Delete(ctx, ids[2]); err != nil || deleted {
		t.Errorf("expected second delete to report false, got %v, %v", deleted, err)
	}
	if _, err := dao.Read(ctx, ids[2]); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDao_CreateConstraints(t *testing.T) {
	_, dao := newRoadsDao(t)
	ctx := context.Background()

	first := dao.NewRow()
	id, err := dao.Create(ctx, first)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("not null", func(t *testing.T) {
		row := dao.NewRow()
		if err := row.Set("name", NullValue()); err != nil {
			t.Fatal(err)
		}
		if _, err := dao.Create(ctx, row); !errors.Is(err, ErrConstraint) {
			t.Errorf("expected ErrConstraint, got %v", err)
		}
	})

	t.Run("primary key collision", func(t *testing.T) {
		row := dao.NewRow()
		row.SetID(id)
		if _, err := dao.Create(ctx, row); !errors.Is(err, ErrConstraint) {
			t.Errorf("expected ErrConstraint, got %v", err)
		}
	})

	t.Run("text too long", func(t *testing.T) {
		row := dao.NewRow()
		err := row.Set("name", TextValue(string(bytes.Repeat([]byte("x"), 41))))
		if !errors.Is(err, ErrConstraint) {
			t.Errorf("expected ErrConstraint, got %v", err)
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		row := dao.NewRow()
		if err := row.Set("lanes", TextValue("four")); !errors.Is(err, ErrType) {
			t.Errorf("expected ErrType, got %v", err)
		}
		if err := row.Set("lanes", IntValue(1<<20)); !errors.Is(err, ErrType) {
			t.Errorf("expected ErrType for SMALLINT overflow, got %v", err)
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		row := dao.NewRow()
		if err := row.Set("width", IntValue(1)); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	if count, _ := dao.Count(ctx); count != 1 {
		t.Errorf("expected failed creates to leave 1 row, got %d", count)
	}
}

func TestDao_Update(t *testing.T) {
	_, dao := newRoadsDao(t)
	ctx := context.Background()

	row := dao.NewRow()
	id, err := dao.Create(ctx, row)
	if err != nil {
		t.Fatal(err)
	}

	mustSet(t, row, "name", "High St")
	mustSet(t, row, "paved", true)
	if err := dao.Update(ctx, row); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err := dao.Read(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if name, _ := got.Value("name").Text(); name != "High St" {
		t.Errorf("expected High St, got %v", got.Value("name"))
	}

	got.SetID(id + 100)
	if err := dao.Update(ctx, got); !errors.Is(err, ErrConstraint) {
		t.Errorf("expected ErrConstraint for changed primary key, got %v", err)
	}

	orphan := dao.NewRow()
	if err := dao.Update(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound without primary key, got %v", err)
	}
	orphan.SetID(id + 100)
	if err := dao.Update(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing row, got %v", err)
	}

	bad := dao.NewRow()
	bad.SetID(id)
	if err := bad.Set("name", NullValue()); err != nil {
		t.Fatal(err)
	}
	if err := dao.Update(ctx, bad); !errors.Is(err, ErrConstraint) {
		t.Errorf("expected ErrConstraint for null name, got %v", err)
	}
	got, _ = dao.Read(ctx, id)
	if name, _ := got.Value("name").Text(); name != "High St" {
		t.Errorf("failed update changed the row: %v", got)
	}
}

func TestDao_QueryForAll(t *testing.T) {
	_, dao := newRoadsDao(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c", "b"} {
		row := dao.NewRow()
		mustSet(t, row, "name", name)
		if _, err := dao.Create(ctx, row); err != nil {
			t.Fatal(err)
		}
	}

	var names []string
	for row, err := range dao.QueryForAll(ctx) {
		if err != nil {
			t.Fatal(err)
		}
		s, _ := row.Value("name").Text()
		names = append(names, s)
	}
	if len(names) != 4 || names[0] != "a" || names[3] != "b" {
		t.Errorf("unexpected rows %v", names)
	}

	// Sequences restart and may be abandoned early.
	seen := 0
	for _, err := range dao.QueryForAll(ctx) {
		if err != nil {
			t.Fatal(err)
		}
		seen++
		break
	}
	if seen != 1 {
		t.Errorf("expected to stop after 1 row, saw %d", seen)
	}
	if count, err := dao.Count(ctx); err != nil || count != 4 {
		t.Errorf("expected connection to be released, got %d, %v", count, err)
	}

	matches := 0
	for row, err := range dao.QueryForEq(ctx, "name", TextValue("b")) {
		if err != nil {
			t.Fatal(err)
		}
		if s, _ := row.Value("name").Text(); s != "b" {
			t.Errorf("expected b, got %s", s)
		}
		matches++
	}
	if matches != 2 {
		t.Errorf("expected 2 matches, got %d", matches)
	}

	for _, err := range dao.QueryForEq(ctx, "nope", IntValue(1)) {
		if !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	}
}

func TestDao_WithTx(t *testing.T) {
	gp, dao := newRoadsDao(t)
	ctx := context.Background()
	rollback := errors.New("rollback")

	err := gp.WithTx(ctx, func(tx *sql.Tx) error {
		txDao := dao.WithTx(tx)
		for i := 0; i < 3; i++ {
			if _, err := txDao.Create(ctx, txDao.NewRow()); err != nil {
				return err
			}
		}
		if n, err := txDao.Count(ctx); err != nil || n != 3 {
			t.Errorf("expected 3 rows inside tx, got %d, %v", n, err)
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback error, got %v", err)
	}
	if n, _ := dao.Count(ctx); n != 0 {
		t.Errorf("expected rolled back rows, got %d", n)
	}
}

func TestDao_CallsInsideQueryLoop(t *testing.T) {
	gp, dao := newRoadsDao(t)
	ctx := context.Background()

	n := queryPageSize + 10
	err := gp.WithTx(ctx, func(tx *sql.Tx) error {
		txDao := dao.WithTx(tx)
		for i := 0; i < n; i++ {
			if _, err := txDao.Create(ctx, txDao.NewRow()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		for row, err := range dao.QueryForAll(ctx) {
			if err != nil {
				done <- err
				return
			}
			if err := row.SetAny("lanes", 5); err != nil {
				done <- err
				return
			}
			if err := dao.Update(ctx, row); err != nil {
				done <- err
				return
			}
			id, _ := row.ID()
			if _, err := dao.Read(ctx, id); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("loop failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Update inside QueryForAll did not return")
	}

	updated := 0
	for _, err := range dao.QueryForEq(ctx, "lanes", IntValue(5)) {
		if err != nil {
			t.Fatal(err)
		}
		updated++
	}
	if updated != n {
		t.Errorf("expected %d updated rows, got %d", n, updated)
	}
}

func TestDao_QueryForEqAcrossPages(t *testing.T) {
	gp, dao := newRoadsDao(t)
	ctx := context.Background()

	n := 2*queryPageSize + 3
	err := gp.WithTx(ctx, func(tx *sql.Tx) error {
		txDao := dao.WithTx(tx)
		for i := 0; i < n; i++ {
			row := txDao.NewRow()
			if i%2 == 0 {
				if err := row.SetAny("name", "even"); err != nil {
					return err
				}
			}
			if _, err := txDao.Create(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var last int64
	matches := 0
	for row, err := range dao.QueryForEq(ctx, "name", TextValue("even")) {
		if err != nil {
			t.Fatal(err)
		}
		id, _ := row.ID()
		if id <= last {
			t.Fatalf("expected ascending ids, got %d after %d", id, last)
		}
		last = id
		matches++
	}
	if want := (n + 1) / 2; matches != want {
		t.Errorf("expected %d matches, got %d", want, matches)
	}
}

func TestDao_RowFromOtherDescriptor(t *testing.T) {
	gp, dao := newRoadsDao(t)
	ctx := context.Background()

	other, err := NewTable("roads", []Column{NewPrimaryKeyColumn(0, "id")})
	if err != nil {
		t.Fatal(err)
	}
	foreign := gp.Dao(other).NewRow()
	if _, err := dao.Create(ctx, foreign); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation from Create, got %v", err)
	}
	foreign.SetID(1)
	if err := dao.Update(ctx, foreign); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation from Update, got %v", err)
	}

	// A descriptor read again from the store has the same layout.
	same, err := gp.ReadTable(ctx, "roads")
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if _, err := dao.Create(ctx, gp.Dao(same).NewRow()); err != nil {
		t.Errorf("expected row from an equal descriptor to be accepted, got %v", err)
	}
}

func TestDao_ReadInvalidBoolean(t *testing.T) {
	gp, dao := newRoadsDao(t)
	ctx := context.Background()

	res, err := gp.DB().ExecContext(ctx, `INSERT INTO roads (name, paved) VALUES ('odd', 7)`)
	if err != nil {
		t.Fatal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dao.Read(ctx, id); !errors.Is(err, ErrType) {
		t.Errorf("expected ErrType for stored 7, got %v", err)
	}
}
