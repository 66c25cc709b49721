// Command server builds a small GeoPackage of world cities and serves its
// feature table as FlatGeobuf at /data.fgb, next to the static map client.
package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/paulmach/orb"
	geopackage "github.com/tingold/orb-geopackage"
	"github.com/tingold/orb-geopackage/flatgeobuf"
)

const citiesTable = "world_cities"

type City struct {
	Name       string
	Country    string
	Longitude  float64
	Latitude   float64
	Population int
	Capital    bool
}

var cities = []City{
	{"Tokyo", "Japan", 139.6917, 35.6895, 13960000, true},
	{"New York", "United States", -73.9857, 40.7484, 8336817, false},
	{"London", "United Kingdom", -0.1276, 51.5074, 8982000, true},
	{"Paris", "France", 2.3522, 48.8566, 2161000, true},
	{"Beijing", "China", 116.4074, 39.9042, 21540000, true},
	{"Moscow", "Russia", 37.6173, 55.7558, 12615000, true},
	{"São Paulo", "Brazil", -46.6333, -23.5505, 12300000, false},
	{"Mumbai", "India", 72.8777, 19.0760, 12400000, false},
	{"Los Angeles", "United States", -118.2437, 34.0522, 3971883, false},
	{"Shanghai", "China", 121.4737, 31.2304, 24870000, false},
	{"Istanbul", "Turkey", 28.9784, 41.0082, 15520000, false},
	{"Buenos Aires", "Argentina", -58.3816, -34.6037, 3075646, true},
	{"Cairo", "Egypt", 31.2357, 30.0444, 10230000, true},
	{"Sydney", "Australia", 151.2093, -33.8688, 5312000, false},
	{"Berlin", "Germany", 13.4050, 52.5200, 3669491, true},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML options file")
	dbPath := flag.String("db", "", "GeoPackage file; overrides the config path")
	addr := flag.String("addr", ":8080", "listen address")
	clientDir := flag.String("client", filepath.Join("..", "client"), "static client directory")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	opts := geopackage.DefaultOptions()
	if *configPath != "" {
		var err error
		if opts, err = geopackage.ReadOptionsFile(*configPath); err != nil {
			return err
		}
	}
	level, err := opts.Level()
	if err != nil {
		return err
	}
	ll := &slog.LevelVar{}
	ll.Set(level)
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)
	opts.Logger = logger

	path := opts.Path
	if *dbPath != "" {
		path = *dbPath
	}
	if path == "" {
		path = "cities.gpkg"
	}
	gp, err := geopackage.Open(ctx, path, opts)
	if err != nil {
		return err
	}
	defer gp.Close()

	if err := gp.CreateRequired(ctx); err != nil {
		return err
	}
	dao, err := citiesDao(ctx, gp)
	if err != nil {
		return err
	}

	// Exported once; the table does not change while serving.
	var buf bytes.Buffer
	n, err := flatgeobuf.ExportFeatures(ctx, &buf, dao, &flatgeobuf.Options{
		Description: "Major world cities",
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("export %s: %w", citiesTable, err)
	}
	data := buf.Bytes()
	slog.InfoContext(ctx, "Exported table", "table", citiesTable, "features", n, "bytes", len(data))

	fs := http.FileServer(http.Dir(*clientDir))
	mux := http.NewServeMux()
	mux.HandleFunc("/data.fgb", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if _, err := w.Write(data); err != nil {
			slog.WarnContext(r.Context(), "Write failed", "err", err)
		}
	})
	mux.Handle("/", fs)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", *addr, "client", *clientDir, "db", path)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}
	return nil
}

// citiesDao opens the cities table, creating and filling it on first run.
func citiesDao(ctx context.Context, gp *geopackage.GeoPackage) (*geopackage.FeatureDao, error) {
	dao, err := gp.FeatureDao(ctx, citiesTable)
	if err == nil {
		return dao, nil
	}
	if !errors.Is(err, geopackage.ErrNotFound) {
		return nil, err
	}

	gc := geopackage.NewGeometryColumns(citiesTable, "geom", geopackage.GeometryTypePoint, 4326)
	_, err = gp.CreateFeatureTableWithGeometryColumns(ctx, gc, geopackage.WorldBoundingBox(), 4326, []geopackage.Column{
		geopackage.NewPrimaryKeyColumn(0, "id"),
		geopackage.NewGeometryColumn(1, "geom", geopackage.GeometryTypePoint, true, nil),
		geopackage.NewColumnWithMax(2, "name", geopackage.DataTypeText, 80, true, nil),
		geopackage.NewColumn(3, "country", geopackage.DataTypeText, true, nil),
		geopackage.NewColumn(4, "population", geopackage.DataTypeInteger, false, nil),
		geopackage.NewColumn(5, "capital", geopackage.DataTypeBoolean, true, false),
	})
	if err != nil {
		return nil, err
	}
	if dao, err = gp.FeatureDao(ctx, citiesTable); err != nil {
		return nil, err
	}

	err = gp.WithTx(ctx, func(tx *sql.Tx) error {
		txDao := dao.WithTx(tx)
		for _, c := range cities {
			row := txDao.NewRow()
			if err := row.SetGeometry(orb.Point{c.Longitude, c.Latitude}); err != nil {
				return err
			}
			for col, v := range map[string]any{
				"name":       c.Name,
				"country":    c.Country,
				"population": c.Population,
				"capital":    c.Capital,
			} {
				if err := row.SetAny(col, v); err != nil {
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
		return nil, fmt.Errorf("seed %s: %w", citiesTable, err)
	}
	b, ok, err := dao.Bound(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		err = gp.Registry().SetContentsBounds(ctx, citiesTable, b)
	} else {
		err = gp.Registry().TouchContents(ctx, citiesTable)
	}
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Created table", "table", citiesTable, "rows", len(cities), "bound", b.Bound())
	return dao, nil
}
