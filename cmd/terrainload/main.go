// terrainload reads a JSON terrain dump and upserts the rooms into the
// database consumed by the path server.
//
// Dump format: [{"room": "W7N4", "terrain": "<2500 digits, one class per
// cell, row-major yy*50+xx>"}, ...]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/udisondev/wayfinder/internal/config"
	"github.com/udisondev/wayfinder/internal/db"
	"github.com/udisondev/wayfinder/internal/pathfind"
)

type terrainDumpRoom struct {
	Room    string `json:"room"`
	Terrain string `json:"terrain"`
}

func main() {
	configPath := flag.String("config", "config/pathserver.yaml", "path to the server config")
	filePath := flag.String("file", "", "terrain dump to load")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if *filePath == "" {
		slog.Error("missing -file")
		os.Exit(2)
	}

	if err := run(context.Background(), *configPath, *filePath); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, filePath string) error {
	cfg, err := config.LoadPathServer(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading dump: %w", err)
	}
	var dump []terrainDumpRoom
	if err := json.Unmarshal(data, &dump); err != nil {
		return fmt.Errorf("parsing dump: %w", err)
	}

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	schemaVersion, err := db.RunMigrations(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("schema ready", "version", schemaVersion)

	repo := db.NewTerrainRepository(database.Pool())
	loaded := 0
	for _, room := range dump {
		bits, err := packDigits(room.Terrain)
		if err != nil {
			slog.Warn("skipping room", "room", room.Room, "err", err)
			continue
		}
		if err := repo.UpsertRoom(ctx, room.Room, bits); err != nil {
			return fmt.Errorf("storing room %s: %w", room.Room, err)
		}
		loaded++
	}

	slog.Info("terrain dump loaded", "rooms", loaded, "skipped", len(dump)-loaded)
	return nil
}

// packDigits converts a 2500-character terrain class string into the packed
// blob stored in the database.
func packDigits(s string) ([]byte, error) {
	if len(s) != pathfind.RoomArea {
		return nil, fmt.Errorf("terrain string has %d cells, want %d", len(s), pathfind.RoomArea)
	}
	cells := make([]byte, pathfind.RoomArea)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '2' {
			return nil, fmt.Errorf("invalid terrain class %q at cell %d", c, i)
		}
		cells[i] = c - '0'
	}
	return pathfind.PackTerrain(cells)
}
