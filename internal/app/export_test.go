package app

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"prediction-arena/internal/config"
)

func testConfig(maxPoints int) *config.Config {
	return &config.Config{
		Match: config.MatchConfig{
			RoundDuration:  60 * time.Second,
			VotingDuration: 30 * time.Second,
			BattleEnd:      50 * time.Second,
			MaxRounds:      3,
			SquadSize:      5,
			PriceHistory:   60,
			ChatLog:        30,
		},
		Price: config.PriceConfig{
			FallbackPrice: 96000,
			Jitter:        25,
		},
		Export: config.ExportConfig{MaxDataPoints: maxPoints},
	}
}

func readCSVRows(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func TestExportCoversMatchWindow(t *testing.T) {
	a := NewApp(testConfig(100000), zerolog.Nop())
	path := filepath.Join(t.TempDir(), "path.csv")

	if err := a.Export(context.Background(), ExportOptions{Seed: 1, CSVPath: path}); err != nil {
		t.Fatalf("export: %v", err)
	}

	rows := readCSVRows(t, path)
	// Header plus one sample per second of the 3x60s window, inclusive.
	if len(rows) != 182 {
		t.Fatalf("exported %d rows, want 182", len(rows))
	}
	last := rows[len(rows)-1]
	if last[0] != "180" {
		t.Fatalf("last sample at elapsed %s, want 180", last[0])
	}
}

func TestExportHonoursDataPointCap(t *testing.T) {
	a := NewApp(testConfig(10), zerolog.Nop())
	path := filepath.Join(t.TempDir(), "path.csv")

	if err := a.Export(context.Background(), ExportOptions{Seed: 1, CSVPath: path}); err != nil {
		t.Fatalf("export: %v", err)
	}

	rows := readCSVRows(t, path)
	if len(rows) != 11 {
		t.Fatalf("exported %d rows with a 10 point cap, want 11 including header", len(rows))
	}
}

func TestExportRequiresAnOutput(t *testing.T) {
	a := NewApp(testConfig(100), zerolog.Nop())
	if err := a.Export(context.Background(), ExportOptions{Seed: 1}); err == nil {
		t.Fatal("export with no output path succeeded")
	}
}
