package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/autoventa/dealerbot/internal/catalog"
	"github.com/autoventa/dealerbot/internal/config"
	"github.com/autoventa/dealerbot/internal/knowledge"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load catalog CSVs and knowledge documents into Postgres",
	RunE:  runIngest,
}

var (
	ingestCarsPath      string
	ingestKnowledgePath string
	ingestURL           string
)

func init() {
	ingestCmd.Flags().StringVar(&ingestCarsPath, "cars", "", "CSV file with catalog rows")
	ingestCmd.Flags().StringVar(&ingestKnowledgePath, "knowledge", "", "Text file to embed into the knowledge base")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "Web page to scrape into the knowledge base")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestCarsPath == "" && ingestKnowledgePath == "" && ingestURL == "" {
		return errors.New("nothing to do: pass --cars, --knowledge and/or --url")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url (or DATABASE_URL) is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	if ingestCarsPath != "" {
		n, err := ingestCars(ctx, pool, ingestCarsPath)
		if err != nil {
			return fmt.Errorf("ingesting cars: %w", err)
		}
		fmt.Printf("Inserted %d cars from %s\n", n, ingestCarsPath)
	}

	if ingestKnowledgePath != "" || ingestURL != "" {
		embedder := knowledge.NewHTTPEmbedder(knowledge.EmbedderConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.EmbeddingModel,
		})
		kb := knowledge.NewStore(pool, embedder)

		if ingestKnowledgePath != "" {
			data, err := os.ReadFile(ingestKnowledgePath)
			if err != nil {
				return err
			}
			chunks, err := kb.IngestText(ctx, string(data), ingestKnowledgePath)
			if err != nil {
				return fmt.Errorf("ingesting knowledge: %w", err)
			}
			fmt.Printf("Embedded %d chunks from %s\n", chunks, ingestKnowledgePath)
		}

		if ingestURL != "" {
			chunks, err := kb.IngestURL(ctx, ingestURL)
			if err != nil {
				return fmt.Errorf("scraping %s: %w", ingestURL, err)
			}
			fmt.Printf("Embedded %d chunks from %s\n", chunks, ingestURL)
		}
	}

	return nil
}

// ingestCars reads a header-keyed CSV (stock_id, km, price, make, model,
// year, version, bluetooth, car_play, largo, ancho, altura) and bulk-inserts
// the rows.
func ingestCars(ctx context.Context, pool *pgxpool.Pool, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"stock_id", "make", "model", "year", "price"} {
		if _, ok := col[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var cars []catalog.Car
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}

		year, err := strconv.Atoi(field(row, "year"))
		if err != nil {
			return 0, fmt.Errorf("line %d: bad year: %w", line, err)
		}
		price, err := strconv.ParseFloat(field(row, "price"), 64)
		if err != nil {
			return 0, fmt.Errorf("line %d: bad price: %w", line, err)
		}
		km, _ := strconv.Atoi(field(row, "km"))

		car := catalog.Car{
			StockID:   field(row, "stock_id"),
			Make:      catalog.NormalizeBrand(field(row, "make")),
			Model:     catalog.NormalizeText(field(row, "model")),
			Year:      year,
			Price:     price,
			KM:        km,
			Version:   field(row, "version"),
			Bluetooth: parseSiNo(field(row, "bluetooth")),
			CarPlay:   parseSiNo(field(row, "car_play")),
		}
		car.Length = parseDimension(field(row, "largo"))
		car.Width = parseDimension(field(row, "ancho"))
		car.Height = parseDimension(field(row, "altura"))
		cars = append(cars, car)
	}

	repo := catalog.NewRepository(pool)
	return repo.CreateBulk(ctx, cars)
}

// parseSiNo accepts the Spanish-language flags the dealership exports use.
func parseSiNo(s string) bool {
	switch strings.ToLower(s) {
	case "sí", "si", "yes", "true", "1":
		return true
	default:
		return false
	}
}

func parseDimension(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
