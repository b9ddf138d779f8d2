// Command seed-catalog loads a local product CSV straight into the catalog
// tables, bypassing the upload bucket and the queue. Rows go through the same
// parse and validation rules as the import pipeline; no product.created
// events are published.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
	"github.com/yashrajoria/catalog-import/services/common/logger"
	importsvc "github.com/yashrajoria/catalog-import/services/import-service/services"
	"github.com/yashrajoria/catalog-import/services/product-service/repository"
	catalogsvc "github.com/yashrajoria/catalog-import/services/product-service/services"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type summary struct {
	created int
	skipped int
	failed  int
}

func main() {
	_ = godotenv.Load()

	var file, productsTable, stocksTable string
	var dryRun bool
	flag.StringVar(&file, "file", "", "CSV file to load")
	flag.StringVar(&productsTable, "products-table", envOr("DDB_TABLE_PRODUCTS", "products"), "DynamoDB products table")
	flag.StringVar(&stocksTable, "stocks-table", envOr("DDB_TABLE_STOCKS", "stocks"), "DynamoDB stocks table")
	flag.BoolVar(&dryRun, "dry-run", false, "validate rows without writing")
	flag.Parse()

	log, err := logger.New(envOr("ENV", "development"), nil)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if file == "" {
		log.Fatal("-file is required")
	}
	f, err := os.Open(file)
	if err != nil {
		log.Fatal("open csv", zap.Error(err))
	}
	defer f.Close()

	ctx := context.Background()
	var writer *catalogsvc.CommitWriter
	if !dryRun {
		awsCfg, err := awspkg.LoadAWSConfig(ctx, awspkg.SettingsFromEnv())
		if err != nil {
			log.Fatal("aws config", zap.Error(err))
		}
		repo := repository.NewDynamoCatalogRepository(awspkg.NewDynamoDBClient(awsCfg), productsTable, stocksTable)
		if err := repo.EnsureTables(ctx); err != nil {
			log.Fatal("ensure tables", zap.Error(err))
		}
		writer = catalogsvc.NewCommitWriter(repo)
	}

	s, err := seed(ctx, f, writer, log)
	log.Info("seed finished",
		zap.Int("created", s.created),
		zap.Int("skipped", s.skipped),
		zap.Int("failed", s.failed))
	if err != nil {
		log.Fatal("seed aborted", zap.Error(err))
	}
	fmt.Printf("Seed complete. created=%d skipped=%d failed=%d\n", s.created, s.skipped, s.failed)
}

// seed runs every CSV row through parse, validate and commit. writer nil
// means validate only.
func seed(ctx context.Context, src io.Reader, writer *catalogsvc.CommitWriter, log *zap.Logger) (summary, error) {
	var s summary
	batcher := importsvc.NewRecordBatcher(src, importsvc.BatchSize)
	for {
		batch, err := batcher.Next()
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		if err != nil {
			return s, err
		}

		for i, row := range batch.Rows {
			line := batch.Offset + i
			body, err := json.Marshal(row)
			if err != nil {
				return s, err
			}
			parsed := catalogsvc.ParseCandidate(body)
			if !parsed.Ok() {
				s.skipped++
				log.Warn("skipping row", zap.Int("row", line), zap.String("reason", parsed.Reason))
				continue
			}
			product, err := catalogsvc.ValidateCandidate(parsed.Candidate)
			if err != nil {
				s.skipped++
				log.Warn("skipping row", zap.Int("row", line), zap.Error(err))
				continue
			}
			if writer == nil {
				s.created++
				continue
			}
			created, err := writer.Commit(ctx, product)
			if err != nil {
				s.failed++
				log.Error("failed to write product", zap.Int("row", line), zap.Error(err))
				continue
			}
			s.created++
			if s.created%100 == 0 {
				log.Info("seeded products", zap.Int("created", s.created), zap.String("last_id", created.ID.String()))
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
