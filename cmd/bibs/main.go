// cmd/bibs/main.go
// Generates the bib numbers of one race. With -dry-run the planned numbers are
// printed and nothing is written.
//
// Usage:
//
//	go run ./cmd/bibs -race 6f1c... [-dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/raceops/bib"
	"github.com/padraicbc/raceops/config"
	bundb "github.com/padraicbc/raceops/db"
	applog "github.com/padraicbc/raceops/logger"
	"github.com/padraicbc/raceops/store"
)

func main() {
	raceID := flag.String("race", "", "race id (required)")
	dryRun := flag.Bool("dry-run", false, "print the plan without assigning")
	flag.Parse()
	if *raceID == "" {
		log.Fatal("-race is required")
	}

	cfg := config.LoadDB()
	logger, err := applog.New(cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := bundb.Setup(ctx, cfg)
	if err != nil {
		logger.Fatal("database setup failed", zap.Error(err))
	}
	defer db.Close()
	gen := bib.NewGenerator(store.NewBunStore(db), logger, bib.WithRetries(cfg.TxRetries, 100*time.Millisecond))

	if *dryRun {
		if err := printPlan(ctx, gen, *raceID); err != nil {
			logger.Fatal("plan failed", zap.Error(err))
		}
		return
	}

	res, err := gen.Generate(ctx, *raceID)
	if err != nil {
		logger.Fatal("generate failed", zap.Error(err))
	}
	fmt.Printf("%d bibs assigned\n", res.Assigned)
	for modality, n := range res.PerModality {
		fmt.Printf("  %-10s %d\n", modality, n)
	}
}

func printPlan(ctx context.Context, gen *bib.Generator, raceID string) error {
	plan, err := gen.Preview(ctx, raceID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODALIDADE\tNÚMERO\tNOME")
	for _, a := range plan {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Modality, a.Bib, a.FullName)
	}
	return w.Flush()
}
