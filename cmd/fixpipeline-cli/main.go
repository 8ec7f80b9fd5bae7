// Command fixpipeline-cli inspects persisted FixPipelineRun provenance
// artifacts, for operators debugging a run after the fact.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/itchyny/gojq"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/relayci/fixpipeline/internal/config"
	"github.com/relayci/fixpipeline/pkg/provenance"
	"github.com/relayci/fixpipeline/pkg/runstore"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "query" {
		usage()
		os.Exit(1)
	}

	fs := pflag.NewFlagSet("query", pflag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	runID := fs.String("run-id", "", "FixPipelineRun id to load (required)")
	jqExpr := fs.String("query", ".", "gojq expression applied to the provenance artifact")
	_ = fs.Parse(os.Args[2:])

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "fixpipeline-cli: --run-id is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixpipeline-cli: loading config: %v\n", err)
		os.Exit(1)
	}

	db, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixpipeline-cli: opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	store := runstore.NewStore(sqlx.NewDb(db, "pgx"), zap.NewNop())

	artifact, found, err := store.GetArtifact(context.Background(), *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixpipeline-cli: loading artifact: %v\n", err)
		os.Exit(1)
	}
	if !found {
		fmt.Fprintf(os.Stderr, "fixpipeline-cli: no provenance artifact found for run %q\n", *runID)
		os.Exit(1)
	}

	if err := runQuery(os.Stdout, artifact, *jqExpr); err != nil {
		fmt.Fprintf(os.Stderr, "fixpipeline-cli: %v\n", err)
		os.Exit(1)
	}
}

// runQuery renders artifact through pretty-printed JSON when expr is the
// identity filter, and through gojq otherwise, so the common "just show
// me the artifact" path doesn't pay gojq's overhead.
func runQuery(w *os.File, artifact provenance.Artifact, expr string) error {
	if expr == "." {
		pretty, err := provenance.PrettyJSON(artifact)
		if err != nil {
			return fmt.Errorf("rendering artifact: %w", err)
		}
		_, err = w.Write(append(pretty, '\n'))
		return err
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("parsing query %q: %w", expr, err)
	}

	raw, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("decoding artifact: %w", err)
	}

	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := v.(error); ok {
			return fmt.Errorf("evaluating query: %w", err)
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		fmt.Fprintln(w, string(out))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  fixpipeline-cli query --config <config.yaml> --run-id <id> [--query <gojq expr>]")
}
