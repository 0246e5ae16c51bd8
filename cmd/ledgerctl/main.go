// Command ledgerctl exports and verifies the audit ledger outside the server.
//
//	ledgerctl export [-out file | -s3-bucket b] [-from seq] [-intent id]
//	ledgerctl verify [-file export.jsonl]
//
// Online commands read LEDGER_BACKEND, SQLITE_PATH and DATABASE_URL from the
// environment, as the server does.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"payguard/internal/ledger"
	"payguard/internal/ledger/export"
	"payguard/internal/platform/config"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  export   write the ledger as JSON Lines to a file, stdout or S3
  verify   check the hash chain, online or against an export file
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "export":
		err = runExport(ctx, os.Args[2:], os.Stdout)
	case "verify":
		err = runVerify(ctx, os.Args[2:], os.Stdout)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if errors.Is(err, errBrokenChain) {
		os.Exit(3)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerctl %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

var errBrokenChain = errors.New("ledger chain is broken")

func runExport(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", "-", "output file, - for stdout")
	from := fs.Uint64("from", 0, "first sequence to export")
	intentID := fs.String("intent", "", "only entries for this intent")
	var s3cfg export.S3Config
	fs.StringVar(&s3cfg.Bucket, "s3-bucket", "", "upload to this bucket instead of writing a file")
	fs.StringVar(&s3cfg.Region, "s3-region", "us-east-1", "bucket region")
	fs.StringVar(&s3cfg.Endpoint, "s3-endpoint", "", "custom endpoint, for MinIO or LocalStack")
	fs.StringVar(&s3cfg.Prefix, "s3-prefix", "ledger/", "object key prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, closeDB, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeDB()
	entries := svc.Read(ctx, ledger.Filter{IntentID: *intentID, FromSequence: *from})

	var sum export.Summary
	switch {
	case s3cfg.Bucket != "":
		client, err := export.NewS3Client(ctx, s3cfg)
		if err != nil {
			return err
		}
		name := "ledger-" + time.Now().UTC().Format("20060102T150405Z") + ".jsonl"
		if sum, err = export.ToS3(ctx, client, s3cfg, name, entries); err != nil {
			return err
		}
	case *out == "-":
		if sum, err = export.WriteJSONL(stdout, entries); err != nil {
			return err
		}
		return nil
	default:
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		if sum, err = export.WriteJSONL(f, entries); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		sum.Location = *out
	}
	fmt.Fprintf(stdout, "exported %d entries through sequence %d to %s (sha256 %s)\n",
		sum.Entries, sum.LastSeq, sum.Location, sum.SHA256)
	return nil
}

func runVerify(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	file := fs.String("file", "", "verify a JSON Lines export instead of the live ledger")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		report ledger.ChainReport
		err    error
	)
	if *file != "" {
		f, openErr := os.Open(*file)
		if openErr != nil {
			return openErr
		}
		defer f.Close()
		report, err = ledger.Verify(export.ReadJSONL(f))
	} else {
		svc, closeDB, openErr := openLedger(ctx)
		if openErr != nil {
			return openErr
		}
		defer closeDB()
		report, err = svc.VerifyChain(ctx)
	}
	if err != nil {
		return err
	}

	if !report.Valid {
		fmt.Fprintf(stdout, "BROKEN at sequence %d after %d entries: %s\n", report.BrokenAt, report.Checked, report.Reason)
		return errBrokenChain
	}
	fmt.Fprintf(stdout, "ok: %d entries verified\n", report.Checked)
	return nil
}

// openLedger opens the configured durable backend read-write; export and
// verify only read from it.
func openLedger(ctx context.Context) (*ledger.Service, func(), error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}

	var (
		store *ledger.SQLStore
		db    *sql.DB
	)
	switch cfg.Ledger.Backend {
	case config.LedgerSQLite:
		store, db, err = ledger.OpenSQLite(ctx, cfg.Ledger.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
	case config.LedgerPostgres:
		db, err = sql.Open("postgres", cfg.Ledger.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store = ledger.NewPostgresStore(db)
	default:
		return nil, nil, fmt.Errorf("ledger backend %q has nothing to read", cfg.Ledger.Backend)
	}

	svc, err := ledger.New(store)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return svc, func() { _ = db.Close() }, nil
}
