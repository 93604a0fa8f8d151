// Command finan-report writes a user's transactions as a spreadsheet or a
// monthly statement as PDF, reading the same database as the server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"finan/internal/cli"
	"finan/internal/config"
	"finan/internal/core"
	"finan/internal/ledger"
	"finan/internal/log"
	"finan/internal/report"
	"finan/internal/storage"
)

const readyTimeout = time.Minute

func main() {
	var (
		user   = flag.String("user", "", "user id or email (required)")
		format = flag.String("format", "xlsx", "output format: xlsx, csv or pdf")
		year   = flag.Int("year", 0, "statement year (pdf only, default current)")
		month  = flag.Int("month", 0, "statement month 1-12 (pdf only, default current)")
		out    = flag.String("out", "-", "output file, - for stdout")
	)
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).ValidateStorage)

	if err := run(cfg, logger, *user, strings.ToLower(*format), *year, *month, *out); err != nil {
		logger.Error("Report failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger, user, format string, year, month int, out string) error {
	if user == "" {
		return errors.New("-user is required")
	}
	if format != "xlsx" && format != "csv" && format != "pdf" {
		return fmt.Errorf("unknown format %q", format)
	}

	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	cli.EnsureSchema(ctx, logger.WithComponent(log.ComponentStorage), repo)

	loc, _ := cfg.Location()
	svc := ledger.New(repo, ledger.WithLogger(logger), ledger.WithLocation(loc))
	defer svc.Wait()

	u, err := resolveUser(ctx, repo, user)
	if err != nil {
		return err
	}

	w, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)

	switch format {
	case "pdf":
		now := time.Now().In(loc)
		if year == 0 {
			year = now.Year()
		}
		if month == 0 {
			month = int(now.Month())
		}
		st, serr := svc.Statement(ctx, u.ID, month, year)
		if serr != nil {
			err = serr
			break
		}
		err = report.WriteStatementPDF(bw, st)
	default:
		rows, lerr := svc.LabeledTransactions(ctx, u.ID)
		if lerr != nil {
			err = lerr
			break
		}
		if format == "csv" {
			err = report.WriteTransactionsCSV(bw, rows)
		} else {
			err = report.WriteTransactionsXLSX(bw, rows)
		}
	}
	if err == nil {
		err = bw.Flush()
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	logger.Info("Report written", log.FieldUserID, u.ID, "format", format, "out", out)
	return nil
}

func resolveUser(ctx context.Context, repo *storage.SQLiteRepository, user string) (core.User, error) {
	if id, err := strconv.ParseInt(user, 10, 64); err == nil {
		return repo.GetUserByID(ctx, id)
	}
	return repo.GetUserByEmail(ctx, core.NormalizeEmail(user))
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
