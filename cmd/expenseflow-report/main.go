// Command expenseflow-report reads and appends transactions through a
// running proxy and renders them in the terminal.
//
//	expenseflow-report list    [-from DD/MM/YYYY] [-to DD/MM/YYYY] [-type T] [-category C]
//	expenseflow-report summary [filters] [-by Expense]
//	expenseflow-report chart   [filters] [-by Expense] -o chart.png
//	expenseflow-report audit
//	expenseflow-report add     -date D -type T -amount A -category C [...]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"expenseflow/internal/cli"
	"expenseflow/internal/client"
	"expenseflow/internal/config"
	"expenseflow/internal/core"
	"expenseflow/internal/log"
	"expenseflow/internal/report"

	"golang.org/x/text/language"
)

const usage = `usage: expenseflow-report <list|summary|chart|audit|add> [flags]

Environment:
  PROXY_URL          proxy endpoint (default http://localhost:8081/)
  CLIENT_CACHE_TTL   list cache lifetime (default 15s)
`

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentReport, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := run(ctx, os.Args[1:], config.Load(), os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			for _, d := range apiErr.Details {
				fmt.Fprintln(os.Stderr, "  -", d)
			}
		}
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				fmt.Fprintln(os.Stderr, "  -", p)
			}
		}
		os.Exit(1)
	}
}

type filterFlags struct {
	from, to, typ, category string
}

func (f *filterFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.from, "from", "", "first date, DD/MM/YYYY")
	fs.StringVar(&f.to, "to", "", "last date, DD/MM/YYYY")
	fs.StringVar(&f.typ, "type", "", "transaction type (Income, Expense or All)")
	fs.StringVar(&f.category, "category", "", "category name or All")
}

func (f *filterFlags) filters() (core.Filters, error) {
	out := core.Filters{Type: core.TransactionType(f.typ), Category: f.category}
	var err error
	if f.from != "" {
		if out.From, err = core.ParseDate(f.from); err != nil {
			return out, fmt.Errorf("-from: %w", err)
		}
	}
	if f.to != "" {
		if out.To, err = core.ParseDate(f.to); err != nil {
			return out, fmt.Errorf("-to: %w", err)
		}
	}
	return out, nil
}

func run(ctx context.Context, args []string, cfg *config.Config, stdout io.Writer, logger *log.Logger) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	lang := fs.String("lang", "en", "locale for amounts (BCP 47 tag)")
	currency := fs.String("currency", "", "currency symbol prefix")
	var ff filterFlags

	var (
		by, output string
		in         core.TransactionInput
		recurring  bool
	)
	switch cmd {
	case "list":
		ff.register(fs)
	case "summary", "chart":
		ff.register(fs)
		fs.StringVar(&by, "by", string(core.Expense), "type aggregated per category, empty for all")
		if cmd == "chart" {
			fs.StringVar(&output, "o", "chart.png", "output PNG file")
		}
	case "audit":
	case "add":
		fs.StringVar(&in.Date, "date", time.Now().Format("02/01/2006"), "date, DD/MM/YYYY")
		fs.StringVar(&in.TransactionType, "type", "", "Income or Expense")
		fs.StringVar(&in.Amount, "amount", "", "amount, > 0")
		fs.StringVar(&in.Category, "category", "", "category")
		fs.StringVar(&in.SubCategory, "subcategory", "", "sub category")
		fs.StringVar(&in.SourceFrom, "from", "", "source of an income")
		fs.StringVar(&in.SpentOnTo, "to", "", "recipient of an expense")
		fs.StringVar(&in.PaymentMode, "payment", "", "payment mode")
		fs.StringVar(&in.AccountName, "account", "", "account name")
		fs.StringVar(&in.Description, "description", "", "free text")
		fs.BoolVar(&recurring, "recurring", false, "recurring transaction")
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	in.IsRecurring = strconv.FormatBool(recurring)

	tag, err := language.Parse(*lang)
	if err != nil {
		return fmt.Errorf("-lang: %w", err)
	}
	r := report.New(stdout, report.WithLanguage(tag), report.WithCurrency(*currency))

	c, err := client.New(cfg.ProxyURL, client.WithCacheTTL(cfg.ClientCacheTTL), client.WithLogger(logger))
	if err != nil {
		return err
	}

	if cmd == "add" {
		if err := c.Add(ctx, in); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Transaction added.")
		return nil
	}

	txs, err := c.List(ctx)
	if err != nil {
		return err
	}

	if cmd == "audit" {
		r.Duplicates(core.DuplicateIDs(txs))
		return nil
	}

	filters, err := ff.filters()
	if err != nil {
		return err
	}
	txs = core.ApplyFilters(txs, filters)

	switch cmd {
	case "list":
		r.Transactions(txs)
	case "summary":
		r.Summary(core.ComputeStats(txs), core.CategoryTotals(txs, core.TransactionType(by)))
	case "chart":
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create chart file: %w", err)
		}
		opts := report.DefaultChartOptions()
		if by != "" {
			opts.Title = by + " by category"
		}
		if err := report.CategoryChart(f, core.CategoryTotals(txs, core.TransactionType(by)), opts); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Chart written to", output)
	}
	return nil
}
