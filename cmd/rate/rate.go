package rate

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/cnbrates/cmd/env"
	"github.com/sig-0/cnbrates/provider/cnb"
	"github.com/sig-0/cnbrates/rates"
	"github.com/sig-0/cnbrates/server/config"
	"github.com/sig-0/cnbrates/storage/types"
)

// rateCfg wraps the rate lookup configuration
type rateCfg struct {
	sourceURL string
	timeout   int
	json      bool
	debug     bool

	out io.Writer
}

// NewRateCmd creates the one-shot rate lookup command, printing to out
func NewRateCmd(out io.Writer) *ffcli.Command {
	cfg := &rateCfg{
		out: out,
	}

	fs := flag.NewFlagSet("rate", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "rate",
		ShortUsage: "rate [flags] <YYYY-MM-DD> <currency>",
		LongHelp:   "Resolves the CZK rate per single unit of the currency, on or before the date",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *rateCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.sourceURL,
		"source-url",
		config.DefaultSourceURL,
		"the base URL of the CNB exchange rate fixing feeds",
	)

	fs.IntVar(
		&c.timeout,
		"timeout",
		config.DefaultTimeout,
		"the CNB feed request timeout, in seconds",
	)

	fs.BoolVar(
		&c.json,
		"json",
		false,
		"flag indicating if the result should be printed as JSON",
	)

	fs.BoolVar(
		&c.debug,
		"debug",
		false,
		"flag indicating if debug logs should be enabled",
	)
}

// exec executes the rate command
func (c *rateCfg) exec(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return flag.ErrHelp
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if c.debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	client, err := cnb.NewClient(c.sourceURL, time.Duration(c.timeout)*time.Second)
	if err != nil {
		return fmt.Errorf("unable to create CNB client, %w", err)
	}

	service := rates.New(client, rates.WithLogger(logger))

	quote, err := service.Resolve(
		ctx,
		args[0],
		types.Currency(strings.ToUpper(args[1])),
	)
	if err != nil {
		return err
	}

	return c.print(quote)
}

func (c *rateCfg) print(quote *types.Quote) error {
	if c.json {
		encoder := json.NewEncoder(c.out)
		encoder.SetIndent("", "  ")

		return encoder.Encode(quote)
	}

	_, err := fmt.Fprintf(
		c.out,
		"%s %s: %g CZK (effective %s)\n",
		quote.Currency,
		quote.RequestedDate,
		quote.Rate,
		quote.EffectiveDate,
	)

	return err
}
