// Command pricepanel is the verification side of pricewatch: it queries
// the panel API for the current totals, optionally compares them against
// an expected receipt total, and can follow the live update stream.
//
// Usage:
//
//	pricepanel                          # print current totals
//	pricepanel -expected 20.00          # compare against an expected total
//	pricepanel -follow                  # stream updates as they happen
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/anowarzz/pricewatch/panel"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8390", "panel API base URL")
	expected := flag.String("expected", "", "expected receipt total to verify against")
	follow := flag.Bool("follow", false, "stream updates until interrupted")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *addr, *expected, *follow); err != nil {
		logger.Error("pricepanel: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, expected string, follow bool) error {
	client := panel.NewClient(addr)

	if follow {
		return client.Follow(ctx, func(t panel.Totals) {
			printTotals(t, expected)
		})
	}

	t, err := client.GetTotals(ctx)
	if err != nil {
		return err
	}
	printTotals(t, expected)
	return nil
}

func printTotals(t panel.Totals, expected string) {
	enc := json.NewEncoder(os.Stdout)

	if expected == "" {
		enc.Encode(t)
		return
	}

	want, err := strconv.ParseFloat(expected, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -expected value %q\n", expected)
		os.Exit(1)
	}
	current, err := strconv.ParseFloat(t.Sum, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unparseable total %q\n", t.Sum)
		os.Exit(1)
	}

	res := panel.Verify(current, want)
	enc.Encode(struct {
		panel.Totals
		Match      bool    `json:"match"`
		Difference float64 `json:"difference"`
		Report     string  `json:"report"`
	}{t, res.Match, res.Difference, res.Report()})
}
