package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/currency-annotator/internal/annotation"
	"github.com/jonathan/currency-annotator/internal/config"
	"github.com/jonathan/currency-annotator/internal/dom"
	"github.com/jonathan/currency-annotator/internal/fetch"
	"github.com/jonathan/currency-annotator/internal/observability"
	"github.com/jonathan/currency-annotator/internal/ratecache"
	"github.com/jonathan/currency-annotator/internal/session"
	"github.com/jonathan/currency-annotator/internal/settings"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate <url|file>",
	Short: "Annotate the prices of a page",
	Long: `Load an HTML page from a URL or a file, annotate every price with its value
in the configured target currencies, and write the resulting HTML.

Pages are annotated only when their host is enabled (see 'ccx site enable'),
unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnnotate,
}

var (
	annotateOutput  string
	annotateHost    string
	annotateBrowser bool
	annotateForce   bool
	annotateTimeout time.Duration
)

func init() {
	annotateCmd.Flags().StringVarP(&annotateOutput, "out", "o", "", "Path to output HTML file (default stdout)")
	annotateCmd.Flags().StringVar(&annotateHost, "host", "", "Host the page belongs to (default: the URL's host)")
	annotateCmd.Flags().BoolVar(&annotateBrowser, "browser", false, "Render the page in a headless browser")
	annotateCmd.Flags().BoolVar(&annotateForce, "force", false, "Annotate even if the host is not enabled")
	annotateCmd.Flags().DurationVar(&annotateTimeout, "timeout", 2*time.Minute, "Overall timeout")
	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if annotateBrowser {
		cfg.UseBrowser = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), annotateTimeout)
	defer cancel()

	source := args[0]
	markup, host, err := loadPage(ctx, cfg, source)
	if err != nil {
		return err
	}
	if annotateHost != "" {
		host = annotateHost
	}

	doc, err := dom.ParseString(markup, host)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	defer closeStore()

	var (
		mu   sync.Mutex
		last annotation.ScanResult
	)
	sess, err := session.Start(ctx, doc, settings.New(store), ratecache.New(newRateClient(cfg, store), cfg.Verbose), session.Options{
		Locale:      cfg.Locale,
		Concurrency: cfg.Concurrency,
		Selectors:   cfg.Selectors,
		Verbose:     cfg.Verbose,
		OnScan: func(result annotation.ScanResult) {
			mu.Lock()
			last = result
			mu.Unlock()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.Close()

	if !sess.Enabled() {
		if !annotateForce {
			fmt.Fprintf(os.Stderr, "Warning: %s is not enabled; writing the page unchanged (use --force or 'ccx site enable %s').\n", doc.Host(), doc.Host())
		} else {
			sess.Scheduler().SetEnabled(true)
		}
	}

	if err := writeDocument(doc); err != nil {
		return err
	}

	if cfg.Verbose {
		printer := observability.NewPrinter(os.Stderr)
		mu.Lock()
		printer.PrintScanResult(doc.Host(), last)
		mu.Unlock()
		printer.PrintAnnotations(sess.Engine().Annotations())
	}
	return nil
}

// loadPage reads source as a URL when it has an http(s) scheme and as a file
// otherwise. It returns the markup and the page's host.
func loadPage(ctx context.Context, cfg config.Config, source string) (string, string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		parsed, err := url.Parse(source)
		if err != nil {
			return "", "", fmt.Errorf("invalid URL %s: %w", source, err)
		}
		browserOpts := fetch.DefaultBrowserOptions()
		browserOpts.Verbose = cfg.Verbose
		markup, err := fetch.Page(ctx, source, cfg.UseBrowser, nil, browserOpts)
		if err != nil {
			return "", "", fmt.Errorf("failed to load %s: %w", source, err)
		}
		return markup, parsed.Hostname(), nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return "", "", fmt.Errorf("failed to read input file: %w", err)
	}
	return string(data), "", nil
}

func writeDocument(doc *dom.Document) error {
	if annotateOutput == "" {
		return doc.Render(os.Stdout)
	}
	f, err := os.Create(annotateOutput)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := doc.Render(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote annotated page to %s\n", annotateOutput)
	return nil
}
