// Package app wires the contract-assistant subcommands.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kart-io/contract-assistant/cmd/contract-assistant/app/options"
	"github.com/kart-io/contract-assistant/internal/model"
	ragsvc "github.com/kart-io/contract-assistant/internal/rag"
	"github.com/kart-io/contract-assistant/internal/pkg/rag/textutil"
	"github.com/kart-io/contract-assistant/pkg/infra/app"
)

const commandDesc = `Contract assistant answers questions about contract documents.

It ingests PDF, TXT, DOCX and HTML files into a persisted vector index,
then answers questions with retrieval augmented generation and cites the
source file and page of every answer.`

// NewApp creates the contract-assistant application.
func NewApp() *app.App {
	ingestOpts := options.NewIngestOptions()
	serveOpts := options.NewServeOptions()
	uiOpts := options.NewUIOptions()
	evalOpts := options.NewEvaluateOptions()

	return app.NewApp(
		app.WithName(ragsvc.Name),
		app.WithShortDescription("Contract document question answering"),
		app.WithDescription(commandDesc),
		app.WithCommands(
			app.NewCommand("ingest", "Load documents and build the vector index", ingestOpts, runIngest(ingestOpts)),
			app.NewCommand("serve", "Run the HTTP API server", serveOpts, runServe(serveOpts.Config)),
			app.NewCommand("ui", "Run the web chat UI", uiOpts, runServe(uiOpts.Config)),
			app.NewCommand("evaluate", "Score answers against keyword cases", evalOpts, runEvaluate(evalOpts)),
		),
	)
}

func runIngest(opts *options.IngestOptions) app.RunFunc {
	return func() error {
		ctx := setupSignalContext()

		rt, err := opts.Config().Build(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close(context.Background()) }()

		fmt.Printf("Ingesting %d file(s)...\n", len(opts.Files))
		report, err := rt.Service.Ingest(ctx, opts.Files)
		if err != nil {
			return err
		}
		printIngestReport(os.Stdout, report, opts.IndexOptions.Path)
		return nil
	}
}

func runServe(config func() *ragsvc.Config) app.RunFunc {
	return func() error {
		ctx := setupSignalContext()

		server, err := config().NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}

func runEvaluate(opts *options.EvaluateOptions) app.RunFunc {
	return func() error {
		ctx := setupSignalContext()

		rt, err := opts.Config().Build(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close(context.Background()) }()

		fmt.Println("Running evaluation...")
		report, err := rt.Service.Evaluate(ctx, rt.Cases)
		if err != nil {
			return err
		}
		printEvaluationReport(os.Stdout, report, opts.RAGOptions.AnswerPreview)
		return nil
	}
}

func printIngestReport(w io.Writer, report *model.IngestReport, indexPath string) {
	for _, f := range report.Failed {
		fmt.Fprintf(w, "  skipped %s: %s\n", filepath.Base(f.Path), f.Error)
	}
	fmt.Fprintf(w, "Loaded %d/%d file(s), %d chunk(s) embedded with %s (dim %d) in %s.\n",
		report.Loaded, report.Files, report.Chunks, report.Model, report.Dimension, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Ingestion complete. Index %s saved to %s\n", report.IndexID, indexPath)
}

func printEvaluationReport(w io.Writer, report *model.EvaluationReport, preview int) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Evaluation Results: %d/%d passed (%.1f%%)\n", report.Passed, report.Total, report.Score*100)
	fmt.Fprintln(w, rule)

	for _, r := range report.Results {
		status := "FAIL"
		if r.Passed {
			status = "PASS"
		}
		fmt.Fprintf(w, "\n[%s] Q: %s\n", status, r.Question)
		fmt.Fprintf(w, "A: %s\n", textutil.Ellipsis(r.Answer, preview))
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
