// Command dxfcrop crops DXF files to a clip polygon from the command line.
//
//	dxfcrop -clip "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))" [-out dir] [-jobs N] file.dxf...
//
// Each input is written as cropped_<name> next to the input, or into -out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/dxfcropmcp/pkg/core"
	"github.com/NERVsystems/dxfcropmcp/pkg/crop"
	"github.com/NERVsystems/dxfcropmcp/pkg/tools"
	"github.com/NERVsystems/dxfcropmcp/pkg/tracing"
	ver "github.com/NERVsystems/dxfcropmcp/pkg/version"
)

var (
	// errFailed reports that at least one file could not be cropped.
	errFailed = errors.New("some files failed")
	// errOutputCollision reports two inputs that would write the same file.
	errOutputCollision = errors.New("inputs share an output path")
)

type options struct {
	clip     string
	outDir   string
	jobs     int
	maxBytes int
	files    []string
}

func parseFlags(args []string, stderr io.Writer) (options, bool, error) {
	fs := flag.NewFlagSet("dxfcrop", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	var debug, showVersion bool
	fs.StringVar(&opts.clip, "clip", os.Getenv("DXFCROP_CLIP"), "Clip polygon as WKT, e.g. \"POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))\"")
	fs.StringVar(&opts.outDir, "out", "", "Output directory (defaults to each input's directory)")
	fs.IntVar(&opts.jobs, "jobs", runtime.GOMAXPROCS(0), "Files cropped concurrently")
	fs.IntVar(&opts.maxBytes, "max-document-bytes", -1, "Skip files larger than this many bytes (negative disables)")
	fs.BoolVar(&debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&showVersion, "version", false, "Display version information")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: dxfcrop -clip WKT [-out dir] [-jobs N] file.dxf...")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, false, err
	}
	if showVersion {
		fmt.Fprintln(stderr, ver.String())
		return opts, true, nil
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if os.Getenv("LOG_FORMAT") == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(stderr, handlerOpts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(stderr, handlerOpts)))
	}

	opts.files = fs.Args()
	if opts.clip == "" {
		fs.Usage()
		return opts, false, fmt.Errorf("-clip is required")
	}
	if len(opts.files) == 0 {
		fs.Usage()
		return opts, false, fmt.Errorf("no input files")
	}
	if opts.jobs < 1 {
		opts.jobs = 1
	}
	return opts, false, nil
}

func main() {
	_ = godotenv.Load()

	opts, done, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if done {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err == nil {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	if err := run(ctx, opts, slog.Default()); err != nil {
		slog.Error("crop failed", "error", err)
		os.Exit(1)
	}
}

// run crops every file. A bad clip polygon stops everything before any
// file is read; a bad file is logged and the rest continue.
func run(ctx context.Context, opts options, logger *slog.Logger) error {
	if _, err := crop.ClipPolygon(opts.clip); err != nil {
		return err
	}
	if err := checkOutputs(opts); err != nil {
		return err
	}
	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0750); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs)

	results := make([]error, len(opts.files))
	for i, path := range opts.files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = err
				return err
			}
			out, err := cropFile(ctx, path, opts)
			results[i] = err
			if err != nil {
				logger.Error("file not cropped", "file", path, "error", err)
				return nil
			}
			logger.Info("file cropped", "file", path, "output", out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, err := range results {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errFailed, failed, len(opts.files))
	}
	return nil
}

// outputPath is where the cropped copy of path is written.
func outputPath(path string, opts options) string {
	dir := opts.outDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	return filepath.Join(dir, crop.OutputName(filepath.Base(path)))
}

// checkOutputs rejects inputs that would overwrite each other's output.
func checkOutputs(opts options) error {
	seen := make(map[string]string, len(opts.files))
	for _, path := range opts.files {
		out := outputPath(path, opts)
		if prev, ok := seen[out]; ok {
			return fmt.Errorf("%w: %s and %s both write %s", errOutputCollision, prev, path, out)
		}
		seen[out] = path
	}
	return nil
}

// cropFile crops one file and returns the path written.
func cropFile(ctx context.Context, path string, opts options) (string, error) {
	name := filepath.Base(path)
	if err := crop.CheckFormat(name); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	doc := string(data)
	if err := core.ValidateDocument(doc, opts.maxBytes); err != nil {
		return "", err
	}

	result, err := tools.CropDocument(ctx, tools.SourceCLI, doc, opts.clip)
	if err != nil {
		return "", err
	}

	out := outputPath(path, opts)
	if err := os.WriteFile(out, []byte(result.Document), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", out, err)
	}

	slog.Debug("crop stats",
		"file", path,
		"entities", result.Stats.Entities,
		"kept", result.Stats.Kept,
		"removed", result.Stats.Removed)
	return out, nil
}
