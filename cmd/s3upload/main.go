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
	"strings"
	"syscall"
	"time"

	"github.com/tendant/simple-upload/pkg/s3upload"
	"github.com/tendant/simple-upload/pkg/s3upload/config"
)

// headerFlags collects repeated -header Name:Value flags
type headerFlags []s3upload.Header

func (h *headerFlags) String() string {
	parts := make([]string, 0, len(*h))
	for _, hdr := range *h {
		parts = append(parts, hdr.Name+":"+hdr.Value)
	}
	return strings.Join(parts, ",")
}

func (h *headerFlags) Set(v string) error {
	name, value, ok := strings.Cut(v, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header must be Name:Value, got %q", v)
	}
	*h = append(*h, s3upload.Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	return nil
}

func main() {
	filePath := flag.String("file", "", "File to upload, or - for stdin")
	objectKey := flag.String("key", "", "Object key (defaults to the file name)")
	contentType := flag.String("content-type", "", "Content type (resolved from the name when empty)")
	useGzip := flag.Bool("gzip", false, "Compress the body and send Content-Encoding: gzip (already-gzip files are sent as-is)")
	noCache := flag.Bool("no-cache", false, "Send Cache-Control: no-cache, no-store, must-revalidate")
	permanentCache := flag.Bool("permanent-cache", false, "Send Cache-Control: public, max-age=315360000")
	reducedRedundancy := flag.Bool("reduced-redundancy", false, "Store with REDUCED_REDUNDANCY")
	insecure := flag.Bool("insecure", false, "Use http instead of https")
	bucket := flag.String("bucket", "", "Bucket name (overrides S3UPLOAD_BUCKET)")
	endpoint := flag.String("endpoint", "", "Service host, e.g. localhost:9000 (overrides S3UPLOAD_ENDPOINT)")
	pathStyle := flag.Bool("path-style", false, "Use path-style addressing")
	showProgress := flag.Bool("progress", false, "Print upload progress to stderr")
	verbose := flag.Bool("v", false, "Debug logging")
	var headers headerFlags
	flag.Var(&headers, "header", "Extra request header Name:Value (repeatable)")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		flag.Usage()
		os.Exit(2)
	}
	if *objectKey == "" {
		if *filePath == "-" {
			fmt.Fprintln(os.Stderr, "-key is required when reading stdin")
			os.Exit(2)
		}
		*objectKey = baseName(*filePath)
	}

	opts := []config.Option{config.WithEnv()}
	if *bucket != "" {
		opts = append(opts, config.WithBucket(*bucket))
	}
	if *endpoint != "" {
		opts = append(opts, config.WithEndpoint(*endpoint))
	}
	if *pathStyle {
		opts = append(opts, config.WithPathStyle(true))
	}
	if *insecure {
		opts = append(opts, config.WithSecure(false))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var clientOpts []s3upload.Option
	clientOpts = append(clientOpts, s3upload.WithLogger(logger))
	if *showProgress {
		clientOpts = append(clientOpts, s3upload.WithProgress(func(sent, total int64) {
			fmt.Fprintf(os.Stderr, "\r%d/%d bytes", sent, total)
			if sent == total {
				fmt.Fprintln(os.Stderr)
			}
		}))
	}

	client, err := cfg.NewClient(ctx, clientOpts...)
	if err != nil {
		slog.Error("Failed to create client", "err", err)
		os.Exit(1)
	}

	uploadOpts := cfg.UploadOptions()
	uploadOpts.DetectGzip = *useGzip
	uploadOpts.NoCache = *noCache
	uploadOpts.PermanentCache = *permanentCache
	uploadOpts.ReducedRedundancy = *reducedRedundancy
	uploadOpts.Headers = headers

	fmt.Printf("Uploading %s to %s/%s...\n", *filePath, cfg.Bucket, *objectKey)
	startTime := time.Now()

	var transfer *s3upload.Transfer
	if *filePath == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			slog.Error("Failed to read stdin", "err", err)
			os.Exit(1)
		}
		transfer = client.UploadData(ctx, data, *objectKey, *contentType, uploadOpts, nil)
	} else if *contentType != "" {
		data, err := os.ReadFile(*filePath)
		if err != nil {
			slog.Error("Failed to read file", "file", *filePath, "err", err)
			os.Exit(1)
		}
		transfer = client.UploadData(ctx, data, *objectKey, *contentType, uploadOpts, nil)
	} else {
		transfer = client.UploadFile(ctx, *filePath, *objectKey, uploadOpts, nil)
	}

	<-transfer.Done()
	if err := transfer.Err(); err != nil {
		switch {
		case errors.Is(err, s3upload.ErrCancelled):
			slog.Warn("Upload cancelled", "key", *objectKey)
		case s3upload.IsServerError(err):
			slog.Error("Upload rejected", "key", *objectKey, "status", s3upload.StatusCode(err), "err", err)
		default:
			slog.Error("Upload failed", "key", *objectKey, "err", err)
		}
		os.Exit(1)
	}
	fmt.Printf("Upload successful (took %v)\n", time.Since(startTime))
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
