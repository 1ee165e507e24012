// chunkcat writes a byte range of a chunked segment to stdout.
//
// The segment is read from a local directory, S3 or a MinIO server. Only the
// chunks that intersect the range are fetched; compressed chunks are decoded
// on the fly.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/hupe1980/chunkstream"
	"github.com/hupe1980/chunkstream/fetch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath       string
	store            storeConfig
	from             int64
	to               int64
	cacheDefaultSize string
	diskCacheDir     string
	readAhead        int
	prefetch         bool
	maxFetches       int64
	ioLimit          string
	logLevel         string
	stats            bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var f cliFlags

	flagSet := pflag.NewFlagSet("chunkcat", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	flagSet.StringVar(&f.store.Type, "store", "", "store type: local, s3 or minio (default local)")
	flagSet.StringVar(&f.store.Root, "root", "", "root directory of a local store")
	flagSet.StringVar(&f.store.Bucket, "bucket", "", "bucket of an s3 or minio store")
	flagSet.StringVar(&f.store.Prefix, "prefix", "", "key prefix inside the bucket")
	flagSet.StringVar(&f.store.Endpoint, "endpoint", "", "endpoint of a minio or s3-compatible store")
	flagSet.StringVar(&f.store.Region, "region", "", "bucket region")
	flagSet.BoolVar(&f.store.Insecure, "insecure", false, "use plain HTTP for a minio endpoint given as host:port")
	flagSet.Int64Var(&f.from, "from", 0, "first byte of the range")
	flagSet.Int64Var(&f.to, "to", -1, "last byte of the range, inclusive (default: end of segment)")
	flagSet.StringVar(&f.cacheDefaultSize, "cache-default-size", "", `chunk cache size when the config has none, e.g. "64MiB" or "-1"`)
	flagSet.StringVar(&f.diskCacheDir, "disk-cache", "", "directory for a persistent chunk cache")
	flagSet.IntVar(&f.readAhead, "read-ahead", 0, "chunks to fetch ahead of the output")
	flagSet.BoolVar(&f.prefetch, "prefetch", false, "fetch all chunks of the range in parallel before writing")
	flagSet.Int64Var(&f.maxFetches, "max-fetches", 0, "maximum concurrent chunk fetches (0 = unlimited)")
	flagSet.StringVar(&f.ioLimit, "io-limit", "", `store read limit per second, e.g. "50MB"`)
	flagSet.StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	flagSet.BoolVar(&f.stats, "stats", false, "print cache and fetch statistics to stderr")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: chunkcat [flags] <segment>\n\nFlags:\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return errors.New("expected exactly one segment name")
	}
	segment := flagSet.Arg(0)

	fileCfg, err := loadFileConfig(f.configPath)
	if err != nil {
		return err
	}
	mergeStoreConfig(&fileCfg.Store, f.store)
	fileCfg.Store.AccessKey = firstNonEmpty(fileCfg.Store.AccessKey, os.Getenv("MINIO_ACCESS_KEY"))
	fileCfg.Store.SecretKey = firstNonEmpty(fileCfg.Store.SecretKey, os.Getenv("MINIO_SECRET_KEY"))

	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	logger := chunkstream.NewLogger(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	opts, err := clientOptions(f, fileCfg)
	if err != nil {
		return err
	}
	metrics := &chunkstream.BasicMetricsCollector{}
	opts = append(opts, chunkstream.WithLogger(logger), chunkstream.WithMetricsCollector(metrics))

	store, err := openStore(ctx, fileCfg.Store)
	if err != nil {
		return err
	}

	client, err := chunkstream.New(store, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	to := f.to
	if to < 0 {
		// Ends past the segment are clamped to its last byte.
		to = math.MaxInt64
	}
	r, err := fetch.NewRange(f.from, to)
	if err != nil {
		return err
	}

	if f.prefetch {
		if err := client.Prefetch(ctx, segment, r); err != nil {
			return err
		}
	}

	rc, err := client.ReadRange(ctx, segment, r)
	if err != nil {
		return err
	}
	n, copyErr := io.Copy(stdout, rc)
	closeErr := rc.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return err
	}

	if f.stats {
		printStats(stderr, n, metrics, client)
	}
	return nil
}

func clientOptions(f cliFlags, fileCfg fileConfig) ([]chunkstream.Option, error) {
	var opts []chunkstream.Option

	memCfg, ok, err := cacheConfig(fileCfg.Cache, f.cacheDefaultSize)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if ok {
		opts = append(opts, chunkstream.WithCache(memCfg))
	}

	dir, bounds := diskCacheDir(fileCfg.DiskCache)
	dir = firstNonEmpty(f.diskCacheDir, dir)
	if dir != "" {
		// Disk caches default to unbounded size.
		diskCfg, _, err := cacheConfig(bounds, "-1")
		if err != nil {
			return nil, fmt.Errorf("disk_cache: %w", err)
		}
		opts = append(opts, chunkstream.WithDiskCache(dir, diskCfg))
	}

	readAhead := fileCfg.ReadAhead
	if f.readAhead > 0 {
		readAhead = f.readAhead
	}
	if readAhead > 0 {
		opts = append(opts, chunkstream.WithReadAhead(readAhead))
	}

	limits := chunkstream.ResourceLimits{MaxConcurrentFetches: f.maxFetches}
	if f.ioLimit != "" {
		n, err := humanize.ParseBytes(f.ioLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid --io-limit: %w", err)
		}
		limits.IOBytesPerSec = int64(n)
	}
	opts = append(opts, chunkstream.WithResourceLimits(limits))

	return opts, nil
}

func printStats(w io.Writer, written int64, metrics *chunkstream.BasicMetricsCollector, client *chunkstream.Client) {
	s := metrics.GetStats()
	fmt.Fprintf(w, "wrote %s, %d chunk fetches (%d failed)\n",
		humanize.IBytes(uint64(written)), s.ChunkFetchCount, s.ChunkFetchErrors)
	if cs, ok := client.CacheStats(); ok {
		fmt.Fprintf(w, "cache: %d entries, %s, hit ratio %.2f\n",
			cs.Entries, humanize.IBytes(uint64(cs.Size)), cs.HitRatio())
	}
}

func mergeStoreConfig(dst *storeConfig, flags storeConfig) {
	dst.Type = firstNonEmpty(flags.Type, dst.Type)
	dst.Root = firstNonEmpty(flags.Root, dst.Root)
	dst.Bucket = firstNonEmpty(flags.Bucket, dst.Bucket)
	dst.Prefix = firstNonEmpty(flags.Prefix, dst.Prefix)
	dst.Endpoint = firstNonEmpty(flags.Endpoint, dst.Endpoint)
	dst.Region = firstNonEmpty(flags.Region, dst.Region)
	dst.Insecure = dst.Insecure || flags.Insecure
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
