// vamdeps resolves the asset references of a VaM content library and prints
// the trimmed dependency list of every package and scene in TOON format.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/phobologic/vamdeps/internal/config"
	"github.com/phobologic/vamdeps/internal/discover"
	"github.com/phobologic/vamdeps/internal/hashcache"
	"github.com/phobologic/vamdeps/internal/logger"
	"github.com/phobologic/vamdeps/internal/metrics"
	"github.com/phobologic/vamdeps/internal/model"
	"github.com/phobologic/vamdeps/internal/parse"
	"github.com/phobologic/vamdeps/internal/profile"
	"github.com/phobologic/vamdeps/internal/resolve"
	"github.com/phobologic/vamdeps/internal/toon"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	cfg := config.Load(os.Getenv)

	fs := flag.NewFlagSet("vamdeps", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		selectList  = strings.Join(cfg.Select, ",")
		ignoredList = strings.Join(cfg.Ignored, ",")
		showVersion bool
	)

	fs.StringVar(&cfg.VamDir, "vam-dir", cfg.VamDir, "application directory (primary root)")
	fs.StringVar(&cfg.RepoDir, "repo-dir", cfg.RepoDir, "additional content repository (secondary root)")
	fs.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "scan cache file path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error, disabled")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "human-readable console logs")
	fs.IntVar(&cfg.Workers, "j", cfg.Workers, "worker goroutines (0 = GOMAXPROCS)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker goroutines (0 = GOMAXPROCS)")
	fs.StringVar(&selectList, "s", selectList, "comma-separated package or file name fragments to prefer and report")
	fs.StringVar(&selectList, "select", selectList, "comma-separated package or file name fragments to prefer and report")
	fs.StringVar(&ignoredList, "ignore-morphs", ignoredList, "comma-separated morph names never matched")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write Prometheus metrics to this file")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "vamdeps %s\n", version)
		return nil
	}

	if fs.NArg() > 0 {
		cfg.VamDir = fs.Arg(0)
	}
	cfg.Select = config.SplitList(selectList)
	cfg.Ignored = config.SplitList(ignoredList)

	if err := cfg.Validate(); err != nil {
		return err
	}

	vamDir, err := checkDir(cfg.VamDir)
	if err != nil {
		return err
	}
	var repoDir string
	if cfg.RepoDir != "" {
		if repoDir, err = checkDir(cfg.RepoDir); err != nil {
			return err
		}
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: stderr,
		RunID:  uuid.NewString(),
	})
	m := metrics.New()

	// Scan files
	start := time.Now()
	free, packages, err := scan(log, vamDir, repoDir)
	if err != nil {
		return err
	}
	m.SetFilesScanned("free", len(free))
	m.SetFilesScanned("package", len(packages))
	m.ObservePhase("scan", time.Since(start))
	logger.LogPhase(log, "scan", time.Since(start), len(free)+len(packages), nil)

	// Identities, from the cache where unchanged
	loadIdentities(log, cfg.CachePath, free)

	// Parse documents concurrently
	start = time.Now()
	docs := parseDocumentsConcurrent(free, packages, cfg.Workers, logger.Component(log, "parse"))
	m.ObservePhase("parse", time.Since(start))
	logger.LogPhase(log, "parse", time.Since(start), len(docs), nil)

	sel := profile.Select(packages, free, cfg.Select)

	// Resolve references
	uuids := resolve.NewUUIDResolver(
		resolve.WithLogger(logger.Component(log, "resolve")),
		resolve.WithMetrics(m),
		resolve.WithIgnoredMorphs(cfg.Ignored...),
	)
	if err := uuids.InitLookups(ctx, free, packages); err != nil {
		return fmt.Errorf("building lookups: %w", err)
	}
	paths := resolve.NewPathResolver(free, packages)

	resolver := resolve.NewReferencesResolver(uuids, paths, logger.Component(log, "resolve"), m)
	if _, err := resolver.Resolve(ctx, docs, cfg.Workers); err != nil {
		return fmt.Errorf("resolving references: %w", err)
	}

	// Trim dependencies
	start = time.Now()
	model.ClearAllDependencies(packages, free)
	rm := model.BuildReport(filepath.Base(vamDir), vamDir, packages, free)
	rm = profile.Filter(rm, sel)
	m.ObservePhase("reduce", time.Since(start))
	logger.LogPhase(log, "reduce", time.Since(start), len(rm.Packages)+len(rm.Free), nil)

	_, _ = fmt.Fprintln(stdout, toon.Encode(rm))

	if cfg.MetricsFile != "" {
		if err := m.WriteToFile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

func checkDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: not a directory", abs)
	}
	return abs, nil
}

// scan enumerates the primary root and, when set, the secondary one.
func scan(log zerolog.Logger, vamDir, repoDir string) ([]*model.FreeFile, []*model.Package, error) {
	scanner := discover.NewScanner(logger.Component(log, "discover"))

	var (
		free     []*model.FreeFile
		packages []*model.Package
	)
	for _, root := range []struct {
		dir     string
		primary bool
	}{{vamDir, true}, {repoDir, false}} {
		if root.dir == "" {
			continue
		}
		f, err := scanner.FreeFiles(root.dir, root.primary)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning %s: %w", root.dir, err)
		}
		p, err := scanner.Packages(root.dir, root.primary)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning %s: %w", root.dir, err)
		}
		free = append(free, f...)
		packages = append(packages, p...)
	}

	log.Info().
		Str("event", "scan_complete").
		Int("free_files", len(free)).
		Int("packages", len(packages)).
		Msg("scan complete")
	return free, packages, nil
}

// loadIdentities fills descriptor identities, reading only the files the
// cache does not know or that changed since it was written.
func loadIdentities(log zerolog.Logger, cachePath string, free []*model.FreeFile) {
	var cache *hashcache.Cache
	if cachePath != "" {
		c, err := hashcache.Load(cachePath)
		if err != nil {
			log.Warn().Err(err).Str("path", cachePath).Msg("scan cache ignored")
		} else {
			cache = c
			dirty := cache.Apply(free)
			log.Debug().Int("entries", cache.Len()).Int("dirty", dirty).Msg("scan cache applied")
		}
	}

	scanner := discover.NewScanner(logger.Component(log, "discover"))
	read := scanner.LoadIdentities(free, cache != nil)
	log.Debug().Int("descriptors", read).Msg("identities read")

	if cache != nil {
		cache.Update(free)
		if err := cache.Save(); err != nil {
			log.Warn().Err(err).Str("path", cachePath).Msg("scan cache not saved")
		}
	}
}

// parseJob is one unit of parse work: a whole package or one free document.
type parseJob struct {
	pkg  *model.Package
	file *model.FreeFile
}

func parseDocumentsConcurrent(free []*model.FreeFile, packages []*model.Package, workers int, log zerolog.Logger) []resolve.ParsedDocument {
	var jobs []parseJob
	for _, p := range packages {
		jobs = append(jobs, parseJob{pkg: p})
	}
	for _, top := range free {
		for _, n := range model.SelfAndChildren(top) {
			if discover.IsDocument(n) {
				jobs = append(jobs, parseJob{file: n.(*model.FreeFile)})
			}
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	type result struct {
		index int
		docs  []resolve.ParsedDocument
	}

	numWorkers := workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}

	work := make(chan int, len(jobs))
	results := make(chan result, len(jobs))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				results <- result{index: idx, docs: runParseJob(jobs[idx], log)}
			}
		}()
	}

	for i := range jobs {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	indexed := make([][]resolve.ParsedDocument, len(jobs))
	for r := range results {
		indexed[r.index] = r.docs
	}

	var docs []resolve.ParsedDocument
	for _, d := range indexed {
		docs = append(docs, d...)
	}
	return docs
}

func runParseJob(job parseJob, log zerolog.Logger) []resolve.ParsedDocument {
	if job.file != nil {
		data, err := discover.ReadFreeFile(job.file)
		if err != nil {
			log.Warn().Err(err).Str("path", job.file.FullPath()).Msg("document skipped")
			return nil
		}
		pd, ok := parseDocument(job.file, data, log)
		if !ok {
			return nil
		}
		return []resolve.ParsedDocument{pd}
	}

	var docs []resolve.ParsedDocument
	err := discover.ReadPackageDocuments(job.pkg, func(f *model.PackageFile, data []byte) error {
		if pd, ok := parseDocument(f, data, log); ok {
			docs = append(docs, pd)
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("package", job.pkg.Name().String()).Msg("package documents skipped")
	}
	return docs
}

func parseDocument(f model.AssetNode, data []byte, log zerolog.Logger) (resolve.ParsedDocument, bool) {
	refs, err := parse.ExtractReferences(data)
	if err != nil {
		log.Warn().Err(err).Str("path", f.FullPath()).Msg("document skipped")
		return resolve.ParsedDocument{}, false
	}
	return resolve.ParsedDocument{Document: model.NewDocument(f), References: refs}, true
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-vam-dir": true, "--vam-dir": true,
	"-repo-dir": true, "--repo-dir": true,
	"-cache": true, "--cache": true,
	"-log-level": true, "--log-level": true,
	"-j": true, "--j": true,
	"-workers": true, "--workers": true,
	"-s": true, "--s": true,
	"-select": true, "--select": true,
	"-ignore-morphs": true, "--ignore-morphs": true,
	"-metrics-file": true, "--metrics-file": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
