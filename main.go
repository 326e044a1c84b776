package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/template"
	"time"

	"github.com/scipunch/feedfetch/cache"
	"github.com/scipunch/feedfetch/config"
	"github.com/scipunch/feedfetch/feed"
	"github.com/scipunch/feedfetch/filter"
	"github.com/scipunch/feedfetch/loader"
)

const digestTmpl = `{{range .Sections}}# {{.Title}} ({{.URL}})
{{range .Entries}}- {{.Title}}{{if .Published}} [{{.Published}}]{{end}}
  {{.Link}}
{{end}}
{{end}}`

type Digest struct {
	Sections []Section
}

type Section struct {
	Title   string
	URL     string
	Entries []Entry
}

type Entry struct {
	Title     string
	Link      string
	Published string
}

func main() {
	if os.Getenv("DEBUG") != "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	var cfgPath string
	var cleanCache bool
	var jsonOut bool
	flag.StringVar(&cfgPath, "config", config.DefaultPath(), "path to a TOML config")
	flag.BoolVar(&cleanCache, "clean", false, "remove all cache entries")
	flag.BoolVar(&jsonOut, "json", false, "print full feed trees as JSON instead of a digest")
	flag.Parse()

	// Read config and create if default is missing
	conf, err := config.Read(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath() {
		if err := config.Write(cfgPath, conf); err != nil {
			log.Fatalf("failed to write default config with %s", err)
		}
		slog.Info("wrote default config; caching is off until cache_dir is set",
			"path", cfgPath, "suggested_cache_dir", cache.DefaultDir())
	} else if err != nil {
		log.Fatalf("failed to read config with %s", err)
	}

	// Initialize filter pipeline
	filterPipeline, err := filter.NewPipeline(conf.Filters)
	if err != nil {
		log.Fatalf("failed to initialize filters: %s", err)
	}
	if len(conf.Filters) > 0 {
		slog.Info("initialized filters", "count", len(conf.Filters))
	}

	ldr, err := loader.New(conf)
	if err != nil {
		log.Fatalf("failed to initialize loader: %s", err)
	}

	// Handle -clean flag
	if cleanCache {
		if err := ldr.Cache().Clear(); err != nil {
			log.Fatalf("failed to clear cache: %v", err)
		}
		slog.Info("cache cleared successfully")
		return
	}

	// Show cache stats
	if ldr.Cache().Enabled() {
		stats, err := ldr.Cache().Stats()
		if err != nil {
			slog.Warn("failed to get cache stats", "error", err)
		} else {
			slog.Info("cache initialized",
				"entries", stats.Entries,
				"expire", ldr.Cache().Expire())
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fetch configured feeds
	var errs []error
	feeds := make([]*feed.Feed, len(conf.Feeds))
	for i, fc := range conf.Feeds {
		if !fc.IsEnabled() {
			slog.Debug("skipping disabled feed", "url", fc.URL)
			continue
		}

		// Check for cancellation before fetching
		select {
		case <-ctx.Done():
			slog.Info("interrupted by user during fetch, exiting gracefully")
			return
		default:
		}

		f, err := loadOne(ctx, ldr, fc)
		if err != nil {
			errs = append(errs, fmt.Errorf("'%s' load failed with %w", fc.URL, err))
			continue
		}
		feeds[i] = f
	}
	slog.Info("loaded feeds", "amount", len(feeds))
	if len(errs) > 0 {
		slog.Error("several feeds were not loaded", "feeds", errors.Join(errs...))
	}

	if jsonOut {
		if err := printJSON(feeds, conf); err != nil {
			log.Fatalf("failed to print feed trees: %s", err)
		}
		return
	}

	digest := buildDigest(feeds, conf, filterPipeline)
	t := template.Must(template.New("digest").Parse(digestTmpl))
	if err := t.Execute(os.Stdout, digest); err != nil {
		log.Fatalf("could not render digest: %s", err)
	}
}

// loadOne dispatches on the configured format, falling back to
// auto-detection.
func loadOne(ctx context.Context, ldr *loader.Loader, fc config.FeedConfig) (*feed.Feed, error) {
	switch fc.Format {
	case config.RSS:
		return ldr.LoadRSS(ctx, fc.URL, fc.Username, fc.Password)
	case config.Atom:
		return ldr.LoadAtom(ctx, fc.URL, fc.Username, fc.Password)
	default:
		return ldr.Load(ctx, fc.URL, fc.Username, fc.Password)
	}
}

func buildDigest(feeds []*feed.Feed, conf config.Config, pipeline *filter.Pipeline) Digest {
	var digest Digest
	for i, f := range feeds {
		if f == nil {
			continue
		}
		fc := conf.Feeds[i]
		section := Section{Title: f.Text("title"), URL: fc.URL}
		for _, item := range f.Items() {
			if include, reason := pipeline.ShouldInclude(item, fc.FilterNames); !include {
				slog.Debug("item filtered out", "title", item.Title(), "reason", reason, "url", item.URL())
				continue
			}
			entry := Entry{Title: item.Title(), Link: item.URL()}
			if ts, ok := item.Timestamp(); ok {
				entry.Published = ts.Format(time.DateOnly)
			}
			section.Entries = append(section.Entries, entry)
		}
		if len(section.Entries) > 0 {
			digest.Sections = append(digest.Sections, section)
		}
	}
	return digest
}

// printJSON dumps each feed's full tree; the ordered maps produced by
// ToTree marshal with source key order intact.
func printJSON(feeds []*feed.Feed, conf config.Config) error {
	type treeOut struct {
		URL  string `json:"url"`
		Feed any    `json:"feed"`
	}
	var out []treeOut
	for i, f := range feeds {
		if f == nil {
			continue
		}
		out = append(out, treeOut{URL: conf.Feeds[i].URL, Feed: f.ToTree()})
	}
	blob, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(blob, '\n'))
	return err
}
