package filter

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"
	"unicode"

	"github.com/scipunch/feedfetch/cache"
	"github.com/scipunch/feedfetch/config"
	"github.com/scipunch/feedfetch/feed"
)

// Pipeline applies a series of named filters to normalized feed items.
type Pipeline struct {
	filters map[string]*compiledFilter
	now     func() time.Time
}

// compiledFilter contains compiled regex patterns and resolved durations
// for efficient matching.
type compiledFilter struct {
	config          config.Filter
	excludePatterns []*regexp.Regexp
	maxAge          time.Duration
}

// NewPipeline creates a new filter pipeline from config.
func NewPipeline(filtersConfig map[string]config.Filter) (*Pipeline, error) {
	compiled := make(map[string]*compiledFilter)

	for name, filterCfg := range filtersConfig {
		cf := &compiledFilter{
			config:          filterCfg,
			excludePatterns: make([]*regexp.Regexp, 0, len(filterCfg.ExcludePatterns)),
		}

		for _, pattern := range filterCfg.ExcludePatterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				slog.Warn("invalid regex pattern in filter", "filter", name, "pattern", pattern, "error", err)
				continue
			}
			cf.excludePatterns = append(cf.excludePatterns, re)
		}

		if filterCfg.MaxAge != "" {
			d, err := cache.ParseExpire(filterCfg.MaxAge)
			if err != nil {
				return nil, fmt.Errorf("filter '%s' has invalid max_age with %w", name, err)
			}
			cf.maxAge = d
		}

		compiled[name] = cf
	}

	return &Pipeline{filters: compiled, now: time.Now}, nil
}

// ShouldInclude returns true if the item passes all filters in the
// pipeline. filterNames is a list of filter names to apply in order; the
// reason string identifies the first failing rule.
func (p *Pipeline) ShouldInclude(item feed.Item, filterNames []string) (bool, string) {
	if len(filterNames) == 0 {
		return true, "" // no filters = include everything
	}

	for _, filterName := range filterNames {
		f, exists := p.filters[filterName]
		if !exists {
			slog.Warn("filter not found, skipping", "filter_name", filterName)
			continue
		}

		if shouldInclude, reason := p.applyFilter(item, f, filterName); !shouldInclude {
			return false, reason
		}
	}

	return true, ""
}

// applyFilter applies a single filter to an item.
func (p *Pipeline) applyFilter(item feed.Item, f *compiledFilter, filterName string) (bool, string) {
	text := item.Title() + " " + item.Description()

	if f.config.MinLength > 0 && len(text) < f.config.MinLength {
		return false, filterName + ":min_length"
	}

	if f.config.MinTitleWords > 0 && countWords(item.Title()) < f.config.MinTitleWords {
		return false, filterName + ":min_title_words"
	}

	for i, pattern := range f.excludePatterns {
		if pattern.MatchString(text) {
			return false, filterName + ":exclude_pattern[" + f.config.ExcludePatterns[i] + "]"
		}
	}

	if f.config.RequireURL && item.URL() == "" {
		return false, filterName + ":require_url"
	}

	// Items without a parseable timestamp pass the age check.
	if f.maxAge > 0 {
		if ts, ok := item.Timestamp(); ok && p.now().Sub(ts) > f.maxAge {
			return false, filterName + ":max_age"
		}
	}

	return true, ""
}

// countWords counts the number of words in text.
func countWords(text string) int {
	words := 0
	inWord := false

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if !inWord {
				words++
				inWord = true
			}
		} else {
			inWord = false
		}
	}

	return words
}
