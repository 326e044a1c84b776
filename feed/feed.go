// Package feed turns parsed RSS/Atom XML into a normalized, read-only
// element tree. Detection classifies the dialect, normalization flattens
// namespaced tags into dotted names and synthesizes url/timestamp fields
// on every item, and the Feed/Item types expose name-based lookup over
// the result.
package feed

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// Format identifies the detected feed dialect.
type Format string

const (
	RSS  Format = "rss"
	Atom Format = "atom"
)

// Feed is the normalized result of loading a syndication feed. For RSS it
// wraps the channel element, for Atom the document root; callers should
// not assume a uniform wrapping point across dialects.
//
// A Feed is read-only after construction: Set always fails.
type Feed struct {
	root   *etree.Element
	format Format
}

// Format reports the detected dialect.
func (f *Feed) Format() Format { return f.format }

// Root exposes the wrapped element for callers that want to walk the tree
// themselves. Mutating it breaks the read-only contract.
func (f *Feed) Root() *etree.Element { return f.root }

// Get returns the first child element with the given name, or nil when the
// name is absent. The name may carry a namespace prefix ("dc:date") or be
// one of the dotted synthetic names produced by normalization ("dc.date").
func (f *Feed) Get(name string) *etree.Element {
	return f.root.SelectElement(name)
}

// GetAll returns every child element with the given name, in document
// order. An absent name yields an empty slice.
func (f *Feed) GetAll(name string) []*etree.Element {
	return f.root.SelectElements(name)
}

// Text returns the trimmed text content of the first child with the given
// name, or "" when absent.
func (f *Feed) Text(name string) string {
	if el := f.root.SelectElement(name); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

// Set always fails: a Feed is immutable once normalized.
func (f *Feed) Set(name string, _ any) error {
	return fmt.Errorf("cannot set %q: %w", name, ErrReadOnly)
}

// Items returns the feed's entries (RSS <item> or Atom <entry>) in source
// order.
func (f *Feed) Items() []Item {
	tag := "item"
	if f.format == Atom {
		tag = "entry"
	}
	var items []Item
	for _, el := range f.root.ChildElements() {
		if el.Tag == tag {
			items = append(items, Item{el: el})
		}
	}
	return items
}

// Item is a single syndication entry. Beyond whatever the source dialect
// provides, normalization guarantees a synthetic url child and, when a
// date was present and parseable, a synthetic timestamp child holding
// unix seconds.
type Item struct {
	el *etree.Element
}

// Element exposes the underlying item element.
func (it Item) Element() *etree.Element { return it.el }

// Get returns the first child element with the given name, or nil.
func (it Item) Get(name string) *etree.Element {
	return it.el.SelectElement(name)
}

// Text returns the trimmed text of the first child with the given name.
func (it Item) Text(name string) string {
	if el := it.el.SelectElement(name); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

// Set always fails: items share the feed's read-only contract.
func (it Item) Set(name string, _ any) error {
	return fmt.Errorf("cannot set %q: %w", name, ErrReadOnly)
}

// URL returns the canonical link synthesized during normalization.
func (it Item) URL() string { return it.Text("url") }

// Timestamp returns the synthesized publication instant. The second
// return is false when the source carried no parseable date.
func (it Item) Timestamp() (time.Time, bool) {
	raw := it.Text("timestamp")
	if raw == "" {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}

// Title is a convenience for the entry title.
func (it Item) Title() string { return it.Text("title") }

// Description returns the entry body text: RSS description or Atom
// summary, whichever is present.
func (it Item) Description() string {
	if s := it.Text("description"); s != "" {
		return s
	}
	return it.Text("summary")
}
