package feed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/beevik/etree"
)

const (
	atomNS       = "http://www.w3.org/2005/Atom"
	atomLegacyNS = "http://purl.org/atom/ns#"
	dublinCoreNS = "http://purl.org/dc/elements/1.1/"
)

// New detects the dialect of a parsed document and normalizes it into a
// Feed. A document that is neither RSS nor Atom fails with ErrFormat.
func New(doc *etree.Document) (*Feed, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrFormat)
	}
	if channel(root) != nil {
		return NewRSS(doc)
	}
	if isAtom(root) {
		return NewAtom(doc)
	}
	return nil, fmt.Errorf("%w: neither RSS channel nor Atom namespace found", ErrFormat)
}

// NewRSS normalizes a document as RSS. The resulting Feed wraps the
// channel element.
func NewRSS(doc *etree.Document) (*Feed, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrFormat)
	}
	ch := channel(root)
	if ch == nil {
		return nil, fmt.Errorf("%w: missing RSS channel element", ErrFormat)
	}
	flatten(ch)
	for _, item := range childrenByTag(ch, "item") {
		normalizeRSSItem(item)
	}
	return &Feed{root: ch, format: RSS}, nil
}

// NewAtom normalizes a document as Atom. The resulting Feed wraps the
// document root.
func NewAtom(doc *etree.Document) (*Feed, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrFormat)
	}
	if !isAtom(root) {
		return nil, fmt.Errorf("%w: missing Atom namespace", ErrFormat)
	}
	for _, entry := range childrenByTag(root, "entry") {
		normalizeAtomEntry(entry)
	}
	return &Feed{root: root, format: Atom}, nil
}

// channel returns the root's channel child, the marker of an RSS document.
func channel(root *etree.Element) *etree.Element {
	for _, el := range root.ChildElements() {
		if el.Space == "" && el.Tag == "channel" {
			return el
		}
	}
	return nil
}

// isAtom reports whether the root sits in (or declares) the Atom
// namespace, accepting both the 2005 standard and the legacy 2003
// pre-standard URI.
func isAtom(root *etree.Element) bool {
	switch root.NamespaceURI() {
	case atomNS, atomLegacyNS:
		return true
	}
	for _, attr := range root.Attr {
		if attr.Space == "xmlns" || (attr.Space == "" && attr.Key == "xmlns") {
			if attr.Value == atomNS || attr.Value == atomLegacyNS {
				return true
			}
		}
	}
	return false
}

// flatten walks the subtree and gives every namespaced child an additional
// synthetic sibling named prefix.local with no namespace, so callers
// without namespace-aware tooling can reach it by plain name. Applying it
// twice is a no-op: a child whose dotted name already exists is skipped,
// and synthetic copies (recognizable by the dot in their tag) are never
// re-expanded.
func flatten(el *etree.Element) {
	for _, child := range el.ChildElements() {
		if strings.Contains(child.Tag, ".") {
			continue
		}
		flatten(child)
		if child.Space == "" {
			continue
		}
		name := child.Space + "." + child.Tag
		if hasChild(el, name) {
			continue
		}
		dup := child.Copy()
		dup.Space = ""
		dup.Tag = name
		el.AddChild(dup)
	}
}

// normalizeRSSItem synthesizes the canonical url and timestamp children
// on one RSS item. The date source is dc:date when present, else pubDate;
// an unparseable or missing date degrades to no timestamp, never an
// error.
func normalizeRSSItem(item *etree.Element) {
	if !hasChild(item, "url") {
		if link := childByTag(item, "link"); link != nil {
			item.CreateElement("url").SetText(strings.TrimSpace(link.Text()))
		}
	}
	if !hasChild(item, "timestamp") {
		raw := ""
		if d := childByNamespace(item, dublinCoreNS, "date"); d != nil {
			raw = d.Text()
		} else if p := childByTag(item, "pubDate"); p != nil {
			raw = p.Text()
		}
		setTimestamp(item, raw)
	}
}

// normalizeAtomEntry synthesizes url (from the entry's first link href)
// and timestamp (from updated) on one Atom entry.
func normalizeAtomEntry(entry *etree.Element) {
	if !hasChild(entry, "url") {
		for _, el := range entry.ChildElements() {
			if el.Tag != "link" {
				continue
			}
			if href := el.SelectAttrValue("href", ""); href != "" {
				entry.CreateElement("url").SetText(href)
			}
			break
		}
	}
	if !hasChild(entry, "timestamp") {
		raw := ""
		for _, el := range entry.ChildElements() {
			if el.Tag == "updated" {
				raw = el.Text()
				break
			}
		}
		setTimestamp(entry, raw)
	}
}

func setTimestamp(el *etree.Element, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return
	}
	el.CreateElement("timestamp").SetText(strconv.FormatInt(t.Unix(), 10))
}

// childByTag returns the first non-namespaced child with the given tag.
func childByTag(el *etree.Element, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Space == "" && c.Tag == tag {
			return c
		}
	}
	return nil
}

// childrenByTag returns every child with the given local tag, in any
// namespace.
func childrenByTag(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// childByNamespace returns the first child with the given local tag whose
// resolved namespace URI matches.
func childByNamespace(el *etree.Element, nsURI, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == tag && c.Space != "" && c.NamespaceURI() == nsURI {
			return c
		}
	}
	return nil
}

func hasChild(el *etree.Element, tag string) bool {
	return childByTag(el, tag) != nil
}
