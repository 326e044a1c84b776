package feed

import (
	"strings"

	"github.com/beevik/etree"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ToTree converts the whole feed into a generic nested structure, see
// Tree.
func (f *Feed) ToTree() any { return Tree(f.root) }

// Tree recursively converts an element subtree into a generic structure:
// a leaf with no child elements becomes its trimmed text, a branch
// becomes an ordered mapping from child tag name to either a single
// converted child (tag occurs once) or a list of converted children (tag
// repeats). Keys keep the first-occurrence order of the source, which is
// why the mapping is an ordered map rather than a plain Go map; it
// marshals to JSON in that order too.
func Tree(el *etree.Element) any {
	children := el.ChildElements()
	if len(children) == 0 {
		return strings.TrimSpace(el.Text())
	}

	counts := make(map[string]int, len(children))
	for _, c := range children {
		counts[c.FullTag()]++
	}

	om := orderedmap.New[string, any]()
	for _, c := range children {
		name := c.FullTag()
		value := Tree(c)
		if counts[name] == 1 {
			om.Set(name, value)
			continue
		}
		if existing, ok := om.Get(name); ok {
			om.Set(name, append(existing.([]any), value))
		} else {
			om.Set(name, []any{value})
		}
	}
	return om
}
