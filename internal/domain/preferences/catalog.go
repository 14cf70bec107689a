package preferences

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ehr/scribe/internal/domain/record"
)

//go:embed vocabulary.json
var vocabularyJSON []byte

// List is one picker list. Key is "Category" for top-level lists and
// "Parent/Name" for nested ones; Category is the record category a picked
// item is written into.
type List struct {
	Key      string   `json:"key"`
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

// Catalog is the built-in clinical vocabulary.
type Catalog struct {
	lists []List
	index map[string]int
}

// NewCatalog validates lists and builds a Catalog.
func NewCatalog(lists []List) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(lists))}
	for _, l := range lists {
		if l.Key == "" {
			return nil, fmt.Errorf("catalog: list with empty key")
		}
		if !record.IsKnownCategory(l.Category) {
			return nil, fmt.Errorf("catalog: list %q has unknown category %q", l.Key, l.Category)
		}
		if _, dup := c.index[l.Key]; dup {
			return nil, fmt.Errorf("catalog: duplicate list %q", l.Key)
		}
		c.index[l.Key] = len(c.lists)
		c.lists = append(c.lists, List{Key: l.Key, Category: l.Category, Items: append([]string(nil), l.Items...)})
	}
	return c, nil
}

// DefaultCatalog parses the embedded vocabulary.
func DefaultCatalog() (*Catalog, error) {
	var doc struct {
		Lists []List `json:"lists"`
	}
	if err := json.Unmarshal(vocabularyJSON, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode vocabulary: %w", err)
	}
	return NewCatalog(doc.Lists)
}

func (c *Catalog) base(key string) (List, bool) {
	i, ok := c.index[key]
	if !ok {
		return List{}, false
	}
	return c.lists[i], true
}

// resolve finds the category a list key writes into, following custom
// sub-menus back to a built-in parent.
func (c *Catalog) resolve(p *Preferences, key string) (string, bool) {
	if l, ok := c.base(key); ok {
		return l.Category, true
	}
	i := strings.LastIndex(key, "/")
	if i <= 0 {
		return "", false
	}
	parent, name := key[:i], key[i+1:]
	if !contains(p.SubMenus[parent], name) {
		return "", false
	}
	return c.resolve(p, parent)
}

// MenuEntry is one pickable item.
type MenuEntry struct {
	Label   string `json:"label"`
	Starred bool   `json:"starred"`
	Custom  bool   `json:"custom"`
}

// MenuGroup is one list as it renders for a user.
type MenuGroup struct {
	Key      string      `json:"key"`
	Category string      `json:"category"`
	Items    []MenuEntry `json:"items"`
	SubMenus []string    `json:"sub_menus"`
}

// Menu merges the built-in lists with p's custom items and sub-menus.
// Items are deduplicated and sorted with starred items first, then by
// locale-aware order. Custom sub-menu groups follow their parent.
func (c *Catalog) Menu(p *Preferences) []MenuGroup {
	col := collate.New(language.English, collate.IgnoreCase)
	var groups []MenuGroup

	var add func(key, category string, base []string)
	add = func(key, category string, base []string) {
		g := MenuGroup{Key: key, Category: category, SubMenus: []string{}}
		seen := make(map[string]bool)
		for _, it := range base {
			if !seen[it] {
				seen[it] = true
				g.Items = append(g.Items, MenuEntry{Label: it})
			}
		}
		for _, it := range p.CustomItems[key] {
			if !seen[it] {
				seen[it] = true
				g.Items = append(g.Items, MenuEntry{Label: it, Custom: true})
			}
		}
		starred := p.Starred[key]
		for i := range g.Items {
			g.Items[i].Starred = contains(starred, g.Items[i].Label)
		}
		sort.SliceStable(g.Items, func(i, j int) bool {
			a, b := g.Items[i], g.Items[j]
			if a.Starred != b.Starred {
				return a.Starred
			}
			return col.CompareString(a.Label, b.Label) < 0
		})
		if g.Items == nil {
			g.Items = []MenuEntry{}
		}
		subs := append([]string(nil), p.SubMenus[key]...)
		sort.SliceStable(subs, func(i, j int) bool { return col.CompareString(subs[i], subs[j]) < 0 })
		for _, s := range subs {
			g.SubMenus = append(g.SubMenus, key+"/"+s)
		}
		groups = append(groups, g)
		for _, s := range subs {
			add(key+"/"+s, category, nil)
		}
	}

	for _, l := range c.lists {
		add(l.Key, l.Category, l.Items)
	}
	return groups
}
