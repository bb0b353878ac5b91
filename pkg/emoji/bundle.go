package emoji

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed icons/*.json
var iconFS embed.FS

// iconSet is the subset of the Iconify JSON format used here.
type iconSet struct {
	Prefix  string              `json:"prefix"`
	Width   int                 `json:"width"`
	Height  int                 `json:"height"`
	Icons   map[string]icon     `json:"icons"`
	Aliases map[string]iconLink `json:"aliases"`
}

type icon struct {
	Body   string `json:"body"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type iconLink struct {
	Parent string `json:"parent"`
}

// bundle lazily loads embedded icon sets, once per set per process.
type bundle struct {
	mu   sync.Mutex
	sets map[string]*bundleSet
}

type bundleSet struct {
	once sync.Once
	set  *iconSet
	err  error
}

var bundled = &bundle{sets: map[string]*bundleSet{}}

// BundledSets lists the icon sets shipped with the binary.
func BundledSets() []string {
	entries, _ := iconFS.ReadDir("icons")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		out = append(out, name[:len(name)-len(".json")])
	}
	return out
}

func (b *bundle) load(set string) (*iconSet, error) {
	b.mu.Lock()
	bs, ok := b.sets[set]
	if !ok {
		bs = &bundleSet{}
		b.sets[set] = bs
	}
	b.mu.Unlock()

	bs.once.Do(func() {
		data, err := iconFS.ReadFile("icons/" + set + ".json")
		if err != nil {
			bs.err = fmt.Errorf("icon set %q not bundled", set)
			return
		}
		var s iconSet
		if err := json.Unmarshal(data, &s); err != nil {
			bs.err = fmt.Errorf("decode icon set %q: %w", set, err)
			return
		}
		bs.set = &s
	})
	return bs.set, bs.err
}

// lookup returns the icon as a standalone SVG document.
func (b *bundle) lookup(set, name string) (string, bool) {
	s, err := b.load(set)
	if err != nil {
		return "", false
	}
	ic, ok := s.Icons[name]
	for hops := 0; !ok && hops < 4; hops++ {
		link, isAlias := s.Aliases[name]
		if !isAlias {
			break
		}
		name = link.Parent
		ic, ok = s.Icons[name]
	}
	if !ok {
		return "", false
	}
	w, h := ic.Width, ic.Height
	if w == 0 {
		w = s.Width
	}
	if h == 0 {
		h = s.Height
	}
	if w == 0 {
		w = 16
	}
	if h == 0 {
		h = 16
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d">%s</svg>`, w, h, ic.Body), true
}
