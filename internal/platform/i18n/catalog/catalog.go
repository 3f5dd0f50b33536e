// Package catalog holds tradebook's translated copy. Each
// locales/<locale>/<namespace>.yaml file contributes the messages of one
// namespace ("errors", "reminders") to one locale, and the loaded set is
// registered with golang.org/x/text/message for Printer lookups.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other locale falls back to.
const BaseLocale = "fr-FR"

//go:embed locales/*/*.yaml
var embedded embed.FS

type document struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Set is a loaded group of locales. Keys are unique per locale across
// namespaces so a single message.Catalog can hold them all.
type Set struct {
	// locale -> namespace -> key -> text
	byLocale map[string]map[string]map[string]string
}

var (
	defaultOnce sync.Once
	defaultSet  *Set
)

// Default returns the embedded set, registered with x/text/message on first use.
// A malformed embedded catalog is a build defect and panics.
func Default() *Set {
	defaultOnce.Do(func() {
		set, err := Load(embedded)
		if err != nil {
			panic(fmt.Sprintf("load embedded catalogs: %v", err))
		}
		if err := set.Register(); err != nil {
			panic(fmt.Sprintf("register embedded catalogs: %v", err))
		}
		defaultSet = set
	})
	return defaultSet
}

// Load reads every locales/<locale>/<namespace>.yaml file in fsys.
func Load(fsys fs.FS) (*Set, error) {
	files, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list catalogs: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no catalogs under locales/")
	}
	slices.Sort(files)

	set := &Set{byLocale: map[string]map[string]map[string]string{}}
	for _, file := range files {
		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		var doc document
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", file, err)
		}
		if err := set.add(file, doc); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}
	if _, ok := set.byLocale[BaseLocale]; !ok {
		return nil, fmt.Errorf("missing base locale %s", BaseLocale)
	}
	return set, nil
}

func (s *Set) add(file string, doc document) error {
	locale := strings.TrimSpace(doc.Locale)
	namespace := strings.TrimSpace(doc.Namespace)
	if want := path.Base(path.Dir(file)); locale != want {
		return fmt.Errorf("locale %q does not match directory %q", locale, want)
	}
	if want := strings.TrimSuffix(path.Base(file), ".yaml"); namespace != want {
		return fmt.Errorf("namespace %q does not match file name %q", namespace, want)
	}
	if len(doc.Messages) == 0 {
		return fmt.Errorf("no messages")
	}

	namespaces := s.byLocale[locale]
	if namespaces == nil {
		namespaces = map[string]map[string]string{}
		s.byLocale[locale] = namespaces
	}
	if _, dup := namespaces[namespace]; dup {
		return fmt.Errorf("namespace %q loaded twice for %s", namespace, locale)
	}
	messages := make(map[string]string, len(doc.Messages))
	for key, text := range doc.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("blank message key")
		}
		if _, _, found := s.find(locale, key); found {
			return fmt.Errorf("key %q already defined for %s", key, locale)
		}
		messages[key] = text
	}
	namespaces[namespace] = messages
	return nil
}

func (s *Set) find(locale, key string) (string, string, bool) {
	for namespace, messages := range s.byLocale[locale] {
		if text, ok := messages[key]; ok {
			return namespace, text, true
		}
	}
	return "", "", false
}

// Register installs every message with x/text/message under the locale tag
// and under its bare language, so "fr" and "fr-FR" printers agree.
func (s *Set) Register() error {
	for _, locale := range s.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("locale %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if base, conf := tag.Base(); conf != language.No {
			if bare := language.Make(base.String()); bare != tag {
				tags = append(tags, bare)
			}
		}
		for _, messages := range s.byLocale[locale] {
			for key, text := range messages {
				for _, t := range tags {
					if err := message.SetString(t, key, text); err != nil {
						return fmt.Errorf("register %s %s: %w", locale, key, err)
					}
				}
			}
		}
	}
	return nil
}

// Locales lists the loaded locales, sorted.
func (s *Set) Locales() []string {
	out := make([]string, 0, len(s.byLocale))
	for locale := range s.byLocale {
		out = append(out, locale)
	}
	slices.Sort(out)
	return out
}

// Keys lists every key defined for locale, sorted.
func (s *Set) Keys(locale string) []string {
	var out []string
	for _, messages := range s.byLocale[strings.TrimSpace(locale)] {
		for key := range messages {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

// Lookup returns the text of key for locale, falling back to BaseLocale.
func (s *Set) Lookup(locale, key string) (string, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}
	if _, text, ok := s.find(strings.TrimSpace(locale), key); ok {
		return text, true
	}
	_, text, ok := s.find(BaseLocale, key)
	return text, ok
}

// Namespace returns a copy of one namespace for locale. When locale has no
// such namespace the base locale's copy is returned, along with the locale
// that actually served it.
func (s *Set) Namespace(locale, namespace string) (string, map[string]string) {
	locale = strings.TrimSpace(locale)
	if messages, ok := s.byLocale[locale][namespace]; ok {
		return locale, clone(messages)
	}
	return BaseLocale, clone(s.byLocale[BaseLocale][namespace])
}

func clone(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
