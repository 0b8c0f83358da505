// Package locale loads per-page localized message bundles.
//
// A page's bundle lives at <dir>/<page>.<locale>.yaml and carries both
// the page copy and the ordered task declarations. A missing locale
// falls back to the default bundle.
package locale

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultLocale is used when the requested locale has no bundle.
const DefaultLocale = "en_US"

// TaskSpec declares a single tutorial task inside a bundle.
type TaskSpec struct {
	// Name is the human-readable task heading.
	Name string `yaml:"name"`
	// Msg is the instruction text shown for the task.
	Msg string `yaml:"msg"`
	// Test names the registered check that validates the task.
	// Empty means the task completes by user confirmation.
	Test string `yaml:"test"`
	// Response is an optional success message template.
	Response string `yaml:"response"`
}

// Bundle is the decoded message catalog for one page.
type Bundle struct {
	Title           string     `yaml:"title"`
	WelcomeMsg      string     `yaml:"welcome_msg"`
	HeaderOnetime   string     `yaml:"header_onetime"`
	HeaderEverytime string     `yaml:"header_everytime"`
	ClosingMsg      string     `yaml:"closing_msg"`
	TasksOnetime    []TaskSpec `yaml:"tasks_onetime"`
	TasksEverytime  []TaskSpec `yaml:"tasks_everytime"`

	// Extra holds the free-form message keys (info_*, testing_msg,
	// waiting_msg, ...) that checks reference by key.
	Extra map[string]string `yaml:",inline"`
}

// TaskCount returns the number of declared tasks across both phases.
func (b *Bundle) TaskCount() int {
	return len(b.TasksOnetime) + len(b.TasksEverytime)
}

// Message resolves a message key. Unknown keys come back verbatim so a
// raw check failure is still displayable.
func (b *Bundle) Message(key string) string {
	if b.Extra != nil {
		if msg, ok := b.Extra[key]; ok && msg != "" {
			return msg
		}
	}
	return key
}

// Loader reads bundles from a content directory.
type Loader struct {
	dir    string
	locale string
	logger *zap.Logger
}

// NewLoader creates a bundle loader rooted at dir for the given
// locale.
func NewLoader(dir, locale string, logger *zap.Logger) *Loader {
	if locale == "" {
		locale = DefaultLocale
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{dir: dir, locale: locale, logger: logger}
}

// BundlePath returns the path of the bundle for page in the given
// locale.
func BundlePath(dir, page, locale string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.yaml", page, locale))
}

// Load reads the bundle for page, falling back to the default locale
// when the preferred one is absent.
func (l *Loader) Load(page string) (*Bundle, error) {
	catalog := BundlePath(l.dir, page, l.locale)
	if _, err := os.Stat(catalog); err != nil {
		if l.locale == DefaultLocale {
			return nil, fmt.Errorf("locale: no message bundle for page %q in %s", page, l.dir)
		}
		l.logger.Info("message bundle not found, falling back to default locale",
			zap.String("page", page),
			zap.String("locale", l.locale))
		catalog = BundlePath(l.dir, page, DefaultLocale)
	}

	data, err := os.ReadFile(catalog)
	if err != nil {
		return nil, fmt.Errorf("locale: read %s: %w", catalog, err)
	}

	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("locale: parse %s: %w", catalog, err)
	}
	return &b, nil
}
