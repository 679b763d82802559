package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLang is used when no language is configured or the requested one has no locale file.
const DefaultLang = "es"

//go:embed locales
var LocalesFS embed.FS

// Translator resolves message keys for one language.
type Translator struct {
	lang         string
	translations map[string]string
	helpText     string
}

// NewTranslator reads locales/<lang>.yaml and locales/help-<lang>.txt from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	langCode = strings.ToLower(strings.TrimSpace(langCode))
	if langCode == "" {
		langCode = DefaultLang
	}

	filePath := path.Join("locales", langCode+".yaml")
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}
	t.lang = langCode

	helpPath := path.Join("locales", "help-"+langCode+".txt")
	help, err := fs.ReadFile(fsys, helpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read help file %s: %w", helpPath, err)
	}
	t.helpText = strings.TrimSpace(string(help))
	return t, nil
}

// Load uses the embedded locales and falls back to DefaultLang for unknown languages.
func Load(langCode string) (*Translator, error) {
	t, err := NewTranslator(LocalesFS, langCode)
	if err == nil {
		return t, nil
	}
	if fallback, ferr := NewTranslator(LocalesFS, DefaultLang); ferr == nil {
		return fallback, nil
	}
	return nil, err
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{lang: DefaultLang, translations: translations}, nil
}

// T returns the message for key, formatted with args. Unknown keys come back verbatim.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func (t *Translator) Help() string {
	return t.helpText
}

func (t *Translator) Lang() string { return t.lang }
