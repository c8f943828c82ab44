package internal

import (
	"fmt"
	"log/slog"
	"stream-lab/domain"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CatalogLoader reads the feature catalog file. Sections missing from the
// file keep the built-in defaults, a present section replaces its default entirely.
type CatalogLoader struct {
	v    *viper.Viper
	path string
	log  *slog.Logger
}

func NewCatalogLoader(path string, log *slog.Logger) *CatalogLoader {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	return &CatalogLoader{v: v, path: path, log: log}
}

func (l *CatalogLoader) Load() (domain.Catalog, error) {
	catalog := domain.DefaultCatalog()
	if l.path == "" {
		l.log.Info("No catalog file, using the built-in catalog")
		return catalog, nil
	}
	if err := l.v.ReadInConfig(); err != nil {
		return catalog, fmt.Errorf("read catalog %s: %w", l.path, err)
	}
	return l.decode(catalog)
}

func (l *CatalogLoader) decode(catalog domain.Catalog) (domain.Catalog, error) {
	decoders := []func() error{
		func() error { return section(l.v, "commands", &catalog.Commands) },
		func() error { return section(l.v, "auto_responses", &catalog.AutoResponses) },
		func() error { return section(l.v, "spam_keywords", &catalog.SpamKeywords) },
		func() error { return section(l.v, "music_blocked", &catalog.MusicBlocked) },
		func() error { return section(l.v, "shop", &catalog.Shop) },
		func() error { return section(l.v, "goals", &catalog.Goals) },
		func() error { return section(l.v, "alerts", &catalog.Alerts) },
	}
	for _, decode := range decoders {
		if err := decode(); err != nil {
			return catalog, err
		}
	}
	l.log.Info("Catalog loaded",
		"path", l.path,
		"commands", len(catalog.Commands),
		"shop_items", len(catalog.Shop),
		"goals", len(catalog.Goals),
		"alerts", len(catalog.Alerts))
	return catalog, nil
}

// section replaces target with the file content of key. Decoding into a fresh value
// keeps default map entries from leaking into an overridden section.
func section[T any](v *viper.Viper, key string, target *T) error {
	if !v.IsSet(key) {
		return nil
	}
	var fresh T
	if err := v.UnmarshalKey(key, &fresh); err != nil {
		return fmt.Errorf("decode catalog section %s: %w", key, err)
	}
	*target = fresh
	return nil
}

// Watch reloads the file on every write and hands the new catalog over.
// A file that fails to decode is logged and ignored.
func (l *CatalogLoader) Watch(onChange func(domain.Catalog)) {
	if l.path == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		catalog, err := l.decode(domain.DefaultCatalog())
		if err != nil {
			l.log.Warn("Catalog reload failed", "file", e.Name, "error", err)
			return
		}
		onChange(catalog)
	})
	l.v.WatchConfig()
}
