// Package options holds the fixed option lists of the catalog form: the category taxonomy
// and the parish list.
package options

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jk100/archiv-admin/internal/model"
)

//go:embed options.yaml
var raw []byte

type document struct {
	Categories []model.OptionNode `yaml:"categories"`
	Parishes   []string           `yaml:"parishes"`
}

var (
	once   sync.Once
	doc    document
	docErr error
)

func load() (document, error) {
	once.Do(func() {
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			docErr = fmt.Errorf("options: decode: %w", err)
		}
	})
	return doc, docErr
}

// Categories returns the category taxonomy in display order.
func Categories() ([]model.OptionNode, error) {
	d, err := load()
	if err != nil {
		return nil, err
	}
	return d.Categories, nil
}

// Parishes returns the parish names in display order.
func Parishes() ([]string, error) {
	d, err := load()
	if err != nil {
		return nil, err
	}
	return append([]string(nil), d.Parishes...), nil
}
