package config

import (
	"bytes"
	_ "embed"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	cmtos "github.com/cometbft/cometbft/libs/os"
)

const DefaultDirPerm = 0o700

//go:embed config.toml.tpl
var configTemplateText string

// Keys in config.toml.tpl mirror the mapstructure tags in config.go.
var configTemplate = template.Must(template.New("config.toml").Funcs(template.FuncMap{
	"quoteList": quoteList,
}).Parse(configTemplateText))

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// EnsureRoot creates the home directory with its config and data
// subdirectories.
func (c *Config) EnsureRoot() error {
	for _, dir := range []string{c.App.Home, filepath.Dir(c.ConfigFile()), c.Path(c.Store.Dir)} {
		if err := cmtos.EnsureDir(dir, DefaultDirPerm); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteConfigFile renders c to its config file under the home directory.
func (c *Config) WriteConfigFile() error {
	dat, err := c.Render()
	if err != nil {
		return err
	}
	cmtos.MustWriteFile(c.ConfigFile(), dat, 0o644)
	return nil
}
