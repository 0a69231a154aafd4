package target

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// File is the on-disk registry shape.
type File struct {
	Targets []Target `json:"targets" yaml:"targets" toml:"targets"`
}

// LoadFile reads a registry file. The decoder is chosen by extension:
// .yaml/.yml, .toml, or .json.
func LoadFile(path string) (*MemoryRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	return Parse(filepath.Ext(path), data)
}

// Parse decodes registry bytes in the format named by ext.
func Parse(ext string, data []byte) (*MemoryRegistry, error) {
	var file File
	var err error

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	case ".json":
		err = sonic.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported registry format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	for i := range file.Targets {
		file.Targets[i].Slug = strings.TrimSpace(file.Targets[i].Slug)
		file.Targets[i].BaseURL = strings.TrimSpace(file.Targets[i].BaseURL)
		file.Targets[i].Embed = strings.TrimSpace(file.Targets[i].Embed)
	}
	return NewMemoryRegistry(file.Targets...)
}
