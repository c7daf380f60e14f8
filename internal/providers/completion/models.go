package completion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Category is a capability a caller asks the provider for.
type Category string

const (
	CategoryReasoning       Category = "reasoning"
	CategoryText            Category = "text"
	CategoryVision          Category = "vision"
	CategoryMultilingual    Category = "multilingual"
	CategorySpeechToText    Category = "speech-to-text"
	CategoryTextToSpeech    Category = "text-to-speech"
	CategoryFunctionCalling Category = "function-calling"
	CategoryCoding          Category = "coding"
	CategorySafety          Category = "safety"
)

// ModelID names a provider model.
type ModelID string

// DefaultModel is used for unknown categories and empty catalog entries.
const DefaultModel ModelID = "llama-3.3-70b-versatile"

// Catalog maps each category to its models in preference order.
type Catalog map[Category][]ModelID

// DefaultCatalog returns the built-in Groq catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		CategoryReasoning: {
			"llama-3.3-70b-versatile", "qwen-qwq-32b", "deepseek-r1-distill-qwen-32b", "deepseek-r1-distill-llama-70b",
		},
		CategoryText: {
			"llama-3.3-70b-versatile", "meta-llama/llama-4-maverick-17b-128e-instruct", "llama-3.1-8b-instant", "qwen-2.5-32b", "gemma2-9b-it",
		},
		CategoryVision: {
			"meta-llama/llama-4-scout-17b-16e-instruct", "meta-llama/llama-4-maverick-17b-128e-instruct",
		},
		CategoryMultilingual: {
			"llama-3.3-70b-versatile", "meta-llama/llama-4-maverick-17b-128e-instruct", "mistral-saba-24b", "gemma2-9b-it",
		},
		CategorySpeechToText: {
			"whisper-large-v3", "whisper-large-v3-turbo", "distil-whisper-large-v3-en",
		},
		CategoryTextToSpeech: {
			"playai-tts",
		},
		CategoryFunctionCalling: {
			"llama-3.3-70b-versatile", "meta-llama/llama-4-scout-17b-16e-instruct", "qwen-qwq-32b",
		},
		CategoryCoding: {
			"llama-3.3-70b-versatile", "qwen-2.5-coder-32b",
		},
		CategorySafety: {
			"llama-guard-3-8b",
		},
	}
}

// Select returns the first model declared for category, or DefaultModel.
func (c Catalog) Select(category Category) ModelID {
	if models := c[category]; len(models) > 0 && models[0] != "" {
		return models[0]
	}
	return DefaultModel
}

// SelectModel selects from the built-in catalog.
func SelectModel(category Category) ModelID {
	return DefaultCatalog().Select(category)
}

// catalogFile is the on-disk shape of a catalog override.
type catalogFile struct {
	Models map[string][]string `yaml:"models" toml:"models"`
}

// LoadCatalog reads a YAML or TOML file and merges it over the built-in
// catalog. Categories present in the file replace the built-in list.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}

	var file catalogFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported model catalog format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse model catalog %s: %w", path, err)
	}

	catalog := DefaultCatalog()
	for name, models := range file.Models {
		category := Category(strings.ToLower(strings.TrimSpace(name)))
		ids := make([]ModelID, 0, len(models))
		for _, m := range models {
			if m = strings.TrimSpace(m); m != "" {
				ids = append(ids, ModelID(m))
			}
		}
		catalog[category] = ids
	}
	return catalog, nil
}
