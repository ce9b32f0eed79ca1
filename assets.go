package clara

import (
	_ "embed"
	"os"
	"strings"
)

var (
	//go:embed assets/clara_prompt.txt
	defaultPersona string
	//go:embed assets/orion_lore.txt
	defaultLore string
	//go:embed assets/intro.yaml
	defaultScript []byte
)

// loadText reads a required text asset, falling back to the embedded copy
// when path is empty. A configured file that is missing or blank is a
// configuration error.
func loadText(what, path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", newError(KindConfig, "read "+what+" "+path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", newError(KindConfig, what+" "+path+" is empty", nil)
	}
	return text, nil
}

// LoadPersona returns the persona prompt text.
func LoadPersona(path string) (string, error) {
	return loadText("persona", path, strings.TrimSpace(defaultPersona))
}

// LoadLore returns the parsed lore sections.
func LoadLore(path string) ([]Section, error) {
	doc, err := loadText("lore", path, defaultLore)
	if err != nil {
		return nil, err
	}
	return ParseLore(doc), nil
}
