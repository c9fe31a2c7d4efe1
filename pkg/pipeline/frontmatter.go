package pipeline

import (
	"bytes"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/d2site/pkg/errors"
)

// Frontmatter is the metadata block at the top of a content file.
type Frontmatter struct {
	Title         string    `yaml:"title" toml:"title"`
	Description   string    `yaml:"description" toml:"description"`
	Date          time.Time `yaml:"date" toml:"date"`
	Draft         bool      `yaml:"draft" toml:"draft"`
	Tags          []string  `yaml:"tags" toml:"tags"`
	Redirected    bool      `yaml:"redirected" toml:"redirected"`
	RedirectedURL string    `yaml:"redirectedUrl" toml:"redirectedUrl"`
	DemoURL       string    `yaml:"demoURL" toml:"demoURL"`
	RepoURL       string    `yaml:"repoURL" toml:"repoURL"`
}

// Validate checks the link fields and the redirect pairing.
func (f Frontmatter) Validate() error {
	if f.Redirected && f.RedirectedURL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "redirected is set without redirectedUrl")
	}
	links := []struct{ name, url string }{
		{"redirectedUrl", f.RedirectedURL},
		{"demoURL", f.DemoURL},
		{"repoURL", f.RepoURL},
	}
	for _, l := range links {
		if l.url == "" {
			continue
		}
		if err := errors.ValidateURL(l.url); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "frontmatter %s", l.name)
		}
	}
	return nil
}

var (
	yamlFence = []byte("---")
	tomlFence = []byte("+++")
)

// SplitFrontmatter separates the metadata block from the markdown body.
// YAML is fenced by "---" lines and TOML by "+++" lines. Content without a
// leading fence has empty metadata and is returned whole as the body.
func SplitFrontmatter(content []byte) (Frontmatter, []byte, error) {
	var fm Frontmatter

	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	first, rest, _ := bytes.Cut(content, []byte("\n"))
	fence := bytes.TrimRight(first, " \t\r")

	var isYAML bool
	switch {
	case bytes.Equal(fence, yamlFence):
		isYAML = true
	case bytes.Equal(fence, tomlFence):
	default:
		return fm, content, nil
	}

	meta, body, ok := cutFence(rest, fence)
	if !ok {
		return fm, nil, errors.New(errors.ErrCodeInvalidInput, "unterminated frontmatter (missing closing %s)", fence)
	}

	if isYAML {
		if err := yaml.Unmarshal(meta, &fm); err != nil {
			return fm, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse yaml frontmatter")
		}
	} else {
		if err := toml.Unmarshal(meta, &fm); err != nil {
			return fm, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse toml frontmatter")
		}
	}

	if err := fm.Validate(); err != nil {
		return fm, nil, err
	}
	return fm, body, nil
}

// cutFence finds the closing fence line and returns the text before it and
// the text after its line break.
func cutFence(content, fence []byte) (meta, body []byte, ok bool) {
	offset := 0
	for offset <= len(content) {
		line, after, found := bytes.Cut(content[offset:], []byte("\n"))
		if bytes.Equal(bytes.TrimRight(line, " \t\r"), fence) {
			return content[:offset], after, true
		}
		if !found {
			break
		}
		offset += len(line) + 1
	}
	return nil, nil, false
}
