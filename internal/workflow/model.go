package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// file mirrors the YAML workflow document.
type file struct {
	Model      string        `yaml:"model"`
	Repository string        `yaml:"repository"`
	Timeout    millis        `yaml:"timeout"`
	Fallback   string        `yaml:"fallback"`
	Launch     *promptRef    `yaml:"launch"`
	Updates    []promptRef   `yaml:"updates"`
	Parallel   *parallelFile `yaml:"parallel"`
}

type parallelFile struct {
	Prompt         *promptRef     `yaml:"prompt"`
	BindResultType string         `yaml:"bind_result_type"`
	Timeout        millis         `yaml:"timeout"`
	Fallback       string         `yaml:"fallback"`
	Sequences      []sequenceFile `yaml:"sequences"`
}

type sequenceFile struct {
	Model      string      `yaml:"model"`
	Repository string      `yaml:"repository"`
	Timeout    millis      `yaml:"timeout"`
	Fallback   string      `yaml:"fallback"`
	Prompts    []promptRef `yaml:"prompts"`
}

// promptRef is either a file reference or inline text. A bare scalar is
// taken as a file reference.
type promptRef struct {
	Src  string `yaml:"src"`
	Text string `yaml:"text"`
	Type string `yaml:"type"`
}

func (p *promptRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		p.Src = node.Value
		return nil
	}
	type plain promptRef
	var v plain
	if err := node.Decode(&v); err != nil {
		return err
	}
	*p = promptRef(v)
	if p.Src != "" && p.Text != "" {
		return fmt.Errorf("line %d: prompt sets both src and text", node.Line)
	}
	return nil
}

// kind returns the declared type, or one derived from the reference.
func (p promptRef) kind() string {
	if p.Type != "" {
		return strings.ToLower(p.Type)
	}
	if p.Src == "" {
		return "text"
	}
	if i := strings.LastIndexByte(p.Src, '.'); i >= 0 && i < len(p.Src)-1 {
		return strings.ToLower(p.Src[i+1:])
	}
	return "text"
}

// millis accepts a Go duration ("10m") or a plain number of milliseconds.
type millis int64

func (m *millis) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timeout must be a scalar", node.Line)
	}
	v := strings.TrimSpace(node.Value)
	if v == "" {
		*m = 0
		return nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n < 0 {
			return fmt.Errorf("line %d: timeout must not be negative", node.Line)
		}
		*m = millis(n)
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("line %d: invalid timeout %q", node.Line, v)
	}
	if d < 0 {
		return fmt.Errorf("line %d: timeout must not be negative", node.Line)
	}
	*m = millis(d / time.Millisecond)
	return nil
}
