// Package workload reads simulation workloads from YAML or JSON files and
// from the line-oriented text format the interactive simulator reads on
// stdin.
package workload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/coresim/pkg/model"
)

type document struct {
	Policy    string          `yaml:"policy"`
	Resources model.Resources `yaml:"resources"`
	Tasks     []taskDocument  `yaml:"tasks"`
	Options   *model.Options  `yaml:"options"`
}

type taskDocument struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Total int    `yaml:"total"`
}

// Load reads a workload file. YAML and JSON are both accepted.
func Load(path string) (*model.Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// Parse decodes and validates a YAML or JSON workload. Unknown fields are
// rejected. Policy and kind names are case-insensitive and the policy may be
// given by its menu number.
func Parse(data []byte) (*model.Workload, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty workload")
		}
		return nil, fmt.Errorf("decode workload: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode workload: %w", err)
	}
	lines := taskLines(&root)

	w := &model.Workload{Resources: doc.Resources, Options: doc.Options}
	var errs []model.FieldError

	p, policyErr := model.ParsePolicy(doc.Policy)
	if policyErr != nil {
		errs = append(errs, model.FieldError{Field: "policy", Message: policyErr.Error()})
	}
	w.Policy = p
	for _, td := range doc.Tasks {
		spec := model.TaskSpec{Name: td.Name, Total: td.Total, Kind: model.Kind(td.Kind)}
		if k, err := model.ParseKind(td.Kind); err == nil {
			spec.Kind = k
		}
		w.Tasks = append(w.Tasks, spec)
	}

	if err := w.Validate(); err != nil {
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		for _, fe := range ve.Errors {
			// Already reported with the parser's message.
			if fe.Field == "policy" && policyErr != nil {
				continue
			}
			var i int
			if _, scanErr := fmt.Sscanf(fe.Field, "tasks[%d]", &i); scanErr == nil && i < len(lines) {
				fe.Line = lines[i]
			}
			errs = append(errs, fe)
		}
	}
	if len(errs) > 0 {
		return nil, &model.ValidationError{Errors: errs}
	}
	return w, nil
}

// taskLines returns the source line of each entry under the top-level
// "tasks" key.
func taskLines(root *yaml.Node) []int {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil
	}
	m := root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != "tasks" || m.Content[i+1].Kind != yaml.SequenceNode {
			continue
		}
		seq := m.Content[i+1]
		lines := make([]int, len(seq.Content))
		for j, n := range seq.Content {
			lines[j] = n.Line
		}
		return lines
	}
	return nil
}

// Marshal renders a workload as YAML, the format Load reads back.
func Marshal(w *model.Workload) ([]byte, error) {
	doc := document{
		Policy:    w.Policy.String(),
		Resources: w.Resources,
		Options:   w.Options,
	}
	for _, t := range w.Tasks {
		doc.Tasks = append(doc.Tasks, taskDocument{Name: t.Name, Kind: t.Kind.String(), Total: t.Total})
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode workload: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode workload: %w", err)
	}
	return buf.Bytes(), nil
}

// IsText reports whether data looks like the stdin text format: the first
// non-blank line is a bare policy number.
func IsText(data []byte) bool {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return len(line) == 1 && line[0] >= '1' && line[0] <= '4'
	}
	return false
}
