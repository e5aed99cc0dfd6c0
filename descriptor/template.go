package descriptor

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

const algorithmsKey = "flash_algorithms"

// MergeTemplate upserts d into the flash_algorithms sequence of a target
// definition template and returns the merged document.
//
// An entry with the same name is updated in place: the descriptor fields
// are overwritten and any other keys on that entry are kept. Otherwise the
// descriptor is appended. The rest of the template is preserved.
func MergeTemplate(template []byte, d *Descriptor) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(template, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	root := documentRoot(&doc)
	if root == nil {
		root = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	}
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("template must be a mapping")
	}

	var entry yaml.Node
	if err := entry.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}

	algos := mappingValue(root, algorithmsKey)
	if algos == nil || isNull(algos) {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		setMappingValue(root, algorithmsKey, seq)
		algos = seq
	}
	if algos.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: %s must be a sequence", algos.Line, algorithmsKey)
	}

	if existing := findByName(algos, d.Name); existing != nil {
		for i := 0; i+1 < len(entry.Content); i += 2 {
			setMappingValue(existing, entry.Content[i].Value, entry.Content[i+1])
		}
	} else {
		algos.Content = append(algos.Content, &entry)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to encode merged template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode merged template: %w", err)
	}
	return buf.Bytes(), nil
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == 0 {
		return nil
	}
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		return doc.Content[0]
	}
	return doc
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// mappingValue returns the value node for key, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// setMappingValue replaces the value for key, appending the pair if absent.
func setMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

func findByName(seq *yaml.Node, name string) *yaml.Node {
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		if v := mappingValue(item, "name"); v != nil && v.Value == name {
			return item
		}
	}
	return nil
}
