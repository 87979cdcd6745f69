package store

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// netplanLens maps YAML documents onto the tree: mapping keys become
// labels, sequence items become children labeled 1..n and scalars become
// values. Key order is preserved.
type netplanLens struct{}

func (netplanLens) Name() string { return "netplan" }

func (netplanLens) Parse(data []byte) (*node, error) {
	file := newNode("", "")
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return file, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return file, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: top level must be a mapping", root.Line)
	}
	if err := fromYAML(file, root); err != nil {
		return nil, err
	}
	return file, nil
}

func fromYAML(dst *node, src *yaml.Node) error {
	switch src.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(src.Content); i += 2 {
			key, val := src.Content[i], src.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			if err := fromYAML(dst.add(key.Value, ""), val); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, item := range src.Content {
			if err := fromYAML(dst.add(strconv.Itoa(i+1), ""), item); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if src.Tag != "!!null" {
			dst.value = src.Value
		}
	case yaml.AliasNode:
		if src.Alias == nil {
			return fmt.Errorf("line %d: dangling alias", src.Line)
		}
		return fromYAML(dst, src.Alias)
	default:
		return fmt.Errorf("line %d: unsupported YAML node", src.Line)
	}
	return nil
}

func (netplanLens) Serialize(file *node) ([]byte, error) {
	if len(file.children) == 0 {
		return []byte{}, nil
	}
	root, err := toYAML(file)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func toYAML(n *node) (*yaml.Node, error) {
	if len(n.children) == 0 {
		if n.value == "" {
			return &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}, nil
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Value: n.value}, nil
	}
	if n.value != "" {
		return nil, fmt.Errorf("%s: a node cannot carry both a value and children", n.label)
	}
	if isSequence(n) {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, c := range n.children {
			item, err := toYAML(c)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, item)
		}
		return seq, nil
	}
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range n.children {
		val, err := toYAML(c)
		if err != nil {
			return nil, err
		}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: c.label}, val)
	}
	return m, nil
}

// isSequence reports whether every child carries a numeric label
func isSequence(n *node) bool {
	for _, c := range n.children {
		if _, err := strconv.Atoi(c.label); err != nil {
			return false
		}
	}
	return len(n.children) > 0
}
