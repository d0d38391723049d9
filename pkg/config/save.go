package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UpdateAliases reads the config file, updates the top-level aliases map,
// and writes it back preserving other content. If the file has no aliases
// section yet, one is added at the document root.
func UpdateAliases(path string, aliases map[string]string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(buf, &root); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	aliasNode := findNode(&root, "aliases")
	if aliasNode == nil {
		aliasNode, err = addMappingChild(&root, "aliases")
		if err != nil {
			return fmt.Errorf("add aliases section: %w", err)
		}
	}

	// Rebuild the aliases mapping node
	aliasNode.Content = nil
	// Sort keys for deterministic output
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sortStrings(keys)
	for _, k := range keys {
		aliasNode.Content = append(aliasNode.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: aliases[k]},
		)
	}

	out, err := yaml.Marshal(&root)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// yaml.Marshal adds a document separator; strip it if original didn't have one
	outStr := string(out)
	if !strings.HasPrefix(string(buf), "---") && strings.HasPrefix(outStr, "---") {
		outStr = strings.TrimPrefix(outStr, "---\n")
	}

	if err := os.WriteFile(path, []byte(outStr), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// findNode navigates a yaml.Node tree by map keys.
func findNode(node *yaml.Node, keys ...string) *yaml.Node {
	if node == nil {
		return nil
	}
	// Unwrap document node
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		return findNode(node.Content[0], keys...)
	}
	if len(keys) == 0 {
		return node
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	key := keys[0]
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			return findNode(node.Content[i+1], keys[1:]...)
		}
	}
	return nil
}

// addMappingChild inserts a new empty mapping node under key at the
// document root, creating the root mapping itself if the file was empty.
func addMappingChild(root *yaml.Node, key string) (*yaml.Node, error) {
	doc := root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.MappingNode})
		}
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config root is not a mapping")
	}
	valueNode := &yaml.Node{Kind: yaml.MappingNode}
	doc.Content = append(doc.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		valueNode,
	)
	return valueNode, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
