package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Keys lists the YAML keys of Config in sorted order.
func Keys() []string {
	fields, err := fieldMap(DefaultConfig())
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the YAML rendering of the field named key.
func (c *Config) Get(key string) (string, error) {
	fields, err := fieldMap(c)
	if err != nil {
		return "", err
	}
	v, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}
	return fmt.Sprint(v), nil
}

// Set assigns value, written as a YAML scalar, to the field named key.
// The receiver is left untouched when the result would not validate.
func (c *Config) Set(key, value string) error {
	if _, err := c.Get(key); err != nil {
		return err
	}

	next := *c
	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: key},
			{Kind: yaml.ScalarNode, Value: value},
		},
	}
	if err := doc.Decode(&next); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func fieldMap(c *Config) (map[string]any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	fields := map[string]any{}
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fields, nil
}
