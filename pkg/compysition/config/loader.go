package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("config: parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("config: parse json: %w", err)
	}
	return New(m), nil
}

// FromFile loads a Config from path, auto-detecting format from its
// extension (.yaml, .yml, .json).
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("config: unsupported config file extension: %s", filepath.Ext(path))
	}
}

// ActorSpec describes one actor entry in a Topology document.
type ActorSpec struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Size    int            `yaml:"size"`
	Options map[string]any `yaml:"options"`
}

// QueueLink describes one queue connection in a Topology document: an
// event flows from From's outbound queue named FromQueue into To's
// inbound queue named ToQueue.
type QueueLink struct {
	From      string `yaml:"from"`
	FromQueue string `yaml:"from_queue"`
	To        string `yaml:"to"`
	ToQueue   string `yaml:"to_queue"`
}

// Topology is the YAML-described wiring of a Director: its actors and how
// their queues connect, grounded on flowgraph's config/loader.go document
// shape and spec.md §4.6's connect/connect_error/connect_log operations.
type Topology struct {
	Actors      []ActorSpec `yaml:"actors"`
	Queues      []QueueLink `yaml:"queues"`
	ErrorQueues []QueueLink `yaml:"error_queues"`
	LogActors   []string    `yaml:"log_actors"`
	ErrorActors []string    `yaml:"error_actors"`
}

// LoadYAML parses a Topology document from r.
func LoadYAML(r io.Reader) (*Topology, error) {
	var t Topology
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("config: decode topology: %w", err)
	}
	return &t, nil
}

// LoadYAMLFile reads and parses a Topology document from path.
func LoadYAMLFile(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadYAML(f)
}
