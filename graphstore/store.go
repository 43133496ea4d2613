// Package graphstore saves and loads blueprint graphs as versioned records.
//
// The codec is chosen by file extension: .blueprint and .json are JSON,
// .yaml/.yml are YAML and .toml is TOML. Every record wraps the graph with a
// semantic format version; records outside the supported range are rejected.
package graphstore

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/teranos/verseblueprint/blueprint"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
)

// FormatVersion is written into every saved record
const FormatVersion = "1.0.0"

// SupportedVersions is the constraint a record's version must satisfy to load
const SupportedVersions = "^1"

// Format identifies a record codec
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Extension is the default graph record extension
const Extension = ".blueprint"

type record struct {
	FormatVersion string           `json:"format_version" yaml:"format_version" toml:"format_version"`
	Graph         *blueprint.Graph `json:"graph" yaml:"graph" toml:"graph"`
}

// FormatForPath picks the codec for a file name.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case Extension, ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.WithHint(
			errors.NewInvalidRequestError("unsupported graph file extension %q", filepath.Ext(path)),
			"use .blueprint, .json, .yaml, .yml or .toml")
	}
}

// IsGraphFile reports whether path has a graph record extension.
func IsGraphFile(path string) bool {
	_, err := FormatForPath(path)
	return err == nil
}

// Marshal encodes g as a record in the given format.
func Marshal(g *blueprint.Graph, format Format) ([]byte, error) {
	rec := record{FormatVersion: FormatVersion, Graph: g}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode JSON record")
		}
		return append(data, '\n'), nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return nil, errors.Wrap(err, "failed to encode YAML record")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "failed to encode YAML record")
		}
		return buf.Bytes(), nil

	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(rec); err != nil {
			return nil, errors.Wrap(err, "failed to encode TOML record")
		}
		return buf.Bytes(), nil

	default:
		return nil, errors.NewInvalidRequestError("unknown format %q", format)
	}
}

// Unmarshal decodes a record. Records that do not decode, carry no graph or
// declare an unsupported version return an error; ErrIncompatibleRecord
// marks the version case.
func Unmarshal(data []byte, format Format) (*blueprint.Graph, error) {
	var rec record

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, errors.Wrap(err, "failed to decode JSON record")
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return nil, errors.Wrap(err, "failed to decode YAML record")
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &rec); err != nil {
			return nil, errors.Wrap(err, "failed to decode TOML record")
		}
	default:
		return nil, errors.NewInvalidRequestError("unknown format %q", format)
	}

	if err := checkVersion(rec.FormatVersion); err != nil {
		return nil, err
	}
	if rec.Graph == nil {
		return nil, errors.Wrap(errors.ErrIncompatibleRecord, "record has no graph")
	}

	rec.Graph.Normalize()
	return rec.Graph, nil
}

// checkVersion accepts an empty version as the current one.
func checkVersion(version string) error {
	if version == "" {
		return nil
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(errors.ErrIncompatibleRecord, "invalid format version %q", version)
	}

	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return errors.Wrapf(err, "invalid version constraint %s", SupportedVersions)
	}

	if !constraint.Check(v) {
		return errors.WithHintf(
			errors.Wrapf(errors.ErrIncompatibleRecord, "format version %s not supported", version),
			"this build reads records matching %s", SupportedVersions)
	}
	return nil
}

// Store reads and writes graph records on disk.
type Store struct {
	svc    *blueprint.Service
	logger *zap.SugaredLogger
}

// New creates a store. svc builds the fallback graph for unreadable records.
func New(svc *blueprint.Service, log *zap.SugaredLogger) *Store {
	return &Store{svc: svc, logger: logger.OrNop(log).Named("graphstore")}
}

// Save writes g to path using the codec for its extension.
func (s *Store) Save(g *blueprint.Graph, path string) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}

	data, err := Marshal(g, format)
	if err != nil {
		return errors.Wrapf(err, "failed to save graph %q", g.Name)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	s.logger.Infow("Saved graph",
		logger.FieldGraph, g.Name,
		logger.FieldFile, path,
		logger.FieldFormat, string(format),
		logger.FieldSize, len(data))
	return nil
}

// Load reads a graph record. A missing file returns an error wrapping
// errors.ErrNotFound. A record that cannot be decoded is logged and replaced
// by a fresh, empty graph.
func (s *Store) Load(path string) (*blueprint.Graph, error) {
	g, err := s.LoadStrict(path)
	if err != nil {
		if !errors.Is(err, errors.ErrIncompatibleRecord) {
			return nil, err
		}
		s.logger.Warnw("Invalid graph record, starting a new graph",
			logger.FieldFile, path,
			logger.FieldError, err)
		return s.svc.NewGraph(blueprint.DefaultGraphName), nil
	}
	return g, nil
}

// LoadStrict reads a graph record without the fresh-graph fallback. A record
// that cannot be decoded returns an error marked errors.ErrIncompatibleRecord.
// Exporters use it so a half-written record never replaces generated output.
func (s *Store) LoadStrict(path string) (*blueprint.Graph, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("graph file %s", path)
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	g, err := Unmarshal(data, format)
	if err != nil {
		return nil, errors.WithHint(
			errors.Mark(errors.Wrapf(err, "graph file %s", path), errors.ErrIncompatibleRecord),
			"fix or re-save the record; existing generated output was left untouched")
	}

	s.logger.Debugw("Loaded graph",
		logger.FieldGraph, g.Name,
		logger.FieldFile, path,
		logger.FieldCount, len(g.Nodes))
	return g, nil
}
