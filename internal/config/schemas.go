package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/canextract/internal/protocol"
	"github.com/danmuck/canextract/internal/protocol/hooks"
	"github.com/danmuck/canextract/internal/protocol/schema"
)

var ErrUnknownFormat = errors.New("config: unknown schema file format")

// SchemaFile is the on-disk shape shared by the TOML, YAML and JSON formats.
type SchemaFile struct {
	Schemas []SchemaDef `toml:"schema" yaml:"schema" json:"schema"`
}

type SchemaDef struct {
	Name     string     `toml:"name" yaml:"name" json:"name"`
	ID       *uint32    `toml:"id" yaml:"id" json:"id"`
	FrameLen *int       `toml:"frame_len" yaml:"frame_len" json:"frame_len"`
	Layout   string     `toml:"layout" yaml:"layout" json:"layout"`
	Fields   []FieldDef `toml:"field" yaml:"field" json:"field"`
}

type FieldDef struct {
	Name      string `toml:"name" yaml:"name" json:"name"`
	Type      string `toml:"type" yaml:"type" json:"type"`
	Offset    int    `toml:"offset" yaml:"offset" json:"offset"`
	Extract   int    `toml:"extract" yaml:"extract" json:"extract"`
	BigEndian bool   `toml:"big_endian" yaml:"big_endian" json:"big_endian"`
	Decoder   string `toml:"decoder" yaml:"decoder" json:"decoder"`
}

type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// LoadSchemaFile reads path, picks the format from its extension and
// compiles every schema against the default hook registry.
func LoadSchemaFile(path string) (*schema.Catalog, error) {
	return LoadSchemaFileWith(path, hooks.Default())
}

func LoadSchemaFileWith(path string, r hooks.Resolver) (*schema.Catalog, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema load failed (%s): %w", path, err)
	}
	file, err := ParseSchemaFile(data, format)
	if err != nil {
		return nil, fmt.Errorf("schema parse failed (%s): %w", path, err)
	}
	cat, err := Compile(file, r)
	if err != nil {
		return nil, fmt.Errorf("schema invalid (%s): %w", path, err)
	}
	log.Debug().Str("path", path).Int("schemas", cat.Len()).Msg("config.LoadSchemaFile ok")
	return cat, nil
}

// ParseSchemaFile decodes data strictly: unknown keys are errors in every
// format.
func ParseSchemaFile(data []byte, format Format) (SchemaFile, error) {
	var file SchemaFile
	switch format {
	case FormatTOML:
		meta, err := toml.Decode(string(data), &file)
		if err != nil {
			return SchemaFile{}, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return SchemaFile{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return SchemaFile{}, err
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return SchemaFile{}, err
		}
	default:
		return SchemaFile{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return file, nil
}

// Compile builds every definition and indexes it in a new catalog.
func Compile(file SchemaFile, r hooks.Resolver) (*schema.Catalog, error) {
	cat := schema.NewCatalog()
	if err := compileInto(cat, file, r); err != nil {
		return nil, err
	}
	return cat, nil
}

// LoadCatalog merges several schema files into one catalog. Names and ids
// must be unique across all of them.
func LoadCatalog(paths []string, r hooks.Resolver) (*schema.Catalog, error) {
	cat := schema.NewCatalog()
	for _, path := range paths {
		format, err := FormatOf(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("schema load failed (%s): %w", path, err)
		}
		file, err := ParseSchemaFile(data, format)
		if err != nil {
			return nil, fmt.Errorf("schema parse failed (%s): %w", path, err)
		}
		if err := compileInto(cat, file, r); err != nil {
			return nil, fmt.Errorf("schema invalid (%s): %w", path, err)
		}
	}
	log.Debug().Int("files", len(paths)).Int("schemas", cat.Len()).Msg("config.LoadCatalog ok")
	return cat, nil
}

func compileInto(cat *schema.Catalog, file SchemaFile, r hooks.Resolver) error {
	if len(file.Schemas) == 0 {
		return fmt.Errorf("no schemas defined")
	}
	for i, def := range file.Schemas {
		s, err := def.Build(r)
		if err != nil {
			return fmt.Errorf("schema[%d]: %w", i, err)
		}
		if err := cat.Add(s); err != nil {
			return fmt.Errorf("schema[%d]: %w", i, err)
		}
	}
	return nil
}

// Build turns one definition into a validated schema.
func (d SchemaDef) Build(r hooks.Resolver) (*schema.Schema, error) {
	b := schema.New(d.Name).Hooks(r)
	layout, ok := schema.ParseLayout(d.Layout)
	if !ok {
		return nil, &protocol.SchemaError{Schema: d.Name, Index: -1, Reason: fmt.Sprintf("unknown layout %q", d.Layout)}
	}
	b.Layout(layout)
	if d.FrameLen != nil {
		b.FrameLen(*d.FrameLen)
	}
	if d.ID != nil {
		b.ID(*d.ID)
	}
	for j, f := range d.Fields {
		kind, ok := schema.ParseKind(f.Type)
		if !ok {
			return nil, &protocol.SchemaError{Schema: d.Name, Field: f.Name, Index: j, Reason: fmt.Sprintf("unknown type %q", f.Type)}
		}
		b.Add(schema.Spec{
			Name:      f.Name,
			Kind:      kind,
			Offset:    f.Offset,
			Width:     f.Extract,
			BigEndian: f.BigEndian,
			Decoder:   f.Decoder,
		})
	}
	return b.Build()
}
