package output

import (
	"bytes"
	"encoding/hex"
	"math"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/canextract/internal/protocol/decode"
)

// Document renders a record with its field order intact in every format.
type Document struct {
	Record decode.Record
}

var (
	_ json.Marshaler        = Document{}
	_ yaml.Marshaler        = Document{}
	_ msgpack.CustomEncoder = Document{}
)

// textValue maps values that have no natural form in text formats: raw bytes
// become hex, non-finite floats become strings, and uint64 values past the
// int64 range become decimal strings.
func textValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return hex.EncodeToString(x)
	case float32:
		return finite(float64(x), v)
	case float64:
		return finite(x, v)
	case uint64:
		if x > math.MaxInt64 {
			return strconv.FormatUint(x, 10)
		}
	}
	return v
}

func finite(f float64, orig any) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return orig
}

func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	name, err := json.Marshal(d.Record.Schema)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"schema":`)
	buf.Write(name)
	buf.WriteString(`,"fields":{`)
	for i, v := range d.Record.Values {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(v.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(textValue(v.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func (d Document) MarshalYAML() (any, error) {
	fields := &yaml.Node{Kind: yaml.MappingNode}
	for _, v := range d.Record.Values {
		val := &yaml.Node{}
		if err := val.Encode(textValue(v.Value)); err != nil {
			return nil, err
		}
		fields.Content = append(fields.Content, strNode(v.Name), val)
	}
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			strNode("schema"), strNode(d.Record.Schema),
			strNode("fields"), fields,
		},
	}, nil
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// EncodeMsgpack keeps raw bytes as msgpack bin and floats as-is.
func (d Document) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("schema"); err != nil {
		return err
	}
	if err := enc.EncodeString(d.Record.Schema); err != nil {
		return err
	}
	if err := enc.EncodeString("fields"); err != nil {
		return err
	}
	if err := enc.EncodeMapLen(len(d.Record.Values)); err != nil {
		return err
	}
	for _, v := range d.Record.Values {
		if err := enc.EncodeString(v.Name); err != nil {
			return err
		}
		if err := enc.Encode(v.Value); err != nil {
			return err
		}
	}
	return nil
}

type tomlDoc struct {
	Record tomlRecord `toml:"record"`
}

type tomlRecord struct {
	Schema string      `toml:"schema"`
	Fields []tomlField `toml:"fields"`
}

type tomlField struct {
	Name  string `toml:"name"`
	Value any    `toml:"value"`
}

func (d Document) toml() tomlDoc {
	fields := make([]tomlField, 0, len(d.Record.Values))
	for _, v := range d.Record.Values {
		val := v.Value
		switch x := val.(type) {
		case []byte:
			val = hex.EncodeToString(x)
		case uint64:
			val = textValue(x)
		}
		fields = append(fields, tomlField{Name: v.Name, Value: val})
	}
	return tomlDoc{Record: tomlRecord{Schema: d.Record.Schema, Fields: fields}}
}
