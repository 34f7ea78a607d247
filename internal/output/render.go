// Package output renders decoded records for the CLI and the HTTP service.
package output

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/canextract/internal/protocol/decode"
)

type Format string

const (
	JSON    Format = "json"
	YAML    Format = "yaml"
	TOML    Format = "toml"
	MsgPack Format = "msgpack"
	Text    Format = "text"
)

func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "toml":
		return TOML, nil
	case "msgpack", "mp":
		return MsgPack, nil
	case "text", "txt":
		return Text, nil
	default:
		return "", fmt.Errorf("unknown output format %q", raw)
	}
}

func (f Format) ContentType() string {
	switch f {
	case YAML:
		return "application/yaml"
	case TOML:
		return "application/toml"
	case MsgPack:
		return "application/msgpack"
	case Text:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Marshal encodes rec in format f. Text formats end with a newline.
func Marshal(f Format, rec decode.Record) ([]byte, error) {
	doc := Document{Record: rec}
	switch f {
	case JSON:
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case YAML:
		return yaml.Marshal(doc)
	case TOML:
		return toml.Marshal(doc.toml())
	case MsgPack:
		return msgpack.Marshal(doc)
	case Text:
		return []byte(Line(rec) + "\n"), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}
}

// Render writes rec to w in format f.
func Render(w io.Writer, f Format, rec decode.Record) error {
	b, err := Marshal(f, rec)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Line formats rec as `schema name=value ...`.
func Line(rec decode.Record) string {
	var sb strings.Builder
	sb.WriteString(rec.Schema)
	for _, v := range rec.Values {
		sb.WriteByte(' ')
		sb.WriteString(v.Name)
		sb.WriteByte('=')
		switch x := v.Value.(type) {
		case []byte:
			fmt.Fprintf(&sb, "%x", x)
		case string:
			sb.WriteString(x)
		default:
			fmt.Fprintf(&sb, "%v", x)
		}
	}
	return sb.String()
}
