package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "schema":
		return schemaTemplate, nil
	case "serve":
		return serveTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const schemaTemplate = `[[schema]]
name = "ding"
id = 0x100
frame_len = 8

[[schema.field]]
name = "a"
type = "u32"
offset = 0

[[schema.field]]
name = "b"
type = "u32"
offset = 4

[[schema]]
name = "dong"
id = 0x101

[[schema.field]]
name = "a"
type = "u16"
offset = 0

[[schema.field]]
name = "b"
type = "u16"
offset = 2
big_endian = true

[[schema.field]]
name = "c"
offset = 6
extract = 2
decoder = "milli_u16be"

[[schema]]
name = "status"
id = 0x102
layout = "sequential"

[[schema.field]]
name = "mode"
type = "u8"

[[schema.field]]
name = "temp"
extract = 2
decoder = "centi_i16le"

[[schema.field]]
name = "counter"
type = "u32"
`

const serveTemplate = `name = "canextract"
addr = ":9200"
schemas = ["schemas.toml"]
cors_origins = ["http://localhost:3000"]
metrics = true
log_level = "info"
`
