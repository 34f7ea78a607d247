package output

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/canextract/internal/protocol/decode"
	"github.com/danmuck/canextract/internal/testutil/testlog"
)

func sampleRecord() decode.Record {
	return decode.Record{
		Schema: "dong",
		Values: []decode.Value{
			{Name: "z", Value: uint16(5)},
			{Name: "a", Value: float64(0.25)},
			{Name: "raw", Value: []byte{0xAB, 0x01}},
		},
	}
}

func TestMarshalJSONKeepsFieldOrder(t *testing.T) {
	testlog.Start(t)
	b, err := Marshal(JSON, sampleRecord())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"schema":"dong","fields":{"z":5,"a":0.25,"raw":"ab01"}}` + "\n"
	if string(b) != want {
		t.Fatalf("unexpected json:\n got %s\nwant %s", b, want)
	}
}

func TestMarshalJSONNonFiniteFloat(t *testing.T) {
	testlog.Start(t)
	rec := decode.Record{Schema: "x", Values: []decode.Value{
		{Name: "n", Value: float32(math.NaN())},
		{Name: "big", Value: uint64(math.MaxUint64)},
	}}
	b, err := Marshal(JSON, rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"n":"NaN"`) || !strings.Contains(string(b), `"big":"18446744073709551615"`) {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestMarshalYAMLKeepsFieldOrder(t *testing.T) {
	testlog.Start(t)
	b, err := Marshal(YAML, sampleRecord())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	fields := node.Content[0].Content[3]
	var keys []string
	for i := 0; i < len(fields.Content); i += 2 {
		keys = append(keys, fields.Content[i].Value)
	}
	if strings.Join(keys, ",") != "z,a,raw" {
		t.Fatalf("unexpected yaml order %v in:\n%s", keys, b)
	}
}

func TestMarshalTOML(t *testing.T) {
	testlog.Start(t)
	b, err := Marshal(TOML, sampleRecord())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, "[record]") || !strings.Contains(out, "schema = 'dong'") {
		t.Fatalf("unexpected toml:\n%s", out)
	}
	if strings.Index(out, "'z'") > strings.Index(out, "'raw'") {
		t.Fatalf("field order lost:\n%s", out)
	}
	if !strings.Contains(out, "'ab01'") {
		t.Fatalf("expected hex bytes:\n%s", out)
	}
}

func TestMarshalMsgPack(t *testing.T) {
	testlog.Start(t)
	b, err := Marshal(MsgPack, sampleRecord())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := msgpack.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["schema"] != "dong" {
		t.Fatalf("unexpected schema: %#v", out["schema"])
	}
	fields, ok := out["fields"].(map[string]any)
	if !ok {
		t.Fatalf("unexpected fields: %#v", out["fields"])
	}
	if raw, ok := fields["raw"].([]byte); !ok || !bytes.Equal(raw, []byte{0xAB, 0x01}) {
		t.Fatalf("raw bytes should stay binary: %#v", fields["raw"])
	}
}

func TestLineAndParseFormat(t *testing.T) {
	if got := Line(sampleRecord()); got != "dong z=5 a=0.25 raw=ab01" {
		t.Fatalf("unexpected line: %q", got)
	}
	if f, err := ParseFormat("YML"); err != nil || f != YAML {
		t.Fatalf("ParseFormat(YML) = %q, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
	if MsgPack.ContentType() != "application/msgpack" {
		t.Fatalf("unexpected content type")
	}
}
