package main

import (
	"flag"
	"log"

	"github.com/danmuck/canextract/internal/config"
	"github.com/danmuck/canextract/internal/protocol/hooks"
)

func main() {
	kind := flag.String("kind", "schema", "config kind: schema|serve")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}

		switch *kind {
		case "schema":
			cat, err := config.LoadCatalog([]string{path}, hooks.Default())
			if err != nil {
				log.Fatal(err)
			}
			log.Printf("Validated %d schemas at %s", cat.Len(), path)
		case "serve":
			if _, err := config.LoadServeConfig(path); err != nil {
				log.Fatal(err)
			}
			log.Printf("Validated serve config at %s", path)
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}

func defaultPath(kind string) string {
	switch kind {
	case "schema":
		return "cmd/canextract/schemas.toml"
	case "serve":
		return "cmd/canextract/serve.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}
