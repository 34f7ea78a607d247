package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/canextract/internal/config"
	"github.com/danmuck/canextract/internal/logging"
	"github.com/danmuck/canextract/internal/observability"
	"github.com/danmuck/canextract/internal/output"
	"github.com/danmuck/canextract/internal/protocol/decode"
	"github.com/danmuck/canextract/internal/protocol/frame"
	"github.com/danmuck/canextract/internal/protocol/hooks"
	"github.com/danmuck/canextract/internal/protocol/schema"
	"github.com/danmuck/canextract/internal/server"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schema-file>...",
		Short: "Check schema files without decoding anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := config.LoadCatalog(args, hooks.Default())
			if err != nil {
				return err
			}
			for _, name := range cat.Names() {
				s, _ := cat.Get(name)
				fmt.Fprintf(cmd.OutOrStdout(), "ok %s fields=%d span=%d layout=%s\n",
					name, s.Len(), s.Span(), s.Layout())
			}
			return nil
		},
	}
}

func newDecodeCmd() *cobra.Command {
	var (
		schemaFiles []string
		name        string
		id          uint32
		format      string
		keepGoing   bool
		candump     bool
		binaryIn    bool
	)
	cmd := &cobra.Command{
		Use:   "decode [frame]...",
		Short: "Decode frames given as arguments or read from stdin",
		Long: `Frames are hex strings, one per argument or stdin line. With --candump
each line is a cansend/candump "ID#DATA" record and the schema is chosen by
CAN id unless --name or --id pins one. With --binary stdin is a stream of
16-byte SocketCAN can_frame structs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			if candump && binaryIn {
				return errors.New("--candump and --binary are exclusive")
			}
			cat, err := config.LoadCatalog(schemaFiles, hooks.Default())
			if err != nil {
				return err
			}

			var fixed *schema.Schema
			byID := cmd.Flags().Changed("id")
			if (!candump && !binaryIn) || name != "" || byID {
				fixed, err = pickSchema(cat, name, id, byID)
				if err != nil {
					return err
				}
			}

			frames, err := collectFrames(cmd.InOrStdin(), args, candump, binaryIn)
			if err != nil {
				return err
			}

			var failed int
			for i, in := range frames {
				err := in.err
				if err == nil {
					sc := fixed
					if sc == nil {
						sc, err = cat.ByID(in.id)
					}
					if err == nil {
						var rec decode.Record
						rec, err = decode.Decode(sc, in.data)
						if err == nil {
							err = output.Render(cmd.OutOrStdout(), f, rec)
						}
					}
				}
				if err != nil {
					failed++
					log.Error().Err(err).Int("frame", i+1).Msg("decode failed")
					if !keepGoing {
						return err
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d frames failed", failed, len(frames))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&schemaFiles, "schemas", "s", nil, "schema file (toml, yaml or json); repeatable")
	cmd.Flags().StringVarP(&name, "name", "n", "", "schema name (optional when the files define one schema)")
	cmd.Flags().Uint32Var(&id, "id", 0, "select the schema by frame id instead of name")
	cmd.Flags().StringVarP(&format, "output", "o", "json", "output format: json|yaml|toml|msgpack|text")
	cmd.Flags().BoolVarP(&keepGoing, "keep-going", "k", false, "continue after a frame fails")
	cmd.Flags().BoolVar(&candump, "candump", false, "input lines are candump ID#DATA records")
	cmd.Flags().BoolVar(&binaryIn, "binary", false, "stdin is a SocketCAN can_frame stream")
	_ = cmd.MarkFlagRequired("schemas")
	return cmd
}

type input struct {
	id   uint32
	data []byte
	err  error
}

// collectFrames gathers every frame up front; per-frame parse errors are
// kept so --keep-going can report them in order.
func collectFrames(stdin io.Reader, args []string, candump, binaryIn bool) ([]input, error) {
	if binaryIn {
		var out []input
		for {
			fr, err := frame.ReadFrame(stdin, binary.LittleEndian)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			out = append(out, input{id: fr.ID, data: fr.Data})
		}
		if len(out) == 0 {
			return nil, errors.New("no frames given")
		}
		return out, nil
	}

	lines := args
	if len(lines) == 0 {
		var err error
		lines, err = readLines(stdin)
		if err != nil {
			return nil, err
		}
	}
	out := make([]input, 0, len(lines))
	for _, line := range lines {
		if candump {
			fr, err := frame.ParseLine(line)
			out = append(out, input{id: fr.ID, data: fr.Data, err: err})
			continue
		}
		data, err := server.ParseHex(line)
		out = append(out, input{data: data, err: err})
	}
	return out, nil
}

func pickSchema(cat *schema.Catalog, name string, id uint32, byID bool) (*schema.Schema, error) {
	switch {
	case byID:
		return cat.ByID(id)
	case name != "":
		return cat.Get(name)
	}
	names := cat.Names()
	if len(names) != 1 {
		return nil, fmt.Errorf("%d schemas loaded, pick one with --name or --id: %s",
			len(names), strings.Join(names, ", "))
	}
	return cat.Get(names[0])
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no frames given")
	}
	return out, nil
}

func newServeCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP decode service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServeConfig(path)
			if err != nil {
				return err
			}
			lvl, ok := logging.ParseLevel(cfg.LogLevel)
			if !ok {
				lvl = zerolog.InfoLevel
			}
			observability.InitLogger(cfg.Name, lvl)
			cat, err := config.LoadCatalog(cfg.Schemas, hooks.Default())
			if err != nil {
				return err
			}
			srv := server.New(server.Config{
				Name:        cfg.Name,
				Addr:        cfg.Addr,
				CorsOrigins: cfg.CorsOrigins,
				Metrics:     cfg.Metrics,
			}, cat)
			return srv.Serve()
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "serve.toml", "service config path")
	return cmd
}

func newHooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hooks",
		Short: "List the built-in decoder hooks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range hooks.Default().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
