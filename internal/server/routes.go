package server

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/canextract/internal/output"
	"github.com/danmuck/canextract/internal/protocol"
	"github.com/danmuck/canextract/internal/protocol/schema"
)

// maxFrameBody bounds request bodies; frames are tiny.
const maxFrameBody = 64 << 10

var (
	ErrBadFrame      = errors.New("server: malformed frame")
	ErrFrameTooLarge = errors.New("server: frame body too large")
)

type SchemaInfo struct {
	Name     string      `json:"name"`
	ID       *uint32     `json:"id,omitempty"`
	FrameLen int         `json:"frame_len"`
	Layout   string      `json:"layout"`
	Fields   []FieldInfo `json:"fields"`
}

type FieldInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Offset  int    `json:"offset"`
	Width   int    `json:"width"`
	Order   string `json:"order"`
	Decoder string `json:"decoder,omitempty"`
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"schemas": s.Catalog.Len(),
			"version": version,
		})
	})

	if s.metrics {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	s.router.GET("/schemas", func(c *gin.Context) {
		names := s.Catalog.Names()
		list := make([]SchemaInfo, 0, len(names))
		for _, name := range names {
			sc, err := s.Catalog.Get(name)
			if err != nil {
				continue
			}
			list = append(list, describe(sc))
		}
		c.JSON(http.StatusOK, gin.H{"schemas": list})
	})

	s.router.POST("/decode/:schema", func(c *gin.Context) {
		sc, err := s.Catalog.Get(c.Param("schema"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.decodeWith(c, sc)
	})

	s.router.POST("/decode/id/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 0, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid id %q", c.Param("id"))})
			return
		}
		sc, err := s.Catalog.ByID(uint32(id))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.decodeWith(c, sc)
	})
}

func (s *Server) decodeWith(c *gin.Context, sc *schema.Schema) {
	format, err := output.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	frame, err := readFrame(c)
	if err != nil {
		_ = c.Error(err)
		status := http.StatusBadRequest
		if errors.Is(err, ErrFrameTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	rec, err := s.decoder.Decode(sc, frame)
	if err != nil {
		_ = c.Error(err)
		field, _ := protocol.FieldOf(err)
		c.JSON(statusFor(err), gin.H{
			"error":  err.Error(),
			"kind":   protocol.Kind(err),
			"field":  field,
			"schema": sc.Name(),
		})
		return
	}

	body, err := output.Marshal(format, rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, format.ContentType(), body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrUnknownSchema):
		return http.StatusNotFound
	case errors.Is(err, protocol.ErrSlicing),
		errors.Is(err, protocol.ErrConversion),
		errors.Is(err, protocol.ErrHook):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// readFrame accepts a hex body (whitespace and 0x prefix tolerated) or a
// JSON object {"data": "<hex>"}.
func readFrame(c *gin.Context) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFrameBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if len(raw) > maxFrameBody {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrFrameTooLarge, maxFrameBody)
	}
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(c.ContentType(), "application/json") || strings.HasPrefix(text, "{") {
		var req struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
		}
		text = req.Data
	}
	return ParseHex(text)
}

// ParseHex decodes a frame written as hex, ignoring whitespace, ':' and '-'
// separators and a leading 0x.
func ParseHex(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	text = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':', '-':
			return -1
		}
		return r
	}, text)
	frame, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return frame, nil
}

func describe(sc *schema.Schema) SchemaInfo {
	info := SchemaInfo{
		Name:     sc.Name(),
		FrameLen: sc.FrameLen(),
		Layout:   sc.Layout().String(),
	}
	if id, ok := sc.ID(); ok {
		info.ID = &id
	}
	for _, f := range sc.Fields() {
		info.Fields = append(info.Fields, FieldInfo{
			Name:    f.Name,
			Type:    f.Kind.String(),
			Offset:  f.Offset,
			Width:   f.Width,
			Order:   f.Order.String(),
			Decoder: f.DecoderName,
		})
	}
	return info
}
