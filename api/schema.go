package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

const sendToTelegramSchema = `{
  "type": "object",
  "required": ["botToken", "chatId", "message"],
  "properties": {
    "botToken": {"type": "string", "minLength": 1},
    "chatId":   {"type": ["string", "integer"], "minLength": 1},
    "message":  {"type": "string", "minLength": 1}
  }
}`

const registerDeviceSchema = `{
  "type": "object",
  "required": ["deviceId", "botToken", "chatId"],
  "properties": {
    "deviceId": {"type": "string", "minLength": 1},
    "botToken": {"type": "string", "minLength": 1},
    "chatId":   {"type": ["string", "integer"], "minLength": 1}
  }
}`

const processSmsSchema = `{
  "type": "object",
  "required": ["deviceId", "sender", "message"],
  "properties": {
    "deviceId":  {"type": "string", "minLength": 1},
    "sender":    {"type": "string", "minLength": 1},
    "message":   {"type": "string", "minLength": 1},
    "timestamp": {
      "anyOf": [
        {"type": "integer", "minimum": 0, "maximum": 8640000000000000},
        {"type": "string", "pattern": "^[0-9]{0,16}$"},
        {"type": "null"}
      ]
    }
  }
}`

var (
	sendSchema     = mustCompile("sendToTelegram", sendToTelegramSchema, "botToken", "chatId", "message")
	registerSchema = mustCompile("registerDevice", registerDeviceSchema, "deviceId", "botToken", "chatId")
	processSchema  = mustCompile("processSms", processSmsSchema, "deviceId", "sender", "message", "timestamp")
)

// requestSchema is a compiled body schema plus the order its fields are
// reported in.
type requestSchema struct {
	name     string
	fields   []string
	compiled *jsonschema.Schema
}

func mustCompile(name, src string, fields ...string) *requestSchema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("api: parse %s schema: %v", name, err))
	}

	url := "smsrelay://schema/" + name

	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	if err := c.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("api: add %s schema: %v", name, err))
	}

	compiled, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("api: compile %s schema: %v", name, err))
	}

	return &requestSchema{name: name, fields: fields, compiled: compiled}
}

// bodyProblem describes why a request body was rejected.
type bodyProblem struct {
	missing []string
	invalid []string
	message string
}

func (p *bodyProblem) String() string {
	switch {
	case len(p.missing) > 0:
		return "Missing required fields: " + strings.Join(p.missing, ", ")
	case len(p.invalid) > 0:
		return "Invalid value for fields: " + strings.Join(p.invalid, ", ")
	default:
		return p.message
	}
}

// check validates body against the schema. An empty body is treated as an
// empty object so that it reports every required field as missing.
func (s *requestSchema) check(body []byte) *bodyProblem {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return &bodyProblem{message: msgInvalidJSON}
	}

	err = s.compiled.Validate(doc)
	if err == nil {
		return nil
	}

	var vErr *jsonschema.ValidationError
	if !errors.As(err, &vErr) {
		return &bodyProblem{message: msgInvalidJSON}
	}

	missing := make(map[string]bool)
	invalid := make(map[string]bool)
	root := false
	collectProblems(vErr, missing, invalid, &root)

	if root && len(missing) == 0 {
		return &bodyProblem{message: msgNotObject}
	}

	p := &bodyProblem{}
	for _, f := range s.fields {
		switch {
		case missing[f]:
			p.missing = append(p.missing, f)
		case invalid[f]:
			p.invalid = append(p.invalid, f)
		}
	}
	if len(p.missing) == 0 && len(p.invalid) == 0 {
		p.message = msgInvalidJSON
	}
	return p
}

// collectProblems walks the leaf errors. Empty strings count as missing.
func collectProblems(e *jsonschema.ValidationError, missing, invalid map[string]bool, root *bool) {
	if len(e.Causes) > 0 {
		for _, c := range e.Causes {
			collectProblems(c, missing, invalid, root)
		}
		return
	}

	switch k := e.ErrorKind.(type) {
	case *kind.Required:
		for _, f := range k.Missing {
			missing[f] = true
		}
	case *kind.MinLength:
		if len(e.InstanceLocation) == 1 {
			missing[e.InstanceLocation[0]] = true
		}
	default:
		if len(e.InstanceLocation) == 0 {
			*root = true
		} else {
			invalid[e.InstanceLocation[0]] = true
		}
	}
}

// validateBody reads the capped body, validates it and hands a fresh reader
// to next.
func (h *Handler) validateBody(s *requestSchema, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := h.config.MaxBodyBytes
		if limit <= 0 {
			limit = DefaultConfig().MaxBodyBytes
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		r.Body.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusBadRequest, msgBodyTooLarge)
				return
			}
			writeError(w, http.StatusBadRequest, msgInvalidJSON)
			return
		}

		if p := s.check(body); p != nil {
			h.logger.DebugContext(r.Context(), "request rejected",
				"route", s.name,
				"reason", p.String(),
				"request_id", RequestID(r.Context()),
			)
			writeError(w, http.StatusBadRequest, p.String())
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next(w, r)
	})
}
