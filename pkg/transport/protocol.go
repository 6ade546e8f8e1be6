package transport

import (
	"bytes"
	"encoding/base64"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/orneryd/gizmo/pkg/convert"
)

// MimeType is the serializer negotiated with the server.
const MimeType = "application/vnd.gremlin-v1.0+json"

// Status codes used by the server protocol.
const (
	StatusSuccess        = 200
	StatusNoContent      = 204
	StatusPartialContent = 206
	StatusAuthenticate   = 407
)

type request struct {
	RequestID string         `json:"requestId"`
	Op        string         `json:"op"`
	Processor string         `json:"processor"`
	Args      map[string]any `json:"args"`
}

type response struct {
	RequestID string `json:"requestId"`
	Status    struct {
		Code       int            `json:"code"`
		Message    string         `json:"message"`
		Attributes map[string]any `json:"attributes"`
	} `json:"status"`
	Result struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
}

func evalRequest(id, script string, bindings map[string]any) request {
	if bindings == nil {
		bindings = map[string]any{}
	}
	return request{
		RequestID: id,
		Op:        "eval",
		Args: map[string]any{
			"gremlin":  script,
			"bindings": bindings,
			"language": "gremlin-groovy",
		},
	}
}

func authRequest(id, username, password string) request {
	token := base64.StdEncoding.EncodeToString([]byte("\x00" + username + "\x00" + password))
	return request{
		RequestID: id,
		Op:        "authentication",
		Args: map[string]any{
			"sasl":          token,
			"saslMechanism": "PLAIN",
		},
	}
}

// encodeFrame prefixes the JSON request with the length-prefixed mime type.
func encodeFrame(req request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("transport: encode request: %w", err)
	}
	frame := make([]byte, 0, 1+len(MimeType)+len(body))
	frame = append(frame, byte(len(MimeType)))
	frame = append(frame, MimeType...)
	return append(frame, body...), nil
}

func decodeResponse(msg []byte) (*response, error) {
	var resp response
	if err := json.Unmarshal(msg, &resp); err != nil {
		return nil, fmt.Errorf("transport: decode response: %w", err)
	}
	return &resp, nil
}

// decodeData decodes result rows keeping integers exact.
func decodeData(raw json.RawMessage) ([]any, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("transport: decode result: %w", err)
	}
	data = normalize(data)
	if rows, ok := data.([]any); ok {
		return rows, nil
	}
	return []any{data}, nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := convert.ToFloat64(val.String())
		return f
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
	}
	return v
}

// ServerError is an error status returned by the server.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("transport: server error %d: %s", e.Code, e.Message)
}
