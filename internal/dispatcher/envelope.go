package dispatcher

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// request is the decoded §6.1 command envelope: {"cmd": ..., "args": ...}.
// Args is normalized to JSON bytes regardless of wire codec so every
// endpoint handler decodes through encoding/json alone.
type request struct {
	Cmd  string
	Args json.RawMessage
}

// responseBody is the §6.1 response envelope's body: {response_code, data}.
type responseBody struct {
	ResponseCode int `json:"response_code"`
	Data         any `json:"data,omitempty"`
}

// looksLikeJSON sniffs the first non-whitespace byte: a JSON object
// envelope always opens with '{'; any MessagePack encoding of a map
// (fixmap 0x80-0x8f, map16 0xde, map32 0xdf) starts elsewhere.
func looksLikeJSON(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// decodeRequest accepts either a JSON or a MessagePack-encoded envelope
// and reports which codec it used, so the matching codec is used to
// encode the response (§6.1 framing).
func decodeRequest(raw []byte) (request, bool, error) {
	if looksLikeJSON(raw) {
		var env struct {
			Cmd  string          `json:"cmd"`
			Args json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return request{}, false, fmt.Errorf("decode json envelope: %w", err)
		}
		return request{Cmd: env.Cmd, Args: env.Args}, false, nil
	}

	var env map[string]any
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return request{}, true, fmt.Errorf("decode msgpack envelope: %w", err)
	}
	cmd, _ := env["cmd"].(string)
	argsBytes, err := json.Marshal(env["args"])
	if err != nil {
		return request{}, true, fmt.Errorf("normalize msgpack args: %w", err)
	}
	return request{Cmd: cmd, Args: argsBytes}, true, nil
}

// encodeResponse serializes the §6.1 response envelope through whichever
// codec the request arrived in.
func encodeResponse(cmd string, body responseBody, useMsgpack bool) ([]byte, error) {
	if useMsgpack {
		return msgpack.Marshal(map[string]any{
			"cmd": cmd,
			"body": map[string]any{
				"response_code": body.ResponseCode,
				"data":          body.Data,
			},
		})
	}
	return json.Marshal(struct {
		Cmd  string       `json:"cmd"`
		Body responseBody `json:"body"`
	}{Cmd: cmd, Body: body})
}
