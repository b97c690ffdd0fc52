// Package response turns raw inference results into a single display string.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/menta2k/mri-highlighter/pkg/types"
)

const (
	// DefaultTextField is the field hosted inference APIs put generated text in
	DefaultTextField = "generated_text"
	// ErrorField marks an object as an error report
	ErrorField = "error"
)

// Normalize extracts the model text from a payload. ok is false when the
// payload carries an error or has no recognizable shape.
func Normalize(p types.Payload) (string, bool) {
	switch p.Kind {
	case types.PayloadTextObject, types.PayloadPlainString:
		return p.Text, true
	case types.PayloadTextList:
		if len(p.Items) == 0 {
			return "", false
		}
		first := p.Items[0]
		if first.Kind != types.PayloadTextObject && first.Kind != types.PayloadError {
			return "", false
		}
		return Normalize(first)
	default:
		return "", false
	}
}

// Text is Normalize with the failure reason spelled out as an error
func Text(p types.Payload) (string, error) {
	if upstream := upstreamError(p); upstream != nil {
		return "", upstream
	}
	text, ok := Normalize(p)
	if !ok {
		return "", types.ErrNoRecognizedStructure
	}
	if text == "" {
		return "", types.ErrEmptyGeneratedText
	}
	return text, nil
}

func upstreamError(p types.Payload) *types.UpstreamError {
	switch p.Kind {
	case types.PayloadError:
		return &types.UpstreamError{StatusCode: p.Status, Message: p.Error}
	case types.PayloadTextList:
		if len(p.Items) > 0 && p.Items[0].Kind == types.PayloadError {
			return upstreamError(p.Items[0])
		}
	}
	return nil
}

// String wraps raw model output, e.g. from a chat endpoint
func String(s string) types.Payload {
	return types.Payload{Kind: types.PayloadPlainString, Text: s}
}

// Errorf builds an error payload with an optional transport status
func Errorf(status int, format string, args ...any) types.Payload {
	return types.Payload{Kind: types.PayloadError, Status: status, Error: fmt.Sprintf(format, args...)}
}

// Decode parses a JSON body using DefaultTextField
func Decode(data []byte) types.Payload {
	return DecodeWithField(data, DefaultTextField)
}

// DecodeWithField parses a JSON body; bodies that are not JSON are unrecognized
func DecodeWithField(data []byte, field string) types.Payload {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return types.Payload{}
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return types.Payload{}
	}
	return decodeValue(v, field)
}

// DecodeValue classifies an already decoded JSON value
func DecodeValue(v any) types.Payload {
	return decodeValue(v, DefaultTextField)
}

func decodeValue(v any, field string) types.Payload {
	switch t := v.(type) {
	case map[string]any:
		if e, ok := t[ErrorField]; ok && e != nil {
			return types.Payload{Kind: types.PayloadError, Error: errorMessage(e)}
		}
		p := types.Payload{Kind: types.PayloadTextObject}
		if s, ok := t[field].(string); ok {
			p.Text = s
			p.HasText = true
		}
		return p
	case []any:
		items := make([]types.Payload, 0, len(t))
		for _, item := range t {
			items = append(items, decodeValue(item, field))
		}
		return types.Payload{Kind: types.PayloadTextList, Items: items}
	case string:
		return String(t)
	default:
		return types.Payload{}
	}
}

func errorMessage(e any) string {
	switch m := e.(type) {
	case string:
		return m
	case []any:
		var buf bytes.Buffer
		for i, part := range m {
			if i > 0 {
				buf.WriteString("; ")
			}
			buf.WriteString(fmt.Sprint(part))
		}
		return buf.String()
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Sprint(m)
		}
		return string(b)
	}
}
