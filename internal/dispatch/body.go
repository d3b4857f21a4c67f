package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

// ErrMalformedBody is returned by DecodeBody for JSON that does not parse.
var ErrMalformedBody = errors.New("dispatch: malformed request body")

// IsJSON reports whether a media type carries JSON.
func IsJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// DecodeBody parses a JSON request body, keeping numbers as json.Number. An
// empty body, or one of another content type, decodes to nil.
func DecodeBody(contentType string, raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 || !IsJSON(contentType) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedBody)
	}
	return v, nil
}

// encodeContent serializes a handler payload for contentType. Text media
// types take strings and byte slices as is; everything else is JSON.
func encodeContent(contentType string, content any) ([]byte, error) {
	if strings.HasPrefix(contentType, "text/") {
		switch c := content.(type) {
		case string:
			return []byte(c), nil
		case []byte:
			return c, nil
		}
	}
	return json.Marshal(content)
}
