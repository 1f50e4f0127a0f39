package fetcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeJSONObject decodes exactly one JSON value from r into a T. Anything
// other than whitespace after the value is an error.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	dec := json.NewDecoder(r)
	var obj T
	if err := dec.Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, eris.New("json: trailing data after object")
	}
	return &obj, nil
}

// DecodeBody decodes a response body holding a single JSON object into T. A
// leading UTF-8 byte order mark, which some upstream gateways prepend, is
// skipped. Bodies that are empty or not an object (null, arrays, scalars) are
// rejected.
func DecodeBody[T any](resp *Response) (*T, error) {
	body := bytes.TrimSpace(bytes.TrimPrefix(resp.Body, utf8BOM))
	if len(body) == 0 {
		return nil, eris.New("json: empty body")
	}
	if body[0] != '{' {
		return nil, eris.New("json: body is not an object")
	}
	return DecodeJSONObject[T](bytes.NewReader(body))
}
