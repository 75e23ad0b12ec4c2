package authapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

const jsonContentType = "application/json; charset=utf-8"

func encodeJSON(v any) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

var errBodyTooLarge = errors.New("response body too large")

// readBody reads at most maxBytes, failing when the response is larger.
func readBody(r io.Reader, maxBytes int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > maxBytes {
		return nil, errBodyTooLarge
	}
	return b, nil
}
