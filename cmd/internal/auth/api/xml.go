package authapi

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// xmlFields collects the leaf elements the auth API uses, wherever they appear in the document.
type xmlFields struct {
	GUID         string
	Mail         string
	ProfileImage *string
	SessionToken string
	Items        []string
	Message      string
}

// decodeXMLFields walks the token stream keeping the text of the innermost open element.
// Text is trimmed and assigned when that element closes; unknown elements are ignored.
// A later occurrence of a scalar field replaces an earlier one, except message, where the first non-empty one wins.
func decodeXMLFields(r io.Reader) (xmlFields, error) {
	var (
		f       xmlFields
		current string
		text    strings.Builder
	)

	dec := xml.NewDecoder(r)
	// Bodies declaring a non-UTF-8 encoding (ISO-8859-1, windows-1252) are transcoded.
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		if err != nil {
			return f, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			current = t.Name.Local
			text.Reset()
		case xml.CharData:
			if current != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == current {
				f.assign(current, strings.TrimSpace(text.String()))
			}
			current = ""
			text.Reset()
		}
	}
}

func (f *xmlFields) assign(name, value string) {
	switch name {
	case "guid":
		f.GUID = value
	case "mail":
		f.Mail = value
	case "profile_image":
		if value == "" {
			f.ProfileImage = nil
		} else {
			v := value
			f.ProfileImage = &v
		}
	case "session_token":
		f.SessionToken = value
	case "item":
		if value != "" {
			f.Items = append(f.Items, value)
		}
	case "message":
		if f.Message == "" {
			f.Message = value
		}
	}
}

// errorMessage extracts the server's message from a failure body, or "" when none can be read.
func errorMessage(body []byte) string {
	f, err := decodeXMLFields(bytes.NewReader(body))
	if err != nil && f.Message == "" {
		return ""
	}
	return f.Message
}
