package torznab

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Error codes defined by the Torznab API.
const (
	CodeBadCredentials   = 100
	CodeMissingParameter = 200
	CodeBadParameter     = 201
	CodeNoSuchFunction   = 202
	CodeUnknown          = 900
)

type errorDoc struct {
	XMLName     xml.Name `xml:"error"`
	Code        int      `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

// WriteError renders a Torznab error document.
func WriteError(w io.Writer, code int, description string) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	if err := xml.NewEncoder(w).Encode(errorDoc{Code: code, Description: description}); err != nil {
		return fmt.Errorf("encode error: %w", err)
	}
	return nil
}
