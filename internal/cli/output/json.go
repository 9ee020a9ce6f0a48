package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes indented JSON. URLs and tokens are written as-is,
// without HTML escaping of '&', '<' and '>'.
type JSONFormatter struct{}

// Format implements Formatter.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}
