package request

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// bodySeparator splits the key/value header block from the free-form body.
const bodySeparator = "\n---\n"

// Marshal serialises a request into its on-disk form: a YAML header block
// followed by an optional free-form body.
func Marshal(r *ActionRequest) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot marshal nil request")
	}
	header, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request header: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(header)
	if r.Body != "" {
		buf.WriteString("---\n")
		buf.WriteString(r.Body)
		if !strings.HasSuffix(r.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// Unmarshal parses the on-disk form back into a request. The header block is
// strictly typed - unknown or malformed headers surface as an error so that
// corrupt records can be quarantined instead of propagating partial data.
func Unmarshal(data []byte) (*ActionRequest, error) {
	header := data
	var body string
	if idx := bytes.Index(data, []byte(bodySeparator)); idx != -1 {
		header = data[:idx+1]
		body = string(data[idx+len(bodySeparator):])
	}
	ret := &ActionRequest{}
	decoder := yaml.NewDecoder(bytes.NewReader(header))
	decoder.KnownFields(true)
	if err := decoder.Decode(ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request header: %w", err)
	}
	ret.Body = body
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
