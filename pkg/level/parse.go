package level

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/daviddao/wordweave/pkg/model"
)

// Parse decodes a level document. YAML is the native format; JSON documents
// decode as well since JSON is valid YAML. Unknown keys are rejected so a
// typo in a field name does not silently produce an empty level.
//
// Parse does not validate; call Check on the result.
func Parse(data []byte) (*model.LevelSpec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("parse level: empty document")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var l model.LevelSpec
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}
	var extra any
	switch err := dec.Decode(&extra); {
	case err == nil:
		return nil, errors.New("parse level: more than one document")
	case !errors.Is(err, io.EOF):
		return nil, fmt.Errorf("parse level: %w", err)
	}
	return &l, nil
}

// Marshal encodes a level as YAML.
func Marshal(l *model.LevelSpec) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return nil, fmt.Errorf("marshal level %d: %w", l.LevelID, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
