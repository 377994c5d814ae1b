// Package format renders command results for scripts: JSON, YAML or EDN.
package format

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// Formats lists the accepted --format values.
var Formats = []string{"json", "yaml", "edn"}

// Write writes v in the requested format. JSON is the default.
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "yaml":
		return WriteYAML(w, v)
	case "edn":
		return WriteEDN(w, v, pretty)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = sonic.ConfigStd.MarshalIndent(v, "", "  ")
	} else {
		b, err = sonic.ConfigStd.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteYAML goes through the JSON form first so json tags decide the keys.
func WriteYAML(w io.Writer, v any) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(x); err != nil {
		return err
	}
	return enc.Close()
}

func generic(v any) (any, error) {
	b, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return nil, err
	}
	var x any
	if err := sonic.ConfigStd.Unmarshal(b, &x); err != nil {
		return nil, err
	}
	return x, nil
}
