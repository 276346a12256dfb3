package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

func encodeYAML(w io.Writer, v any) error {
	bw := bufio.NewWriter(w)
	encoder := yaml.NewEncoder(bw)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return bw.Flush()
}
