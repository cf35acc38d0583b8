package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/masomo-grading/core/scheme"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var readFileFunc = os.ReadFile // mockable

// normalize prints the persistable form of the scheme serialized in file.
// Unlike drafts, a malformed scheme is an error here.
func (cli *commandLine) normalize(file, format string, diff bool) error {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = readFileFunc(file)
	}
	if err != nil {
		return errors.Wrap(err, "reading scheme")
	}

	entries, err := scheme.Parse(string(data))
	if err != nil {
		return errors.Wrapf(err, "parsing %s", file)
	}
	s := scheme.New(entries...)
	if s.Total() == 0 {
		return scheme.ErrZeroTotal
	}
	p := s.ToPersistable()

	if !diff {
		return encode(cli.out, format, p)
	}

	before, err := marshal(format, scheme.Persistable{Schemes: entries})
	if err != nil {
		return err
	}
	after, err := marshal(format, p)
	if err != nil {
		return err
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: file,
		ToFile:   file + " (normalized)",
		Context:  3,
	})
	if err != nil {
		return errors.Wrap(err, "diffing schemes")
	}
	_, err = fmt.Fprint(cli.out, text)
	return err
}

// defaults prints the equal split of names.
func (cli *commandLine) defaults(names []string, format string) error {
	return encode(cli.out, format, scheme.Persistable{Schemes: scheme.Defaults(names)})
}

func marshal(format string, p scheme.Persistable) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, format, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(w io.Writer, format string, p scheme.Persistable) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return errors.Wrap(err, "encoding yaml")
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(p), "encoding json")
	}
}
