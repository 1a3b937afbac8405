package modelfile

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dwhswenson/codemodel"
)

// JSONLoader implements Loader for JSON package files: a top-level array
// of packages.
type JSONLoader struct{}

func (JSONLoader) Format() string { return "json" }

func (JSONLoader) Extensions() []string { return []string{".json"} }

func (JSONLoader) Load(r io.Reader) ([]Package, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var packages []Package
	if err := dec.Decode(&packages); err != nil {
		return nil, codemodel.NewSerializationError("failed to parse package JSON", err)
	}
	return packages, nil
}

func (JSONLoader) Save(w io.Writer, packages []Package) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(packages); err != nil {
		return codemodel.NewSerializationError("failed to write package JSON", err)
	}
	return nil
}

// YAMLLoader implements Loader for YAML package files.
type YAMLLoader struct{}

func (YAMLLoader) Format() string { return "yaml" }

func (YAMLLoader) Extensions() []string { return []string{".yaml", ".yml"} }

func (YAMLLoader) Load(r io.Reader) ([]Package, error) {
	var packages []Package
	if err := yaml.NewDecoder(r).Decode(&packages); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, codemodel.NewSerializationError("failed to parse package YAML", err)
	}
	return packages, nil
}

func (YAMLLoader) Save(w io.Writer, packages []Package) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(packages); err != nil {
		return codemodel.NewSerializationError("failed to write package YAML", err)
	}
	return enc.Close()
}
