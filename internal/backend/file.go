package backend

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v2"

	"grimm.is/scribe/internal/config"
	"grimm.is/scribe/internal/errors"
)

// OpenFile reads a definitions file. The format follows the extension:
// .json, .yaml or .yml; anything else is HCL.
func OpenFile(path string) (Handle, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	return &docHandle{doc: doc}, nil
}

// LoadDocument reads and decodes a definitions file without converting it.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		kind := errors.KindIO
		if os.IsNotExist(err) {
			kind = errors.KindNotFound
		}
		return nil, errors.Attr(errors.Wrap(err, kind, "failed to read definitions"), "path", path)
	}

	doc, err := ParseDocument(data, path)
	if err != nil {
		return nil, errors.Attr(err, "path", path)
	}
	return doc, nil
}

// ParseDocument decodes definitions; filename selects the format.
func ParseDocument(data []byte, filename string) (*Document, error) {
	var doc Document

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, errors.KindValidation, "JSON parse error")
		}
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, &doc); err != nil {
			return nil, errors.Wrap(err, errors.KindValidation, "YAML parse error")
		}
	default:
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCL(data, filename)
		if diags.HasErrors() {
			return nil, errors.Errorf(errors.KindValidation, "HCL parse error: %s", diags.Error())
		}
		if diags := gohcl.DecodeBody(file.Body, config.EvalContext(), &doc); diags.HasErrors() {
			return nil, errors.Errorf(errors.KindValidation, "HCL decode error: %s", diags.Error())
		}
	}
	return &doc, nil
}
