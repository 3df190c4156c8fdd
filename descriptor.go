package stararc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
)

// DescriptorName is the archive descriptor file Open looks for in the
// archive root.
const DescriptorName = "descriptor.json"

const descriptorSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["core"],
	"additionalProperties": false,
	"properties": {
		"core": {"$ref": "#/definitions/file"},
		"extensions": {"type": "array", "items": {"$ref": "#/definitions/file"}}
	},
	"definitions": {
		"file": {
			"type": "object",
			"required": ["location", "rowType", "id"],
			"additionalProperties": false,
			"properties": {
				"location": {"type": "string", "minLength": 1},
				"rowType": {"type": "string", "minLength": 1},
				"fieldsTerminatedBy": {"type": "string"},
				"fieldsEnclosedBy": {"type": "string", "maxLength": 1},
				"linesTerminatedBy": {"type": "string"},
				"ignoreHeaderLines": {"type": "integer", "minimum": 0},
				"encoding": {"type": "string"},
				"id": {
					"type": "object",
					"required": ["index"],
					"additionalProperties": false,
					"properties": {"index": {"type": "integer", "minimum": 0}}
				},
				"fields": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["name"],
						"additionalProperties": false,
						"properties": {
							"name": {"type": "string", "minLength": 1},
							"index": {"type": "integer", "minimum": 0},
							"default": {"type": "string"}
						}
					}
				}
			}
		}
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func compiledDescriptorSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		loader := gojsonschema.NewStringLoader(descriptorSchema)
		compiledSchema, schemaErr = gojsonschema.NewSchema(loader)
	})
	return compiledSchema, schemaErr
}

type fileDescriptor struct {
	Location           string `json:"location"`
	RowType            string `json:"rowType"`
	FieldsTerminatedBy string `json:"fieldsTerminatedBy"`
	FieldsEnclosedBy   string `json:"fieldsEnclosedBy"`
	LinesTerminatedBy  string `json:"linesTerminatedBy"`
	IgnoreHeaderLines  int    `json:"ignoreHeaderLines"`
	Encoding           string `json:"encoding"`
	ID                 struct {
		Index int `json:"index"`
	} `json:"id"`
	Fields []struct {
		Name    string `json:"name"`
		Index   *int   `json:"index"`
		Default string `json:"default"`
	} `json:"fields"`
}

type archiveDescriptor struct {
	Core       fileDescriptor   `json:"core"`
	Extensions []fileDescriptor `json:"extensions"`
}

// Open reads and validates dir/descriptor.json and assembles the
// archive it describes. The data files themselves are not touched until
// an iterator is opened.
func Open(dir string) (*Archive, error) {
	data, err := os.ReadFile(filepath.Join(dir, DescriptorName))
	if err != nil {
		return nil, fmt.Errorf("stararc: read descriptor: %w", err)
	}
	return FromDescriptor(dir, data)
}

// FromDescriptor assembles an archive rooted at dir from raw descriptor
// JSON.
func FromDescriptor(dir string, data []byte) (*Archive, error) {
	schema, err := compiledDescriptorSchema()
	if err != nil {
		return nil, fmt.Errorf("stararc: descriptor schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("stararc: invalid descriptor: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("stararc: invalid descriptor: %s", strings.Join(msgs, "; "))
	}

	var desc archiveDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("stararc: invalid descriptor: %w", err)
	}

	exts := make([]*ArchiveFile, 0, len(desc.Extensions))
	seen := make(map[string]bool, len(desc.Extensions))
	for _, fd := range desc.Extensions {
		key := strings.ToLower(fd.RowType)
		if seen[key] {
			return nil, fmt.Errorf("stararc: invalid descriptor: duplicate extension row type %q", fd.RowType)
		}
		seen[key] = true
		exts = append(exts, buildArchiveFile(fd))
	}
	return New(dir, buildArchiveFile(desc.Core), exts...), nil
}

func buildArchiveFile(fd fileDescriptor) *ArchiveFile {
	af := &ArchiveFile{
		Location:           fd.Location,
		RowType:            fd.RowType,
		FieldsTerminatedBy: fd.FieldsTerminatedBy,
		FieldsEnclosedBy:   fd.FieldsEnclosedBy,
		LinesTerminatedBy:  fd.LinesTerminatedBy,
		IgnoreHeaderLines:  fd.IgnoreHeaderLines,
		Encoding:           fd.Encoding,
		IDIndex:            fd.ID.Index,
		Fields:             make([]Field, 0, len(fd.Fields)),
	}
	for _, f := range fd.Fields {
		idx := -1
		if f.Index != nil {
			idx = *f.Index
		}
		af.Fields = append(af.Fields, Field{Name: f.Name, Index: idx, Default: f.Default})
	}
	return af
}
