// Package datasetdef parses the external dataset-definition format (YAML or
// JSON, per the wire shape collections and connectors are authored in) into
// internal/model's Dataset/Collection/Field graph, validating the fields
// along the way.
package datasetdef

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ethyca-go/privacyrun/internal/model"
)

// fieldDef is the wire shape of one field entry in a dataset definition.
type fieldDef struct {
	Name           string         `yaml:"name"`
	DataType       string         `yaml:"data_type"`
	Length         *int           `yaml:"length"`
	PrimaryKey     bool           `yaml:"primary_key"`
	DataCategories []string       `yaml:"data_categories"`
	References     []referenceDef `yaml:"references"`
	IdentityTag    string         `yaml:"identity"`

	// Fields is rejected at validation time: nested field definitions are
	// not supported. Kept only so loading can detect and reject them with a
	// precise error instead of silently dropping the nested block.
	Fields []fieldDef `yaml:"fields"`
}

type referenceDef struct {
	Dataset    string `yaml:"dataset"`
	Collection string `yaml:"field"` // "collection.path" joined form
	Direction  string `yaml:"direction"`
}

type collectionDef struct {
	Name   string     `yaml:"name"`
	Fields []fieldDef `yaml:"fields"`
}

type connectionRefDef struct {
	ConnectionKey string `yaml:"connection_key"`
}

type datasetDef struct {
	FidesKey    string            `yaml:"fides_key"`
	Name        string            `yaml:"name"`
	Collections []collectionDef   `yaml:"collections"`
	Connection  connectionRefDef  `yaml:"connection"`
}

type datasetFile struct {
	Dataset []datasetDef `yaml:"dataset"`
}

// ParseError reports a problem found while validating one field of one
// collection, reproducing the exact validation strings a caller expects
// ("Illegal length...", "The data type...is not supported.").
type ParseError struct {
	Dataset    string
	Collection string
	Field      string
	Message    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %s", e.Dataset, e.Collection, e.Field, e.Message)
}

// LoadDatasets parses a YAML document containing one or more dataset
// definitions under a top-level "dataset" key, resolving each field's
// DataTypeConverter against registry and validating length/data-type
// declarations. It does not attempt dataset discovery or schema inference:
// every field must be explicitly declared.
func LoadDatasets(doc []byte, registry *model.ConverterRegistry) ([]model.Dataset, error) {
	var file datasetFile
	if err := yaml.Unmarshal(doc, &file); err != nil {
		return nil, fmt.Errorf("datasetdef: %w", err)
	}

	out := make([]model.Dataset, 0, len(file.Dataset))
	for _, dd := range file.Dataset {
		ds, err := convertDataset(dd, registry)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

func convertDataset(dd datasetDef, registry *model.ConverterRegistry) (model.Dataset, error) {
	ds := model.Dataset{
		FidesKey:      dd.FidesKey,
		Name:          dd.Name,
		ConnectionRef: dd.Connection.ConnectionKey,
	}

	for _, cd := range dd.Collections {
		coll, err := convertCollection(dd.FidesKey, cd, registry)
		if err != nil {
			return model.Dataset{}, err
		}
		ds.Collections = append(ds.Collections, coll)
	}
	return ds, nil
}

func convertCollection(datasetKey string, cd collectionDef, registry *model.ConverterRegistry) (model.Collection, error) {
	coll := model.Collection{Name: cd.Name}

	for _, fd := range cd.Fields {
		f, err := convertField(datasetKey, cd.Name, fd, registry)
		if err != nil {
			return model.Collection{}, err
		}
		coll.Fields = append(coll.Fields, f)
	}

	if err := coll.Build(); err != nil {
		return model.Collection{}, &ParseError{
			Dataset:    datasetKey,
			Collection: cd.Name,
			Field:      "*",
			Message:    err.Error(),
		}
	}
	return coll, nil
}

func convertField(datasetKey, collectionName string, fd fieldDef, registry *model.ConverterRegistry) (model.Field, error) {
	if len(fd.Fields) > 0 {
		return model.Field{}, &ParseError{
			Dataset:    datasetKey,
			Collection: collectionName,
			Field:      fd.Name,
			Message:    "nested field definitions are not supported; flatten the field path instead",
		}
	}

	length := 0
	if fd.Length != nil {
		if *fd.Length <= 0 {
			return model.Field{}, &ParseError{
				Dataset:    datasetKey,
				Collection: collectionName,
				Field:      fd.Name,
				Message:    fmt.Sprintf("Illegal length (%d). Only positive non-zero values are allowed.", *fd.Length),
			}
		}
		length = *fd.Length
	}

	if fd.DataType != "" && !registry.Supported(fd.DataType) {
		return model.Field{}, &ParseError{
			Dataset:    datasetKey,
			Collection: collectionName,
			Field:      fd.Name,
			Message:    fmt.Sprintf("The data type %s is not supported.", fd.DataType),
		}
	}

	f := model.Field{
		Name:           fd.Name,
		DataType:       fd.DataType,
		Length:         length,
		PrimaryKey:     fd.PrimaryKey,
		DataCategories: fd.DataCategories,
		IdentityTag:    fd.IdentityTag,
	}
	f = f.WithConverterRegistry(registry)

	for _, rd := range fd.References {
		ref, err := convertReference(datasetKey, collectionName, fd.Name, rd)
		if err != nil {
			return model.Field{}, err
		}
		f.References = append(f.References, ref)
	}
	return f, nil
}

func convertReference(datasetKey, collectionName, fieldName string, rd referenceDef) (model.FieldReference, error) {
	dir := model.ReferenceDirection(rd.Direction)
	switch dir {
	case model.DirectionIn, model.DirectionOut, model.DirectionBidirectional:
	case "":
		dir = model.DirectionOut
	default:
		return model.FieldReference{}, &ParseError{
			Dataset:    datasetKey,
			Collection: collectionName,
			Field:      fieldName,
			Message:    fmt.Sprintf("unknown reference direction %q", rd.Direction),
		}
	}

	targetDataset, targetCollection, targetPath := splitReferenceField(rd)
	if targetDataset == "" {
		targetDataset = datasetKey
	}

	return model.FieldReference{
		Target: model.ReferenceTarget{
			Dataset:    targetDataset,
			Collection: targetCollection,
			FieldPath:  model.ParseFieldPath(targetPath),
		},
		Direction: dir,
	}, nil
}

// splitReferenceField interprets referenceDef.Dataset/Collection wire
// fields, where Collection carries "collection.field_path" as fidesops'
// own dataset YAML does.
func splitReferenceField(rd referenceDef) (dataset, collection, fieldPath string) {
	raw := rd.Collection
	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			return rd.Dataset, raw[:i], raw[i+1:]
		}
	}
	return rd.Dataset, raw, ""
}
