package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/storage"
)

var ErrImport = errs.Code{Component: "cmd", Number: 1, Name: "import_failed"}

// importDocument is the on-disk shape `import` decodes, a minimal schema
// (entity/attribute/relation type declarations) plus data (instances and
// the has-edges between them) — enough to exercise CreateType/CreateEntity/
// PutAttribute/SetHas without inventing a full query language at the CLI
// boundary (spec.md §6 "DatabaseImportError").
type importDocument struct {
	Entities   []string            `yaml:"entities"`
	Attributes []importAttribute   `yaml:"attributes"`
	Owns       []importOwns        `yaml:"owns"`
	Data       []importEntityData  `yaml:"data"`
}

type importAttribute struct {
	Label     string `yaml:"label"`
	ValueType string `yaml:"value_type"`
}

type importOwns struct {
	Owner string `yaml:"owner"`
	Attr  string `yaml:"attr"`
}

type importEntityData struct {
	Type       string            `yaml:"type"`
	Attributes map[string]string `yaml:"attributes"`
}

func newImportCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a schema-and-data document into a fresh database directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(dataDir, args[0])
		},
	}
	cmd.Flags().StringVarP(&dataDir, "data-directory", "d", "", "Target database directory (required)")
	cmd.MarkFlagRequired("data-directory")
	return cmd
}

func runImport(dataDir, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(ErrImport, err, "reading import document %s", path)
	}
	var doc importDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return errs.Wrap(ErrImport, err, "parsing import document %s", path)
	}

	st, err := storage.Open(dataDir)
	if err != nil {
		return errs.Wrap(ErrImport, err, "opening database directory %s", dataDir)
	}
	defer st.Close()

	w := st.OpenWriteSnapshot()
	types := concept.NewTypeManager(w)
	things := concept.NewThingManager(types)

	created := map[string]*concept.TypeRecord{}
	for _, label := range doc.Entities {
		rec, err := types.CreateType(w, concept.KindEntity, label)
		if err != nil {
			return errs.Wrap(ErrImport, err, "creating entity type %q", label)
		}
		created[label] = rec
	}
	for _, a := range doc.Attributes {
		rec, err := types.CreateType(w, concept.KindAttribute, a.Label)
		if err != nil {
			return errs.Wrap(ErrImport, err, "creating attribute type %q", a.Label)
		}
		vt, err := parseValueType(a.ValueType)
		if err != nil {
			return errs.Wrap(ErrImport, err, "attribute type %q", a.Label)
		}
		types.SetValueType(rec, vt)
		created[a.Label] = rec
	}
	for _, o := range doc.Owns {
		owner, ok := created[o.Owner]
		if !ok {
			return errs.New(ErrImport, "owns declares unknown owner type %q", o.Owner)
		}
		attr, ok := created[o.Attr]
		if !ok {
			return errs.New(ErrImport, "owns declares unknown attribute type %q", o.Attr)
		}
		types.SetOwns(w, owner, attr, concept.Annotations{CardMax: -1})
	}

	imported := 0
	for _, row := range doc.Data {
		typ, ok := created[row.Type]
		if !ok {
			return errs.New(ErrImport, "data row references unknown type %q", row.Type)
		}
		entity, err := things.CreateEntity(w, typ)
		if err != nil {
			return errs.Wrap(ErrImport, err, "creating %s instance", row.Type)
		}
		for attrLabel, raw := range row.Attributes {
			attrType, ok := created[attrLabel]
			if !ok {
				return errs.New(ErrImport, "data row references unknown attribute %q", attrLabel)
			}
			value, err := parseAttributeValue(attrType.ValueType, raw)
			if err != nil {
				return errs.Wrap(ErrImport, err, "parsing value for attribute %q", attrLabel)
			}
			attrThing, err := things.PutAttribute(w, attrType, value)
			if err != nil {
				return errs.Wrap(ErrImport, err, "putting attribute %q", attrLabel)
			}
			if err := things.SetHas(w, typ, entity, attrType, attrThing); err != nil {
				return errs.Wrap(ErrImport, err, "setting has for attribute %q", attrLabel)
			}
		}
		imported++
	}

	if _, err := w.Commit(); err != nil {
		return errs.Wrap(ErrImport, err, "committing import")
	}
	fmt.Printf("imported %d entities, %d entity types, %d attribute types\n", imported, len(doc.Entities), len(doc.Attributes))
	return nil
}

func parseValueType(s string) (concept.ValueType, error) {
	switch s {
	case "boolean":
		return concept.ValueTypeBoolean, nil
	case "long":
		return concept.ValueTypeLong, nil
	case "double":
		return concept.ValueTypeDouble, nil
	case "string":
		return concept.ValueTypeString, nil
	default:
		return concept.ValueTypeNone, errs.New(ErrImport, "unsupported value_type %q", s)
	}
}

func parseAttributeValue(vt concept.ValueType, raw string) (concept.Value, error) {
	switch vt {
	case concept.ValueTypeString:
		return concept.Value{Type: concept.ValueTypeString, String: raw}, nil
	case concept.ValueTypeBoolean:
		return concept.Value{Type: concept.ValueTypeBoolean, Boolean: raw == "true"}, nil
	case concept.ValueTypeLong:
		var n int64
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
			return concept.Value{}, errs.Wrap(ErrImport, err, "parsing long %q", raw)
		}
		return concept.Value{Type: concept.ValueTypeLong, Long: n}, nil
	case concept.ValueTypeDouble:
		var f float64
		if _, err := fmt.Sscanf(raw, "%g", &f); err != nil {
			return concept.Value{}, errs.Wrap(ErrImport, err, "parsing double %q", raw)
		}
		return concept.Value{Type: concept.ValueTypeDouble, Double: f}, nil
	default:
		return concept.Value{}, errs.New(ErrImport, "unsupported value type for import")
	}
}
