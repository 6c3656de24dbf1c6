package model

import "fmt"

// Collection is a flat (non-nested) set of Fields. Nesting is represented
// inside a Field's FieldPath, not by nesting Collections.
type Collection struct {
	Name   string
	Fields []Field

	fieldDict            map[string]Field   // keyed by FieldPath.StringPath()
	fieldPathsByCategory map[string][]FieldPath
}

// Build finalizes the derived indices (field_dict, field_paths_by_category)
// from Fields. It must be called after Fields is populated and before the
// Collection is used by the graph builder or query config.
func (c *Collection) Build() error {
	c.fieldDict = make(map[string]Field, len(c.Fields))
	c.fieldPathsByCategory = make(map[string][]FieldPath)
	seen := make(map[string]bool, len(c.Fields))

	for _, f := range c.Fields {
		if seen[f.Name] {
			return fmt.Errorf("collection %q: duplicate field name %q", c.Name, f.Name)
		}
		seen[f.Name] = true

		path := NewFieldPath(f.Name)
		c.fieldDict[path.StringPath()] = f
		for _, cat := range f.DataCategories {
			c.fieldPathsByCategory[cat] = append(c.fieldPathsByCategory[cat], path)
		}
	}
	return nil
}

// Field looks up a Field by its FieldPath.
func (c *Collection) Field(path FieldPath) (Field, bool) {
	f, ok := c.fieldDict[path.StringPath()]
	return f, ok
}

// FieldDict returns the path->Field index built by Build.
func (c *Collection) FieldDict() map[string]Field {
	return c.fieldDict
}

// FieldPathsByCategory returns the category->paths index built by Build.
func (c *Collection) FieldPathsByCategory() map[string][]FieldPath {
	return c.fieldPathsByCategory
}

// PrimaryKeyFieldPaths returns the FieldPaths of all primary-key fields.
func (c *Collection) PrimaryKeyFieldPaths() []FieldPath {
	var out []FieldPath
	for _, f := range c.Fields {
		if f.PrimaryKey {
			out = append(out, NewFieldPath(f.Name))
		}
	}
	return out
}
