package core

// Schema is the physical layout of a table as read from the store catalog.
type Schema struct {
	// TableName is the name of the table.
	TableName string

	// Columns contains all column definitions for the table, in ordinal order.
	Columns []Column
}

// Column represents a single column in a database table.
type Column struct {
	// Name is the column name.
	Name string

	// Type is the catalog data type (e.g., "int", "varchar", "date").
	Type string

	// Nullable indicates whether the column can contain NULL values.
	Nullable bool
}

// Column returns the column with the given name, if present.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
