package schema

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

// Statement is a parameterized SQL statement.
type Statement struct {
	SQL  string
	Args []interface{}

	// Fields lists the business fields the statement writes.
	Fields []string
}

// UpsertMapper turns client field maps into INSERT, UPDATE and DELETE
// statements against a profiled table. Only recognized fields whose column
// exists in the profile are written.
type UpsertMapper struct {
	profile   *Profile
	fields    []Field
	validator *FieldValidator
}

// NewUpsertMapper creates a mapper for rides.
func NewUpsertMapper(profile *Profile) *UpsertMapper {
	return NewUpsertMapperWithFields(profile, RideFields, RequiredRideFields)
}

// NewUpsertMapperWithFields creates a mapper with a custom field list.
func NewUpsertMapperWithFields(profile *Profile, fields []Field, required []string) *UpsertMapper {
	return &UpsertMapper{
		profile:   profile,
		fields:    fields,
		validator: NewFieldValidator(required),
	}
}

// Insert builds an INSERT for input. The id column is left to the store.
func (m *UpsertMapper) Insert(input map[string]interface{}) (Statement, error) {
	if err := m.validator.ValidateRequired(input); err != nil {
		return Statement{}, err
	}

	columns, args, names := m.collect(input)
	if len(columns) == 0 {
		return Statement{}, core.NewValidationError("No insertable fields provided.")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(m.profile.Table),
		strings.Join(columns, ", "),
		placeholders,
	)
	return Statement{SQL: query, Args: args, Fields: names}, nil
}

// Update builds an UPDATE of the record with the given id, touching only the
// fields present in input.
func (m *UpsertMapper) Update(id string, input map[string]interface{}) (Statement, error) {
	columns, args, names := m.collect(input)
	if len(columns) == 0 {
		return Statement{}, core.NewValidationError("No updatable fields provided.")
	}

	setParts := make([]string, len(columns))
	for i, col := range columns {
		setParts[i] = col + " = ?"
	}
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ? LIMIT 1",
		QuoteIdent(m.profile.Table),
		strings.Join(setParts, ", "),
		QuoteIdent(m.profile.IDColumn),
	)
	return Statement{SQL: query, Args: append(args, id), Fields: names}, nil
}

// Delete builds a DELETE of the record with the given id.
func (m *UpsertMapper) Delete(id string) Statement {
	query := fmt.Sprintf(
		"DELETE FROM %s WHERE %s = ? LIMIT 1",
		QuoteIdent(m.profile.Table),
		QuoteIdent(m.profile.IDColumn),
	)
	return Statement{SQL: query, Args: []interface{}{id}}
}

func (m *UpsertMapper) collect(input map[string]interface{}) ([]string, []interface{}, []string) {
	columns := make([]string, 0, len(m.fields))
	args := make([]interface{}, 0, len(m.fields))
	names := make([]string, 0, len(m.fields))

	for _, f := range m.fields {
		value, present := input[f.Name]
		if !present || !m.profile.Has(f.Name) || f.Name == m.profile.IDColumn {
			continue
		}
		columns = append(columns, QuoteIdent(f.Name))
		args = append(args, f.Coerce(value))
		names = append(names, f.Name)
	}
	return columns, args, names
}
