package schema

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

func testProfile() *Profile {
	return NewProfile(ridesSchema("A/A", "date"))
}

func TestUpsertMapper_Insert(t *testing.T) {
	m := NewUpsertMapper(testProfile())

	stmt, err := m.Insert(map[string]interface{}{
		"THE_DATE": "2024-05-01",
		"FROM":     "Airport",
		"TO":       "Hotel X",
		"PAX":      "2,5",
		"EMAIL":    "guest@example.com", // no such column
		"bogus":    "ignored",
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	wantSQL := "INSERT INTO `data` (`THE_DATE`, `FROM`, `TO`, `PAX`) VALUES (?, ?, ?, ?)"
	if stmt.SQL != wantSQL {
		t.Errorf("Insert() SQL = %q, want %q", stmt.SQL, wantSQL)
	}
	wantArgs := []interface{}{"2024-05-01", "Airport", "Hotel X", 2.5}
	if !reflect.DeepEqual(stmt.Args, wantArgs) {
		t.Errorf("Insert() args = %#v, want %#v", stmt.Args, wantArgs)
	}
	if !reflect.DeepEqual(stmt.Fields, []string{"THE_DATE", "FROM", "TO", "PAX"}) {
		t.Errorf("Insert() fields = %v", stmt.Fields)
	}
}

func TestUpsertMapper_InsertMissingRequired(t *testing.T) {
	m := NewUpsertMapper(testProfile())

	_, err := m.Insert(map[string]interface{}{
		"THE_DATE": "2024-05-01",
		"FROM":     "   ",
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("Insert() error = %v, want validation error", err)
	}
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Insert() error is %T, want *core.ValidationError", err)
	}
	if !reflect.DeepEqual(verr.Missing, []string{"FROM", "TO"}) {
		t.Errorf("Missing = %v, want [FROM TO]", verr.Missing)
	}
}

func TestUpsertMapper_InsertBlankOptionalIsNull(t *testing.T) {
	m := NewUpsertMapper(testProfile())

	stmt, err := m.Insert(map[string]interface{}{
		"THE_DATE": "2024-05-01",
		"FROM":     "A",
		"TO":       "B",
		"DRIVER":   "  ",
		"PAX":      "n/a",
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if got := stmt.Args[len(stmt.Args)-2]; got != nil {
		t.Errorf("PAX arg = %#v, want nil", got)
	}
	if got := stmt.Args[len(stmt.Args)-1]; got != nil {
		t.Errorf("DRIVER arg = %#v, want nil", got)
	}
}

func TestUpsertMapper_Update(t *testing.T) {
	m := NewUpsertMapper(testProfile())

	stmt, err := m.Update("42", map[string]interface{}{
		"DRIVER": "Nikos",
		"TIME":   "",
		"A/A":    "99",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	wantSQL := "UPDATE `data` SET `TIME` = ?, `DRIVER` = ? WHERE `A/A` = ? LIMIT 1"
	if stmt.SQL != wantSQL {
		t.Errorf("Update() SQL = %q, want %q", stmt.SQL, wantSQL)
	}
	wantArgs := []interface{}{nil, "Nikos", "42"}
	if !reflect.DeepEqual(stmt.Args, wantArgs) {
		t.Errorf("Update() args = %#v, want %#v", stmt.Args, wantArgs)
	}
}

func TestUpsertMapper_UpdateNothingRecognized(t *testing.T) {
	m := NewUpsertMapper(testProfile())

	_, err := m.Update("42", map[string]interface{}{"bogus": 1, "EMAIL": "x@y"})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("Update() error = %v, want validation error", err)
	}
	if err.Error() != "No updatable fields provided." {
		t.Errorf("Update() error = %q", err.Error())
	}
}

func TestUpsertMapper_DeleteUsesResolvedID(t *testing.T) {
	m := NewUpsertMapper(NewProfile(ridesSchema("Αναγνωριστικό", "date")))

	stmt := m.Delete("7")
	want := "DELETE FROM `data` WHERE `Αναγνωριστικό` = ? LIMIT 1"
	if stmt.SQL != want {
		t.Errorf("Delete() SQL = %q, want %q", stmt.SQL, want)
	}
	if !reflect.DeepEqual(stmt.Args, []interface{}{"7"}) {
		t.Errorf("Delete() args = %#v", stmt.Args)
	}
}
