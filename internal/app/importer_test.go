package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

const importHeader = "Full Name,Date of Birth,Gender,State,Education Type\n"

func TestImportChildrenAdminOnly(t *testing.T) {
	a := newTestApp(t, newFakeStore(), newMemCache(), &fakeChat{}, &fakeEmbedder{})
	_, err := a.ImportChildren(context.Background(), volunteerUser(),
		strings.NewReader(importHeader), false)
	if err != ErrForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestImportChildrenValidRow(t *testing.T) {
	a := newTestApp(t, newFakeStore(), newMemCache(), &fakeChat{}, &fakeEmbedder{})
	csv := importHeader + "Test Child,15/06/2012,Male,Bihar,School\n"

	result, err := a.ImportChildren(context.Background(), adminUser(), strings.NewReader(csv), false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.ValidCount != 1 || result.InvalidCount != 0 {
		t.Fatalf("counts = %d/%d", result.ValidCount, result.InvalidCount)
	}
	row := result.Rows[0]
	if !row.Valid {
		t.Fatalf("row invalid: %+v", row.Errors)
	}
	if row.Input.Gender != "Male" {
		t.Fatalf("raw gender = %q", row.Input.Gender)
	}
	// Gender case-normalizes and age derives from dd/mm/yyyy dob.
	child, errs := validateImportRow(row.Input, time.Now())
	if len(errs) != 0 {
		t.Fatalf("validate: %v", errs)
	}
	if string(child.Gender) != "MALE" {
		t.Fatalf("gender = %q", child.Gender)
	}
	wantAge := time.Now().Year() - 2012
	age := child.Age(time.Now())
	if age != wantAge && age != wantAge-1 {
		t.Fatalf("age = %d, want ~%d", age, wantAge)
	}
	if age < 5 || age > 20 {
		t.Fatalf("age %d outside accepted range", age)
	}
}

func TestImportChildrenInvalidGenderStaysInPreview(t *testing.T) {
	a := newTestApp(t, newFakeStore(), newMemCache(), &fakeChat{}, &fakeEmbedder{})
	csv := importHeader +
		"Valid Child,15/06/2012,Female,Bihar,School\n" +
		"Bad Gender,15/06/2012,Unknown,Bihar,School\n"

	result, err := a.ImportChildren(context.Background(), adminUser(), strings.NewReader(csv), false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.ValidCount != 1 {
		t.Fatalf("valid count = %d, want 1", result.ValidCount)
	}
	if result.InvalidCount != 1 {
		t.Fatalf("invalid count = %d, want 1", result.InvalidCount)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("preview rows = %d, want 2 (invalid rows stay visible)", len(result.Rows))
	}
	bad := result.Rows[1]
	if bad.Valid {
		t.Fatal("bad-gender row marked valid")
	}
	if msg, ok := bad.Errors["gender"]; !ok || msg == "" {
		t.Fatalf("gender error missing: %+v", bad.Errors)
	}
}

func TestImportChildrenAgeOutOfRange(t *testing.T) {
	a := newTestApp(t, newFakeStore(), newMemCache(), &fakeChat{}, &fakeEmbedder{})
	tooYoung := fmt.Sprintf("Too Young,01/01/%d,Male,Bihar,School\n", time.Now().Year()-2)
	tooOld := "Too Old,01/01/1990,Female,Bihar,School\n"

	result, err := a.ImportChildren(context.Background(), adminUser(),
		strings.NewReader(importHeader+tooYoung+tooOld), false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.InvalidCount != 2 || result.ValidCount != 0 {
		t.Fatalf("counts = %d/%d", result.ValidCount, result.InvalidCount)
	}
	for _, row := range result.Rows {
		if _, ok := row.Errors["dateOfBirth"]; !ok {
			t.Fatalf("row %d missing age error: %+v", row.RowNumber, row.Errors)
		}
	}
}

func TestImportChildrenBadDateFormat(t *testing.T) {
	a := newTestApp(t, newFakeStore(), newMemCache(), &fakeChat{}, &fakeEmbedder{})
	// yyyy-mm-dd is the API format, not the CSV format.
	csv := importHeader + "Wrong Format,2012-06-15,Male,Bihar,School\n"

	result, err := a.ImportChildren(context.Background(), adminUser(), strings.NewReader(csv), false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.InvalidCount != 1 {
		t.Fatalf("invalid count = %d", result.InvalidCount)
	}
}

func TestImportChildrenCommitPersistsOnlyValidRows(t *testing.T) {
	store := newFakeStore()
	a := newTestApp(t, store, newMemCache(), &fakeChat{}, &fakeEmbedder{})
	csv := importHeader +
		"Valid Child,15/06/2012,Male,Bihar,School\n" +
		"Bad Gender,15/06/2012,Other,Bihar,School\n"

	result, err := a.ImportChildren(context.Background(), adminUser(), strings.NewReader(csv), true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !result.Committed || result.CreatedCount != 1 {
		t.Fatalf("committed=%v created=%d", result.Committed, result.CreatedCount)
	}
	if len(store.children) != 1 {
		t.Fatalf("children stored = %d, want 1", len(store.children))
	}
	for _, c := range store.children {
		if c.FullName != "Valid Child" || !c.IsActive || c.ID == "" {
			t.Fatalf("stored child = %+v", c)
		}
	}
}

func TestImportChildrenMissingRequiredColumns(t *testing.T) {
	a := newTestApp(t, newFakeStore(), newMemCache(), &fakeChat{}, &fakeEmbedder{})
	_, err := a.ImportChildren(context.Background(), adminUser(),
		strings.NewReader("Full Name,State\nChild,Bihar\n"), false)
	ve, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(ve.Fields["file"], "dateOfBirth") || !strings.Contains(ve.Fields["file"], "gender") {
		t.Fatalf("missing-column message = %q", ve.Fields["file"])
	}
}

func TestImportChildrenEmptyFile(t *testing.T) {
	a := newTestApp(t, newFakeStore(), newMemCache(), &fakeChat{}, &fakeEmbedder{})
	if _, err := a.ImportChildren(context.Background(), adminUser(), strings.NewReader(""), false); err == nil {
		t.Fatal("expected error for empty csv")
	}
}

func TestImportChildrenHeaderAliases(t *testing.T) {
	a := newTestApp(t, newFakeStore(), newMemCache(), &fakeChat{}, &fakeEmbedder{})
	csv := "name,dob,gender,state,interests\n" +
		"Alias Child,15/06/2012,female,Bihar,cricket; drawing\n"

	result, err := a.ImportChildren(context.Background(), adminUser(), strings.NewReader(csv), false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.ValidCount != 1 {
		t.Fatalf("valid count = %d: %+v", result.ValidCount, result.Rows)
	}
	if got := result.Rows[0].Input.Interests; len(got) != 2 || got[0] != "cricket" {
		t.Fatalf("interests = %v", got)
	}
}
