package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"careline/pkg/domain"
)

// csvHeaderFields maps normalized CSV header names to child profile fields.
// Several spellings are accepted per field; matching is case-insensitive and
// ignores spaces and underscores.
var csvHeaderFields = map[string]string{
	"fullname":        "fullName",
	"name":            "fullName",
	"childname":       "fullName",
	"dateofbirth":     "dateOfBirth",
	"dob":             "dateOfBirth",
	"birthdate":       "dateOfBirth",
	"gender":          "gender",
	"state":           "state",
	"district":        "district",
	"city":            "city",
	"background":      "background",
	"educationtype":   "educationType",
	"education":       "educationType",
	"gradelevel":      "gradeLevel",
	"grade":           "gradeLevel",
	"contactnumber":   "contactNumber",
	"contact":         "contactNumber",
	"guardiancontact": "guardianContact",
	"interests":       "interests",
	"concerns":        "concernNotes",
	"concernnotes":    "concernNotes",
	"language":        "language",
}

// ImportRow is one parsed CSV row with its validation outcome. Invalid rows
// stay in the preview with their errors listed.
type ImportRow struct {
	RowNumber int               `json:"rowNumber"`
	Input     ChildInput        `json:"input"`
	Errors    map[string]string `json:"errors,omitempty"`
	Valid     bool              `json:"valid"`
}

// ImportResult reports the preview (and, on commit, how many rows were
// written).
type ImportResult struct {
	Rows         []ImportRow `json:"rows"`
	ValidCount   int         `json:"validCount"`
	InvalidCount int         `json:"invalidCount"`
	Committed    bool        `json:"committed"`
	CreatedCount int         `json:"createdCount"`
}

// ImportChildren parses a CSV stream, validates every row, and either
// previews the outcome or commits the valid rows. Admin only.
func (a *App) ImportChildren(ctx context.Context, user domain.User, r io.Reader, commit bool) (ImportResult, error) {
	if user.Role != domain.RoleAdmin {
		return ImportResult{}, ErrForbidden
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return ImportResult{}, NewValidationError("file", "csv file is empty")
	}
	if err != nil {
		return ImportResult{}, NewValidationError("file", fmt.Sprintf("invalid csv: %v", err))
	}
	columns, err := mapHeader(header)
	if err != nil {
		return ImportResult{}, err
	}

	now := time.Now()
	result := ImportResult{}
	valid := make([]domain.Child, 0)
	rowNumber := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNumber++
		if err != nil {
			result.Rows = append(result.Rows, ImportRow{
				RowNumber: rowNumber,
				Errors:    map[string]string{"row": fmt.Sprintf("invalid csv row: %v", err)},
			})
			result.InvalidCount++
			continue
		}
		input := rowToInput(columns, record)
		child, rowErrs := validateImportRow(input, now)
		row := ImportRow{RowNumber: rowNumber, Input: input}
		if len(rowErrs) > 0 {
			row.Errors = rowErrs
			result.InvalidCount++
		} else {
			row.Valid = true
			result.ValidCount++
			valid = append(valid, child)
		}
		result.Rows = append(result.Rows, row)
	}

	if !commit {
		return result, nil
	}
	created := 0
	createdAt := time.Now().UTC()
	for i := range valid {
		valid[i].ID = uuid.NewString()
		valid[i].IsActive = true
		valid[i].CreatedAt = createdAt
		valid[i].UpdatedAt = createdAt
	}
	if len(valid) > 0 {
		created, err = a.store.CreateChildren(valid)
		if err != nil {
			return ImportResult{}, fmt.Errorf("import children: %w", err)
		}
	}
	result.Committed = true
	result.CreatedCount = created
	return result, nil
}

func mapHeader(header []string) (map[int]string, error) {
	columns := make(map[int]string, len(header))
	for i, raw := range header {
		key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(raw)))
		if field, ok := csvHeaderFields[key]; ok {
			columns[i] = field
		}
	}
	required := map[string]bool{"fullName": false, "dateOfBirth": false, "gender": false}
	for _, field := range columns {
		if _, ok := required[field]; ok {
			required[field] = true
		}
	}
	missing := make([]string, 0)
	for field, present := range required {
		if !present {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, NewValidationError("file",
			"csv is missing required columns: "+strings.Join(missing, ", "))
	}
	return columns, nil
}

func rowToInput(columns map[int]string, record []string) ChildInput {
	input := ChildInput{}
	for i, value := range record {
		field, ok := columns[i]
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch field {
		case "fullName":
			input.FullName = value
		case "dateOfBirth":
			input.DateOfBirth = value
		case "gender":
			input.Gender = value
		case "state":
			input.State = value
		case "district":
			input.District = value
		case "city":
			input.City = value
		case "background":
			input.Background = value
		case "educationType":
			input.EducationType = value
		case "gradeLevel":
			input.GradeLevel = value
		case "contactNumber":
			input.ContactNumber = value
		case "guardianContact":
			input.GuardianContact = value
		case "interests":
			input.Interests = splitList(value)
		case "concernNotes":
			input.ConcernNotes = splitList(value)
		case "language":
			input.Language = value
		}
	}
	return input
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ";")
	return trimAll(parts)
}

// validateImportRow validates one CSV row. Dates use dd/mm/yyyy, gender is
// case-normalized into {MALE, FEMALE}, and the derived age must fall in the
// accepted range.
func validateImportRow(input ChildInput, now time.Time) (domain.Child, map[string]string) {
	errs := map[string]string{}
	child := domain.Child{
		FullName:        strings.TrimSpace(input.FullName),
		State:           strings.TrimSpace(input.State),
		District:        strings.TrimSpace(input.District),
		City:            strings.TrimSpace(input.City),
		Background:      strings.TrimSpace(input.Background),
		EducationType:   strings.TrimSpace(input.EducationType),
		GradeLevel:      strings.TrimSpace(input.GradeLevel),
		ContactNumber:   strings.TrimSpace(input.ContactNumber),
		GuardianContact: strings.TrimSpace(input.GuardianContact),
		Interests:       trimAll(input.Interests),
		ConcernNotes:    trimAll(input.ConcernNotes),
		Language:        strings.TrimSpace(input.Language),
	}

	if child.FullName == "" {
		errs["fullName"] = "full name is required"
	}

	dob := strings.TrimSpace(input.DateOfBirth)
	if dob == "" {
		errs["dateOfBirth"] = "date of birth is required"
	} else if parsed, err := time.Parse("02/01/2006", dob); err != nil {
		errs["dateOfBirth"] = "date of birth must be dd/mm/yyyy"
	} else {
		child.DateOfBirth = parsed
		age := child.Age(now)
		if age < minChildAge || age > maxChildAge {
			errs["dateOfBirth"] = fmt.Sprintf("age must be between %d and %d", minChildAge, maxChildAge)
		}
	}

	if gender, ok := normalizeGender(input.Gender); ok {
		child.Gender = gender
	} else {
		errs["gender"] = "gender must be MALE or FEMALE"
	}

	if len(errs) > 0 {
		return domain.Child{}, errs
	}
	return child, nil
}
