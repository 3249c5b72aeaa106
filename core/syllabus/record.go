package syllabus

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/trackademic/core/task"
)

var leadingNumber = regexp.MustCompile(`^\d+(\.\d+)?`)

// AssignmentRecord is a decoded model record. Decoding is lenient: models do not always respect the schema.
type AssignmentRecord struct {
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	DueDate        string        `json:"due_date"`
	Type           string        `json:"type"`
	Priority       string        `json:"priority"`
	EstimatedHours flexFloat     `json:"estimated_hours"`
	ClassID        task.ClassRef `json:"class_id"`
}

// DecodeRecord decodes one raw record and fills in the defaults.
func DecodeRecord(raw json.RawMessage) (AssignmentRecord, error) {
	var rec AssignmentRecord
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return rec, errors.New("record is not an object")
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, errors.Wrap(err, "decoding record")
	}

	rec.Title = strings.TrimSpace(rec.Title)
	if rec.Title == "" {
		return rec, errors.New("record has no title")
	}
	rec.Description = strings.TrimSpace(rec.Description)
	rec.DueDate = strings.TrimSpace(rec.DueDate)
	if rec.DueDate == "" {
		return rec, errors.New("record has no due_date")
	}

	rec.Type = strings.ToLower(strings.TrimSpace(rec.Type))
	if !oneOf(rec.Type, task.Types) {
		rec.Type = task.TypeAssignment
	}
	rec.Priority = strings.ToLower(strings.TrimSpace(rec.Priority))
	if !oneOf(rec.Priority, task.Priorities) {
		rec.Priority = task.DefaultPriority(rec.Type)
	}
	if rec.EstimatedHours < 0 {
		rec.EstimatedHours = 0
	}
	return rec, nil
}

func oneOf(s string, list []string) bool {
	for _, v := range list {
		if s == v {
			return true
		}
	}
	return false
}

// flexFloat accepts 3, 3.5, "3", "2-4" (takes 2), or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	*f = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if m := leadingNumber.FindString(strings.TrimSpace(s)); m != "" {
			v, _ := strconv.ParseFloat(m, 64)
			*f = flexFloat(v)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	*f = flexFloat(v)
	return nil
}
