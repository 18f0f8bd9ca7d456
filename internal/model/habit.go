package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// DateLayout is the calendar-date format used for completion entries.
const DateLayout = "2006-01-02"

type Habit struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"-"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description"`
	CompletedDates DateList  `db:"completed_dates" json:"completedDates"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"-"`
}

// DateList is an append-ordered list of YYYY-MM-DD strings, stored as a JSON array.
type DateList []string

func (d DateList) Contains(day string) bool {
	return slices.Contains(d, day)
}

// Without returns a copy with every occurrence of day removed.
func (d DateList) Without(day string) DateList {
	out := make(DateList, 0, len(d))
	for _, v := range d {
		if v != day {
			out = append(out, v)
		}
	}
	return out
}

// Value implements driver.Valuer. A nil list is stored as "[]".
func (d DateList) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *DateList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = DateList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan date list: unsupported type %T", src)
	}

	if len(raw) == 0 {
		*d = DateList{}
		return nil
	}

	var dates []string
	err := json.Unmarshal(raw, &dates)
	if err != nil {
		return fmt.Errorf("scan date list: %w", err)
	}
	if dates == nil {
		dates = []string{}
	}
	*d = dates
	return nil
}

// MarshalJSON keeps an empty history as [] rather than null.
func (d DateList) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(d))
}
