package analytics

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hyperjump/resumatch/internal/storage"
	"github.com/hyperjump/resumatch/pkg/apperror"
)

// Filter scopes an analytics query. All bounds are inclusive.
type Filter struct {
	AdminID  *int64 `validate:"omitempty,gt=0"`
	UserID   *int64 `validate:"omitempty,gt=0"`
	Start    *time.Time
	End      *time.Time
	MinScore *int   `validate:"omitempty,min=0,max=100"`
	Verdict  string `validate:"max=32"`
}

func (f Filter) storageFilter() storage.EvaluationFilter {
	return storage.EvaluationFilter{
		UserID:   f.UserID,
		AdminID:  f.AdminID,
		From:     f.Start,
		To:       f.End,
		MinScore: f.MinScore,
		Verdict:  f.Verdict,
	}
}

var filterValidator = validator.New()

// ParseFilter reads admin_id, user_id, start_date, end_date, min_score and
// verdict from query parameters. Dates are YYYY-MM-DD or RFC3339; a date-only
// end_date covers the whole day.
func ParseFilter(q url.Values) (Filter, error) {
	var f Filter
	var err error
	if f.AdminID, err = parseID(q, "admin_id"); err != nil {
		return Filter{}, err
	}
	if f.UserID, err = parseID(q, "user_id"); err != nil {
		return Filter{}, err
	}
	if f.Start, err = parseDate(q.Get("start_date"), false); err != nil {
		return Filter{}, apperror.Validation("invalid start_date")
	}
	if f.End, err = parseDate(q.Get("end_date"), true); err != nil {
		return Filter{}, apperror.Validation("invalid end_date")
	}
	if v := q.Get("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Filter{}, apperror.Validation("invalid min_score")
		}
		f.MinScore = &n
	}
	f.Verdict = strings.TrimSpace(q.Get("verdict"))

	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// Validate checks ranges and bound ordering.
func (f Filter) Validate() error {
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return apperror.Validation("end_date is before start_date")
	}
	err := filterValidator.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperror.New(apperror.KindValidation, fmt.Sprintf("invalid %s", filterFieldName(verrs[0].Field())), err)
	}
	return apperror.New(apperror.KindValidation, "invalid filter", err)
}

func filterFieldName(field string) string {
	switch field {
	case "AdminID":
		return "admin_id"
	case "UserID":
		return "user_id"
	case "MinScore":
		return "min_score"
	case "Verdict":
		return "verdict"
	default:
		return strings.ToLower(field)
	}
}

func parseID(q url.Values, key string) (*int64, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, apperror.Validation("invalid " + key)
	}
	return &n, nil
}

func parseDate(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
