package inspection

import (
	"regexp"
	"strconv"

	dErrors "certflow/pkg/domain-errors"
)

var ymdPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// ValidateDate accepts YYYY-MM-DD with month 1-12 and day 1-31. The check is
// deliberately calendar-naive (February 31 passes); the planning date is a
// scheduling hint, not a settlement date.
func ValidateDate(date string) error {
	m := ymdPattern.FindStringSubmatch(date)
	if m == nil {
		return dErrors.New(dErrors.CodeValidation, "date must be in YYYY-MM-DD format")
	}
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 {
		return dErrors.New(dErrors.CodeValidation, "date month must be between 1 and 12")
	}
	if day < 1 || day > 31 {
		return dErrors.New(dErrors.CodeValidation, "date day must be between 1 and 31")
	}
	return nil
}
