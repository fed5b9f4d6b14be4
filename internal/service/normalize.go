package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nipark/booking/internal/domain"
)

var (
	phonePattern   = regexp.MustCompile(`^[6-9]\d{9}$`)
	markupStripper = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "&", "", ";", "")
	time12Pattern  = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])$`)
)

// sanitizeName trims and strips markup-significant characters so a
// name can be safely echoed into pages, emails and QR payloads
func sanitizeName(name string) string {
	return strings.TrimSpace(markupStripper.Replace(name))
}

// normalizeEmail lowercases and trims an email address
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizePhone reduces a phone number to the 10-digit local form,
// dropping separators, a +91 country prefix and a leading trunk zero
func normalizePhone(phone string) (string, error) {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	p := digits.String()
	if len(p) == 12 && strings.HasPrefix(p, "91") {
		p = p[2:]
	}
	if len(p) == 11 && strings.HasPrefix(p, "0") {
		p = p[1:]
	}

	if !phonePattern.MatchString(p) {
		return "", domain.NewValidationError("phone", "please enter a valid 10-digit mobile number")
	}
	return p, nil
}

// normalizeTime converts HH:MM, HH:MM:SS or 12-hour h:MM AM/PM input
// to the canonical HH:MM:SS form
func normalizeTime(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	if m := time12Pattern.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour < 1 || hour > 12 {
			return "", domain.NewValidationError("time", "invalid time")
		}
		if strings.EqualFold(m[3], "PM") && hour != 12 {
			hour += 12
		}
		if strings.EqualFold(m[3], "AM") && hour == 12 {
			hour = 0
		}
		return fmt.Sprintf("%02d:%s:00", hour, m[2]), nil
	}

	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}

	return "", domain.NewValidationError("time", "invalid time")
}

// normalizeDate validates a YYYY-MM-DD date string
func normalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", domain.NewValidationError("date", "invalid date, expected YYYY-MM-DD")
	}
	return s, nil
}
