package mailbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/DukeRupert/mailify/domain"
)

// sinceLayouts are the accepted forms of Filter.Since.
var sinceLayouts = []string{"02-Jan-2006", "2006-01-02"}

// Filter narrows a mailbox search. Empty fields are ignored; set fields
// are combined with AND.
type Filter struct {
	From    string
	Subject string

	// Since is a date such as "01-Jan-2024" or "2024-01-01".
	Since string
}

// FilterFromMap builds a Filter from the keys "from", "subject" and
// "since". Unknown keys are ignored.
func FilterFromMap(m map[string]string) Filter {
	return Filter{
		From:    m["from"],
		Subject: m["subject"],
		Since:   m["since"],
	}
}

// IsZero reports whether no criterion is set.
func (f Filter) IsZero() bool {
	return f.From == "" && f.Subject == "" && f.Since == ""
}

// Criteria renders the filter as an IMAP search string, always in the
// order FROM, SUBJECT, SINCE, or "ALL" when the filter is empty.
func (f Filter) Criteria() string {
	var parts []string
	if f.From != "" {
		parts = append(parts, "FROM "+quote(f.From))
	}
	if f.Subject != "" {
		parts = append(parts, "SUBJECT "+quote(f.Subject))
	}
	if f.Since != "" {
		parts = append(parts, "SINCE "+f.Since)
	}
	if len(parts) == 0 {
		return "ALL"
	}
	return strings.Join(parts, " ")
}

// SearchCriteria converts the filter for a UID SEARCH. It fails with
// EINVALID when Since is not a recognised date.
func (f Filter) SearchCriteria() (*imap.SearchCriteria, error) {
	criteria := &imap.SearchCriteria{}

	if f.From != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "From", Value: f.From})
	}
	if f.Subject != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "Subject", Value: f.Subject})
	}
	if f.Since != "" {
		since, err := parseSince(f.Since)
		if err != nil {
			return nil, err
		}
		criteria.Since = since
	}

	return criteria, nil
}

func parseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range sinceLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.Invalid("mailbox.filter",
		fmt.Sprintf("since %q must look like 02-Jan-2006 or 2006-01-02", s))
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
