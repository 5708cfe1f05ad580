package domain

import "regexp"

var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateAddress reports whether s looks like local-part@domain.tld.
func ValidateAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// NormalizeAddresses keeps the valid addresses of addrs, in order.
// Invalid entries are dropped without error and duplicates are kept.
func NormalizeAddresses(addrs ...string) []string {
	valid := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if ValidateAddress(a) {
			valid = append(valid, a)
		}
	}
	return valid
}
