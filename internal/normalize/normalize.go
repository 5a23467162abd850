// Package normalize canonicalizes user-supplied identity fields.
package normalize

import "strings"

// Phone returns the stored form of a phone number: surrounding whitespace is
// removed, the digits and separators are kept as typed so "555-0100" and
// "5550100" remain distinct logins.
func Phone(p string) string {
	return strings.TrimSpace(p)
}

// Name trims a display name and collapses internal runs of whitespace.
func Name(n string) string {
	return strings.Join(strings.Fields(n), " ")
}
