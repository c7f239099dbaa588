package validation

import (
	"regexp"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"roledash.org/internal/auth"
)

// Predicate reports whether a string field value is acceptable.
type Predicate func(string) bool

// All is satisfied when every predicate is.
func All(preds ...Predicate) Predicate {
	return func(s string) bool {
		for _, p := range preds {
			if !p(s) {
				return false
			}
		}
		return true
	}
}

// Matches wraps a compiled pattern.
func Matches(re *regexp.Regexp) Predicate {
	return re.MatchString
}

// LengthBetween counts characters, not bytes.
func LengthBetween(min, max int) Predicate {
	return func(s string) bool {
		n := utf8.RuneCountInString(s)
		return n >= min && n <= max
	}
}

// UTF16LengthBetween counts UTF-16 code units, so characters outside the
// BMP count twice.
func UTF16LengthBetween(min, max int) Predicate {
	return func(s string) bool {
		n := 0
		for _, r := range s {
			n += utf16.RuneLen(r)
		}
		return n >= min && n <= max
	}
}

// NoLineBreaks rejects \n, \r, U+2028 and U+2029.
func NoLineBreaks(s string) bool {
	return !strings.ContainsAny(s, "\n\r\u2028\u2029")
}

// ContainsAnyOf is satisfied when s has at least one rune from chars.
func ContainsAnyOf(chars string) Predicate {
	return func(s string) bool { return strings.ContainsAny(s, chars) }
}

// NotBlank rejects empty and whitespace-only values.
func NotBlank(s string) bool { return strings.TrimSpace(s) != "" }

const (
	upperLetters  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits        = "0123456789"
	specialChars  = "!@#$%^&*"
	passwordMin   = 6
	passwordMax   = 13
	MaxMessageLen = 2000
)

var gmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@gmail\.com$`)

// Password requires 6 to 13 characters with an upper-case letter, a digit and one of !@#$%^&*.
var Password = All(
	NoLineBreaks,
	UTF16LengthBetween(passwordMin, passwordMax),
	ContainsAnyOf(upperLetters),
	ContainsAnyOf(digits),
	ContainsAnyOf(specialChars),
)

// Gmail accepts only addresses on gmail.com.
var Gmail = Matches(gmailPattern)

// RoleName accepts exactly user, editor or admin.
func RoleName(s string) bool { return auth.Role(s).Valid() }

// rule binds a tag to its predicate.
type rule struct {
	tag  string
	pred Predicate
}

var rules = []rule{
	{tag: "notblank", pred: NotBlank},
	{tag: "gmail_domain", pred: Gmail},
	{tag: "password", pred: Password},
	{tag: "role", pred: RoleName},
}

// aliases compose built-in validator tags with the predicates above.
var aliases = map[string]string{
	"gmail": "required,email,gmail_domain",
}

// messages maps "field.tag" (or just "tag") to the message shown to clients.
var messages = map[string]string{
	"name.notblank":     "Name is required",
	"email.gmail":       "Only Gmail addresses are allowed",
	"email.required":    "Valid email is required",
	"email.email":       "Valid email is required",
	"password.password": "Password must be 6–13 characters, include one uppercase letter, one number, and one special character",
	"password.required": "Password is required",
	"message.notblank":  "Message is required",
	"message.max":       "Message must be at most 2000 characters",
	"role":              "Invalid role",
	"required":          "is required",
}
