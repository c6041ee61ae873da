package directory

import (
	"regexp"
	"unicode/utf8"

	"github.com/FACorreiaa/go-user-directory/internal/api"
)

// Syntactic rules only; uniqueness is checked against storage afterwards.
var (
	emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)
	// Optional leading +, 2-14 digits, no leading zero.
	phoneRegexp = regexp.MustCompile(`^\+?[1-9]\d{1,13}$`)
)

const (
	nameMinLength = 2
	nameMaxLength = 80

	msgNameLength   = "Name must be between 2 and 80 characters."
	msgEmailFormat  = "Invalid email format."
	msgPhoneFormat  = "Invalid phone number."
	msgPasswordMiss = "Password is required."
)

func validName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= nameMinLength && n <= nameMaxLength
}

// ValidateCreate checks a full candidate record before creation. It
// returns every failing field at once so the caller can report them all.
func ValidateCreate(params api.CreateUserParams) *api.ValidationError {
	fields := map[string]string{}

	if !validName(params.Name) {
		fields["name"] = msgNameLength
	}
	if !emailRegexp.MatchString(params.Email) {
		fields["email"] = msgEmailFormat
	}
	if params.Phone != nil && !phoneRegexp.MatchString(*params.Phone) {
		fields["phone"] = msgPhoneFormat
	}
	if params.Password == "" {
		fields["password"] = msgPasswordMiss
	}

	if len(fields) > 0 {
		return &api.ValidationError{Fields: fields}
	}
	return nil
}

// ValidateUpdate checks only the fields present in a partial update.
func ValidateUpdate(params api.UpdateUserParams) *api.ValidationError {
	fields := map[string]string{}

	if params.Name != nil && !validName(*params.Name) {
		fields["name"] = msgNameLength
	}
	if params.Email != nil && !emailRegexp.MatchString(*params.Email) {
		fields["email"] = msgEmailFormat
	}
	if params.Phone != nil && !phoneRegexp.MatchString(*params.Phone) {
		fields["phone"] = msgPhoneFormat
	}
	if params.Password != nil && *params.Password == "" {
		fields["password"] = msgPasswordMiss
	}

	if len(fields) > 0 {
		return &api.ValidationError{Fields: fields}
	}
	return nil
}
