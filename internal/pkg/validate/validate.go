package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Custom registrations must be
// made during init() before the first call to Struct.
var v = validator.New()

// Struct validates s against its `validate` tags. Every failed field is
// reported as "<Namespace> failed <tag>[=<param>]", joined by "; ".
func Struct(s interface{}) error {
	err := v.Struct(s)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		rule := fe.Tag()
		if p := fe.Param(); p != "" {
			rule += "=" + p
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), rule))
	}
	return errors.New(strings.Join(msgs, "; "))
}
