package validation

import (
	"errors"
	"sort"
	"strings"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"

	apperrors "github.com/MaxymChyncha/house-security-system/pkg/errors"
)

// FromOzzo converts an ozzo-validation error into FieldErrors. Nested errors
// are flattened with dotted keys. Any other error lands under
// non_field_errors.
func FromOzzo(err error) apperrors.FieldErrors {
	if err == nil {
		return nil
	}

	var errs ozzo.Errors
	if !errors.As(err, &errs) {
		return apperrors.Field(apperrors.NonFieldErrors, err.Error())
	}

	out := apperrors.FieldErrors{}
	flatten(out, "", errs)
	return out
}

func flatten(out apperrors.FieldErrors, prefix string, errs ozzo.Errors) {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}

		var nested ozzo.Errors
		if errors.As(errs[k], &nested) {
			flatten(out, name, nested)
			continue
		}
		out[name] = sentence(errs[k].Error())
	}
}

// sentence capitalises ozzo's lower case messages and ends them with a period
func sentence(msg string) string {
	if msg == "" {
		return msg
	}
	msg = strings.ToUpper(msg[:1]) + msg[1:]
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}
