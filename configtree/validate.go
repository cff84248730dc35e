package configtree

import (
	"fmt"
	"strings"

	"github.com/sardine-ai/configconsole/model"
)

// Validate checks a value entered in the create form.
func Validate(cv model.ConfigValue) error {
	if err := required("key", cv.Key); err != nil {
		return err
	}
	if err := forbiddenName("key", cv.Key, model.NewKeySentinel); err != nil {
		return err
	}
	return required("value", cv.Value)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}

func forbiddenName(field, value, forbidden string) error {
	if value == forbidden {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must not be %q", forbidden)}
	}
	return nil
}
