package findings

import (
	"errors"
	"fmt"
)

var validCategories = map[Category]struct{}{
	CategoryNullSafety: {}, CategoryResourceLeak: {}, CategoryMemory: {},
	CategoryControlFlow: {}, CategoryExceptionHandling: {}, CategoryStyle: {},
}

// Validate checks that the finding has a rule id, a known category and a
// message. Rule catalogs are validated with it in tests and at registration.
func (f *Finding) Validate() error {
	if f == nil {
		return errors.New("finding is nil")
	}
	if f.RuleID == "" {
		return errors.New("rule id is required")
	}
	if f.Category == "" {
		return errors.New("category is required")
	}
	if _, ok := validCategories[f.Category]; !ok {
		return fmt.Errorf("invalid category %q", f.Category)
	}
	if f.Message == "" {
		return errors.New("message is required")
	}
	return nil
}
