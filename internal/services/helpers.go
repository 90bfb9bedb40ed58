package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/adminhub/pkg/validator"

	apperrors "github.com/charlesng35/adminhub/pkg/errors"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Origin describes where a request came from.
type Origin struct {
	IPAddress string
	UserAgent string
}

// Actor identifies the authenticated principal performing an operation. It is
// passed explicitly to every mutation so audit attribution never depends on
// ambient request state.
type Actor struct {
	PrincipalID string
	Origin      Origin
}

func (a Actor) validate() error {
	if strings.TrimSpace(a.PrincipalID) == "" {
		return apperrors.ErrUnauthorized
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// NormalisePage clamps pagination input to the service defaults.
func NormalisePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// diffIDs reports which ids in next are missing from current and vice versa.
func diffIDs(current, next []string) (added, removed []string) {
	have := make(map[string]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}
	want := make(map[string]struct{}, len(next))
	for _, id := range next {
		want[id] = struct{}{}
		if _, ok := have[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range current {
		if _, ok := want[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// validateInput runs struct validation and converts failures to VALIDATION_FAILED.
func validateInput(input any) error {
	err := validator.ValidateStruct(input)
	if err == nil {
		return nil
	}
	var failures validator.ValidationErrors
	if errors.As(err, &failures) {
		return apperrors.NewValidation(failures.Error()).WithFields(failures.Fields())
	}
	return apperrors.NewValidation(err.Error())
}

// storeFailure wraps a storage error so the API renders STORE_UNAVAILABLE.
func storeFailure(scope string, err error) error {
	return fmt.Errorf("%s: %w", scope, apperrors.ErrStoreUnavailable.WithInternal(err))
}
