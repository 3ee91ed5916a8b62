package vip

import (
	"context"
	"errors"

	"github.com/linnemanlabs/sieve/internal/item"
	"github.com/linnemanlabs/sieve/internal/triage"
)

// Any combines resolvers. The first one answering true wins and errors from
// the others are dropped; when none says true, their errors are joined.
type Any []triage.VIPResolver

// IsVIP implements triage.VIPResolver.
func (a Any) IsVIP(ctx context.Context, it *item.Item) (bool, error) {
	var errs []error
	for _, r := range a {
		if r == nil {
			continue
		}
		ok, err := r.IsVIP(ctx, it)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}
