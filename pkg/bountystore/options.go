package bountystore

import "github.com/octobounty/escrow-middleware/pkg/bounty"

// QueryOptions defines filters and paging for bounty listings.
type QueryOptions struct {
	Status    *bounty.Status
	Currency  *bounty.Currency
	RepoOwner *string
	RepoName  *string
	Creator   *string
	Limit     int
	Offset    int
}

// QueryOption is a functional option for bounty listings.
type QueryOption func(*QueryOptions)

// WithStatus filters by lifecycle status.
func WithStatus(status bounty.Status) QueryOption {
	return func(o *QueryOptions) { o.Status = &status }
}

// WithCurrency filters by escrow token.
func WithCurrency(currency bounty.Currency) QueryOption {
	return func(o *QueryOptions) { o.Currency = &currency }
}

// WithRepo filters by repository.
func WithRepo(owner, name string) QueryOption {
	return func(o *QueryOptions) {
		o.RepoOwner = &owner
		o.RepoName = &name
	}
}

// WithCreator filters by creator login.
func WithCreator(login string) QueryOption {
	return func(o *QueryOptions) { o.Creator = &login }
}

// WithPage sets limit and offset.
func WithPage(limit, offset int) QueryOption {
	return func(o *QueryOptions) {
		o.Limit = limit
		o.Offset = offset
	}
}

// NormalizePage clamps paging values to the store's bounds. Out-of-range
// limits fall back to the default page size and negative offsets to zero,
// so callers can report the values a listing actually used.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
