package platform

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/apporte/pkg/apporte/types"
)

// DefaultPerPage matches the admin console's page size
const DefaultPerPage = 15

// UserFilter narrows an admin user listing. Zero values are omitted.
type UserFilter struct {
	Page    int
	PerPage int
	Search  string
	Role    string
	Status  types.UserStatus
}

// Params converts the filter into query parameters.
func (f UserFilter) Params() Params {
	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	p := Params{"page": page, "per_page": perPage}
	if f.Search != "" {
		p["search"] = f.Search
	}
	if f.Role != "" {
		p["role"] = f.Role
	}
	if f.Status != "" {
		p["status"] = string(f.Status)
	}
	return p
}

// ListUsers returns one page of users.
func (c *Client) ListUsers(ctx context.Context, filter UserFilter) (*types.Page[types.User], error) {
	var page types.Page[types.User]
	if err := c.Get(ctx, "/admin/users", filter.Params(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListRoles returns every role.
func (c *Client) ListRoles(ctx context.Context) ([]types.Role, error) {
	var roles []types.Role
	if err := c.Get(ctx, "/admin/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// SuspendUser suspends the account with id.
func (c *Client) SuspendUser(ctx context.Context, id int64) error {
	return c.Patch(ctx, fmt.Sprintf("/admin/users/%d/suspend", id), nil, nil)
}

// ActivateUser reactivates the account with id.
func (c *Client) ActivateUser(ctx context.Context, id int64) error {
	return c.Patch(ctx, fmt.Sprintf("/admin/users/%d/activate", id), nil, nil)
}
