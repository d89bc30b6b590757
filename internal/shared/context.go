package shared

import "context"

type orgContextKey struct{}

// ContextWithOrg stores the tenant organization ID in context.
func ContextWithOrg(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, orgContextKey{}, orgID)
}

// OrgFromContext extracts the tenant organization ID from context.
// Zero means no organization scope was established for the request.
func OrgFromContext(ctx context.Context) int64 {
	orgID, _ := ctx.Value(orgContextKey{}).(int64)
	return orgID
}
