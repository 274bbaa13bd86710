package auth

import "context"

type contextKey string

const staffIDKey contextKey = "staff_id"

// WithStaffID attaches the acting staff member's id to the context so ledger
// mutations can attribute their audit rows.
func WithStaffID(ctx context.Context, staffID string) context.Context {
	return context.WithValue(ctx, staffIDKey, staffID)
}

// GetStaffID returns the staff id carried by the context, or "" when the
// operation runs unattributed (system processes, the expiry sweeper).
func GetStaffID(ctx context.Context) string {
	if val, ok := ctx.Value(staffIDKey).(string); ok {
		return val
	}
	return ""
}

// StaffIDRef returns the staff id as a nullable reference for audit columns.
func StaffIDRef(ctx context.Context) *string {
	if id := GetStaffID(ctx); id != "" {
		return &id
	}
	return nil
}
