// internal/models/query_types.go
package models

// ApplicationFilter narrows repository listings. Zero values mean "any".
type ApplicationFilter struct {
	TenantID   string
	PropertyID string
	Status     Status
	Limit      int
	Offset     int
}
