package api

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}

// DomainResponse describes a permissions domain.
type DomainResponse struct {
	ID               string   `json:"id" description:"Domain identifier"`
	AllowedActions   []string `json:"allowed_actions" description:"Actions grants may name"`
	InstanceRequired bool     `json:"instance_required" description:"Whether grants must name an instance"`
}
