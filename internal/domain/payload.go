package domain

// RawProductPayload is the product lookup response of the Open Food Facts API.
// Every field may be missing; the normalizer resolves defaults.
type RawProductPayload struct {
	Code    string      `json:"code"`
	Product *RawProduct `json:"product"`
}

// RawProduct is the product object of a catalog payload. Nutriments values
// arrive as JSON numbers, numeric strings or null.
type RawProduct struct {
	Code        string         `json:"code,omitempty"`
	ProductName *string        `json:"product_name"`
	Nutriments  map[string]any `json:"nutriments"`
}

// RawSearchResponse is the search endpoint response. Search results carry the
// product fields at the top level of each entry.
type RawSearchResponse struct {
	Count    int          `json:"count"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Products []RawProduct `json:"products"`
}
