// Package address holds the destination types shared by zone matching and
// boundary validation, plus the US-centric normalization both rely on.
package address

// Address represents a physical destination for shipping.
type Address struct {
	FullName     string `json:"fullName"`
	AddressLine1 string `json:"line1" validate:"required"`
	AddressLine2 string `json:"line2,omitempty"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country" validate:"required"`
	Phone        string `json:"phone,omitempty"`
}

// Coordinates is an optional destination point for geofenced zones.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// IsDomestic reports whether the address is a US destination after
// normalizing common spelling variants.
func (a Address) IsDomestic() bool {
	return NormalizeCountry(a.Country) == "US"
}
