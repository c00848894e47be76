package enums

import "fmt"

// ProductStatus is the moderation state of a catalog listing.
type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusDisabled  ProductStatus = "disabled"
	ProductStatusInReview  ProductStatus = "in_review"
	ProductStatusRejected  ProductStatus = "rejected"
	ProductStatusPublished ProductStatus = "published"
)

var validProductStatuses = []ProductStatus{
	ProductStatusDraft,
	ProductStatusDisabled,
	ProductStatusInReview,
	ProductStatusRejected,
	ProductStatusPublished,
}

// String implements fmt.Stringer.
func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsVisible reports whether shoppers can see the listing.
func (s ProductStatus) IsVisible() bool {
	return s == ProductStatusPublished
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}
