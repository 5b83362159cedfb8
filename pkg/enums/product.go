package enums

// ProductStatus controls catalog visibility. Only active products are listed
// publicly and can be bought.
type ProductStatus string

const (
	ProductStatusDraft      ProductStatus = "draft"
	ProductStatusActive     ProductStatus = "active"
	ProductStatusOutOfStock ProductStatus = "out_of_stock"
)

var productStatuses = []ProductStatus{ProductStatusDraft, ProductStatusActive, ProductStatusOutOfStock}

func (p ProductStatus) String() string { return string(p) }

func (p ProductStatus) IsValid() bool { return valid(productStatuses, p) }

func ParseProductStatus(value string) (ProductStatus, error) {
	return parse("product status", productStatuses, value)
}
