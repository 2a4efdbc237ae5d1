package catalog

type Category struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	IconURL *string `json:"icon_url,omitempty"`
}

// Product is owned by the remote catalog; the kiosk only ever reads it.
type Product struct {
	ID          int64   `json:"id"`
	CategoryID  int64   `json:"category_id"`
	Name        string  `json:"name"`
	Price       int64   `json:"price"` // cents
	Description string  `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
}

type Snapshot struct {
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
}

// Filter returns the products of one category; categoryID 0 means all.
func Filter(products []Product, categoryID int64) []Product {
	if categoryID == 0 {
		return products
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out
}

// DefaultCategory is the tab selected when the ordering screen opens.
func DefaultCategory(categories []Category) int64 {
	if len(categories) == 0 {
		return 0
	}
	return categories[0].ID
}

func (s Snapshot) Product(id int64) (Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
