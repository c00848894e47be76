package cart

import "github.com/google/uuid"

// LineView is a cart line as returned to clients.
type LineView struct {
	ProductID uuid.UUID `json:"product_id"`
	Title     string    `json:"title"`
	Quantity  int       `json:"qty"`
	Price     string    `json:"price"`
	Image     string    `json:"image"`
	LineTotal string    `json:"line_total"`
}

// View is the cart payload: lines, grand total and the number of distinct products.
type View struct {
	Items []LineView `json:"items"`
	Total string     `json:"total"`
	Count int        `json:"count"`
}

// NewView renders a snapshot.
func NewView(snap *Snapshot) *View {
	lines := snap.Lines()
	view := &View{
		Items: make([]LineView, 0, len(lines)),
		Total: snap.Total().StringFixed(2),
		Count: snap.Count(),
	}
	for _, line := range lines {
		view.Items = append(view.Items, LineView{
			ProductID: line.ProductID,
			Title:     line.Title,
			Quantity:  line.Quantity,
			Price:     line.Price.StringFixed(2),
			Image:     line.Image,
			LineTotal: line.Total().StringFixed(2),
		})
	}
	return view
}
