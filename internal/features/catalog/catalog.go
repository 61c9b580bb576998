package catalog

import "sort"

// Product is a static catalog entry, loaded at process start and never mutated.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

// Catalog maps product identifiers to their price and description.
type Catalog struct {
	products map[string]Product
}

// Default returns the course tariffs sold by the bot.
func Default() *Catalog {
	return New([]Product{
		{
			ID:          "basic",
			Name:        "🔥 Основной тариф",
			Price:       6000,
			Currency:    "RUB",
			Description: "Доступ к курсу 'Как найти свою Любовь?', 21 день",
		},
		{
			ID:          "individual",
			Name:        "💖 Специальный тариф",
			Price:       39000,
			Currency:    "RUB",
			Description: "Доступ к курсу 'Как найти свою Любовь?', 40 дней",
		},
	})
}

func New(products []Product) *Catalog {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &Catalog{products: m}
}

// Get looks up a product by id.
func (c *Catalog) Get(id string) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// All returns the products in stable id order, for keyboard rendering.
func (c *Catalog) All() []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
