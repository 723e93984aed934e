package adapters

import "github.com/smallbiznis/gstbill/internal/integration/domain"

// Placeholder registers a provider key without any capability so that the
// facade answers not_supported instead of unsupported_provider.
type Placeholder struct {
	key      string
	category domain.Category
}

func NewPlaceholder(category domain.Category, key string) *Placeholder {
	return &Placeholder{key: key, category: category}
}

func (p *Placeholder) Key() string { return p.key }

func (p *Placeholder) Category() domain.Category { return p.category }
