package accounting

import (
	"context"
	"net/url"
	"strings"

	"github.com/smallbiznis/gstbill/internal/integration/domain"
)

const KeyTally = "tally"

// Tally records where the on-premise Tally gateway lives. Invoice push is not
// available, so it only implements Connector.
type Tally struct{}

func NewTally() *Tally { return &Tally{} }

func (t *Tally) Key() string { return KeyTally }

func (t *Tally) Category() domain.Category { return domain.CategoryAccounting }

func (t *Tally) Connect(ctx context.Context, req domain.ConnectRequest) (domain.Credentials, error) {
	host := strings.TrimSpace(req.Extra["host"])
	if host == "" {
		return domain.Credentials{}, domain.ErrMissingCredential
	}
	if _, err := url.ParseRequestURI(host); err != nil {
		return domain.Credentials{}, domain.ErrMissingCredential
	}
	extra := map[string]string{"host": host}
	if req.Organization != "" {
		extra["company"] = req.Organization
	}
	return domain.Credentials{Extra: extra}, nil
}
