// Package labels builds links to the printable home-delivery label view.
package labels

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/padraicbc/raceops/models"
)

// Builder renders label URLs against the print view at BaseURL.
type Builder struct {
	BaseURL string
}

func New(baseURL string) *Builder {
	return &Builder{BaseURL: strings.TrimRight(baseURL, "/")}
}

// URL encodes order number, recipient, address, phone, event name and item count
// as query parameters of the print view.
func (b *Builder) URL(o *models.Order, raceName string) string {
	q := url.Values{}
	q.Set("pedido", o.OrderNumber)
	q.Set("nome", o.ResponsibleName)
	if o.DeliveryAddress != nil {
		q.Set("endereco", o.DeliveryAddress.OneLine())
	}
	q.Set("telefone", o.ResponsiblePhone)
	q.Set("evento", raceName)
	q.Set("itens", strconv.Itoa(len(o.ParticipantIDs)))
	return b.BaseURL + "?" + q.Encode()
}
