package labels

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/raceops/models"
)

func TestURLEncodesOrder(t *testing.T) {
	o := &models.Order{
		OrderNumber:      "MM-1042",
		ResponsibleName:  "João Silva",
		ResponsiblePhone: "+55 11 99999-0000",
		DeliveryAddress: &models.Address{
			Street: "Rua das Flores", Number: "12", City: "São Paulo", State: "SP", ZipCode: "01000-000",
		},
		ParticipantIDs: []string{"a", "b"},
	}

	raw := New("https://app.example.com/admin/etiqueta/").URL(o, "Corrida da Ponte")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/admin/etiqueta", u.Path)
	q := u.Query()
	assert.Equal(t, "MM-1042", q.Get("pedido"))
	assert.Equal(t, "João Silva", q.Get("nome"))
	assert.Equal(t, "+55 11 99999-0000", q.Get("telefone"))
	assert.Equal(t, "Corrida da Ponte", q.Get("evento"))
	assert.Equal(t, "2", q.Get("itens"))
	assert.Contains(t, q.Get("endereco"), "Rua das Flores, 12")
}

func TestURLWithoutAddress(t *testing.T) {
	raw := New("http://x/label").URL(&models.Order{OrderNumber: "1"}, "R")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.False(t, u.Query().Has("endereco"))
	assert.Equal(t, "0", u.Query().Get("itens"))
}
