package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeader(t *testing.T) {
	assert.Equal(t, "numero da despesa", Header("Número da despesa"))
	assert.Equal(t, "numero da acao", Header("  Número  da AÇÃO "))
	assert.Equal(t, "descricao da natureza de despesa", Header("Descrição da natureza de despesa"))
	assert.Equal(t, "entidade", Header("\ufeffEntidade"))
	assert.Equal(t, "", Header(""))
}
