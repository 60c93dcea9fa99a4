package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ferremas/internal/domain"
)

type sample struct {
	Type     string  `json:"Tipo_Movimiento" validate:"required,movtype"`
	Quantity int     `json:"Cantidad" validate:"gt=0"`
	Status   string  `json:"Estado" validate:"omitempty,orderstatus"`
	Keeper   *string `json:"ID_Bodeguero" validate:"omitempty,resid"`
	Note     string  `json:"Comentario" validate:"max=5"`
}

func TestStruct(t *testing.T) {
	keeper := "bod-001"
	require.NoError(t, Struct(&sample{Type: "Entrada", Quantity: 1, Status: "Aprobado", Keeper: &keeper}))

	bad := "bod 001; DROP"
	cases := []struct {
		in   sample
		want string
	}{
		{sample{Quantity: 1}, "Tipo_Movimiento is required"},
		{sample{Type: "Robo", Quantity: 1}, `unknown movement type "Robo"`},
		{sample{Type: "Salida"}, "Cantidad must be at least 1"},
		{sample{Type: "Salida", Quantity: 1, Status: "Perdido"}, `unknown order status "Perdido"`},
		{sample{Type: "Salida", Quantity: 1, Keeper: &bad}, "ID_Bodeguero is not a valid identifier"},
		{sample{Type: "Salida", Quantity: 1, Note: "too long"}, "Comentario must be at most 5"},
	}
	for _, tc := range cases {
		err := Struct(&tc.in)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, tc.want, err.Error())
	}
}

func TestID(t *testing.T) {
	id, ok := ID("  prod-martillo ")
	assert.True(t, ok)
	assert.Equal(t, "prod-martillo", id)

	for _, s := range []string{"", "a b", "../etc", "x;y"} {
		_, ok := ID(s)
		assert.False(t, ok, s)
	}
}

func TestDate(t *testing.T) {
	d, err := Date("", false)
	require.NoError(t, err)
	assert.Nil(t, d)

	from, err := Date("2025-03-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *from)

	to, err := Date("2025-03-01", true)
	require.NoError(t, err)
	assert.Equal(t, 2025, to.Year())
	assert.Equal(t, 23, to.Hour())
	assert.Equal(t, 1, to.Day())

	ts, err := Date("2025-03-01T10:30:00Z", true)
	require.NoError(t, err)
	assert.Equal(t, 10, ts.Hour())

	_, err = Date("01/03/2025", false)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPositiveInt(t *testing.T) {
	assert.Equal(t, 3, PositiveInt("3", 1))
	assert.Equal(t, 1, PositiveInt("", 1))
	assert.Equal(t, 20, PositiveInt("-4", 20))
	assert.Equal(t, 20, PositiveInt("abc", 20))
}
