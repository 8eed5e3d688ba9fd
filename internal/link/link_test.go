package link

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"legalmeet-agent/internal/domain"
)

func TestCleanPhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"573001234567", "3001234567"},
		{"+573001234567", "3001234567"},
		{"3001234567", "3001234567"},
		{"5730012345", "5730012345"}, // too short for country prefix stripping
		{"14155550100", "14155550100"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CleanPhone(tc.in), "in=%q", tc.in)
	}
}

func TestBuild_LowercasesCategoryAndSetsFlag(t *testing.T) {
	raw, err := Build("https://legal-meet.vercel.app", Params{
		Category:    domain.CategoryComercial,
		Description: "disputa de contrato",
		Phone:       "573001234567",
		PriceMin:    100000,
		PriceMax:    180000,
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "comercial", q.Get("tipo"))
	require.Equal(t, "disputa de contrato", q.Get("descripcion"))
	require.Equal(t, "3001234567", q.Get("telefono"))
	require.Equal(t, "true", q.Get("desde_whatsapp"))
	require.Empty(t, q.Get("nombre"), "empty name must be omitted")
}

func TestBuildParse_RoundTrip(t *testing.T) {
	in := Params{
		Category:    domain.CategoryPenal,
		Description: "denuncia por estafa — urgente",
		Phone:       "573001234567",
		PriceMin:    120000,
		PriceMax:    200000,
		UserName:    "María Pérez",
		Urgency:     domain.UrgencyAlta,
	}
	raw, err := Build("", in)
	require.NoError(t, err)

	out, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, in.Category, out.Category)
	require.Equal(t, in.Description, out.Description)
	require.Equal(t, CleanPhone(in.Phone), out.Phone)
	require.Equal(t, in.PriceMin, out.PriceMin)
	require.Equal(t, in.PriceMax, out.PriceMax)
	require.Equal(t, in.UserName, out.UserName)
	require.Equal(t, in.Urgency, out.Urgency)
}

func TestParse_RequiresSourceFlag(t *testing.T) {
	_, err := Parse("https://legal-meet.vercel.app?tipo=civil&precio_min=80000&precio_max=150000")
	require.Error(t, err)
}

func TestParse_BadPrices(t *testing.T) {
	_, err := Parse("https://legal-meet.vercel.app?desde_whatsapp=true&tipo=civil&precio_min=abc&precio_max=150000")
	require.Error(t, err)
}
