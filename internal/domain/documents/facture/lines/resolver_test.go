package lines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/catalogs/service"
	"facturation/internal/domain/catalogs/unit"
)

func TestResolver_ResolveService(t *testing.T) {
	r := NewResolver(testCatalog(), nil, nil)

	ref := r.ResolveService("FORFAIT")
	require.NotNil(t, ref)
	assert.Equal(t, "Forfait", ref.Name)
	assert.Equal(t, "UNITE", ref.DefaultUnitCode)
	assert.False(t, ref.Unknown)

	unknown := r.ResolveService("GHOST")
	require.NotNil(t, unknown)
	assert.True(t, unknown.Unknown)
	assert.Equal(t, "GHOST", unknown.Code)

	assert.Nil(t, r.ResolveService("  "))
}

func TestResolver_ResolveUnit(t *testing.T) {
	r := NewResolver(testCatalog(), nil, nil)

	ref := r.ResolveUnit("JOUR")
	require.NotNil(t, ref)
	assert.Equal(t, UnitRef{Code: "JOUR", Name: "Jour"}, *ref)

	synth := r.ResolveUnit("MOIS")
	require.NotNil(t, synth)
	assert.Equal(t, UnitRef{Code: "MOIS", Name: "MOIS", Synthesized: true}, *synth)

	assert.Nil(t, r.ResolveUnit(""))
}

func TestResolver_ResolveUnitObject(t *testing.T) {
	r := NewResolver(testCatalog(), nil, nil)

	got := r.ResolveUnitObject(UnitRef{Code: "HEURE", Name: "stale"})
	require.NotNil(t, got)
	assert.Equal(t, "Heure", got.Name, "catalog entry wins")

	got = r.ResolveUnitObject(UnitRef{Code: "MOIS", Name: "Mois"})
	require.NotNil(t, got)
	assert.Equal(t, UnitRef{Code: "MOIS", Name: "Mois"}, *got)

	assert.Nil(t, r.ResolveUnitObject(UnitRef{}))
}

func TestResolver_DefaultUnitFor(t *testing.T) {
	cat := catalogs.NewCatalog(
		[]*service.Service{
			service.NewService("CONSEIL", "Conseil").
				WithDefaultUnit("JOUR").
				WithLinkedUnit("HEURE", "Heure", true),
			service.NewService("FORMATION", "Formation").
				WithLinkedUnit("JOUR", "Jour", false).
				WithLinkedUnit("SESSION", "Session", true),
			service.NewService("DIVERS", "Divers"),
		},
		[]*unit.Unit{
			unit.NewUnit("HEURE", "Heure"),
			unit.NewUnit("JOUR", "Jour"),
		},
	)
	r := NewResolver(cat, map[string]string{"DIVERS": "HEURE"}, nil)

	tests := []struct {
		name      string
		service   string
		overrides map[string]string
		want      string
	}{
		{"override table first", "CONSEIL", map[string]string{"CONSEIL": "HEURE"}, "HEURE"},
		{"configured table", "DIVERS", nil, "HEURE"},
		{"service default unit before linked default", "CONSEIL", nil, "JOUR"},
		{"linked unit flagged default", "FORMATION", nil, "SESSION"},
		{"unknown service", "GHOST", nil, ""},
		{"blank service", "", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.DefaultUnitFor(tt.service, tt.overrides)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
		})
	}
}

func TestResolver_DefaultUnitFor_NoDefault(t *testing.T) {
	cat := catalogs.NewCatalog(
		[]*service.Service{service.NewService("LIBRE", "Libre").WithLinkedUnit("HEURE", "Heure", false)},
		[]*unit.Unit{unit.NewUnit("HEURE", "Heure")},
	)
	r := NewResolver(cat, nil, nil)

	assert.Nil(t, r.DefaultUnitFor("LIBRE", nil))
}
