package catalogs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturation/internal/domain/catalogs/service"
	"facturation/internal/domain/catalogs/unit"
)

func testCatalog() *Catalog {
	return NewCatalog(
		[]*service.Service{
			service.NewService("CONSEIL", "Conseil").
				WithLinkedUnit("HEURE", "Heure", true).
				WithLinkedUnit("JOUR", "Jour", false),
			service.NewService("FORFAIT", "Forfait").WithDefaultUnit("UNITE"),
			service.NewService("DIVERS", "Divers"),
			service.NewService("CONSEIL", "Duplicate"),
		},
		[]*unit.Unit{
			unit.NewUnit("HEURE", "Heure"),
			unit.NewUnit("JOUR", "Jour"),
			unit.NewUnit("UNITE", "Unité"),
		},
	)
}

func TestCatalog_Lookup(t *testing.T) {
	c := testCatalog()

	s, ok := c.Service("CONSEIL")
	require.True(t, ok)
	assert.Equal(t, "Conseil", s.Name, "first declared entry wins")

	_, ok = c.Service("NOPE")
	assert.False(t, ok)

	assert.True(t, c.HasUnit("JOUR"))
	assert.False(t, c.HasUnit("MOIS"))
	assert.Len(t, c.Services(), 4)
	assert.Len(t, c.Units(), 3)
}

func TestCatalog_IsUnitLinked(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name    string
		service string
		unit    string
		want    bool
	}{
		{"linked default", "CONSEIL", "HEURE", true},
		{"linked other", "CONSEIL", "JOUR", true},
		{"not linked", "CONSEIL", "UNITE", false},
		{"service default unit", "FORFAIT", "UNITE", true},
		{"service default unit only", "FORFAIT", "HEURE", false},
		{"no linkage accepts anything", "DIVERS", "JOUR", true},
		{"unknown service", "NOPE", "HEURE", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsUnitLinked(tt.service, tt.unit))
		})
	}
}

func TestStaticSource_Load(t *testing.T) {
	ctx := context.Background()

	c, err := StaticSource{
		Services: []*service.Service{service.NewService("CONSEIL", "Conseil")},
		Units:    []*unit.Unit{unit.NewUnit("HEURE", "Heure")},
	}.Load(ctx)
	require.NoError(t, err)
	assert.True(t, c.HasService("CONSEIL"))

	_, err = StaticSource{
		Services: []*service.Service{
			service.NewService("X", "X").
				WithLinkedUnit("A", "A", true).
				WithLinkedUnit("B", "B", true),
		},
	}.Load(ctx)
	assert.Error(t, err)

	_, err = StaticSource{Units: []*unit.Unit{unit.NewUnit("H", "")}}.Load(ctx)
	assert.Error(t, err)
}
