package config

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/catalogs/service"
	"facturation/internal/domain/catalogs/unit"
)

// seedFile is the catalog seed layout:
//
//	units:
//	  - {code: HEURE, name: Heure, symbol: h}
//	services:
//	  - code: CONSEIL
//	    name: Conseil
//	    default_unit: HEURE
//	    units:
//	      - {code: HEURE, default: true}
//	      - {code: JOUR}
type seedFile struct {
	Units    []seedUnit    `mapstructure:"units"`
	Services []seedService `mapstructure:"services"`
}

type seedUnit struct {
	Code   string `mapstructure:"code"`
	Name   string `mapstructure:"name"`
	Symbol string `mapstructure:"symbol"`
}

type seedService struct {
	Code        string           `mapstructure:"code"`
	Name        string           `mapstructure:"name"`
	DefaultUnit string           `mapstructure:"default_unit"`
	Units       []seedLinkedUnit `mapstructure:"units"`
}

type seedLinkedUnit struct {
	Code    string `mapstructure:"code"`
	Name    string `mapstructure:"name"`
	Default bool   `mapstructure:"default"`
}

// LoadSeedFile reads a YAML or JSON catalog seed. Linked units without a
// name take the name of the declared unit with the same code.
func LoadSeedFile(path string) (catalogs.StaticSource, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return catalogs.StaticSource{}, fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := v.Unmarshal(&seed); err != nil {
		return catalogs.StaticSource{}, fmt.Errorf("decode seed file: %w", err)
	}
	return seed.source(), nil
}

func (f seedFile) source() catalogs.StaticSource {
	units := lo.Map(f.Units, func(su seedUnit, _ int) *unit.Unit {
		u := unit.NewUnit(su.Code, su.Name)
		u.Symbol = su.Symbol
		return u
	})
	unitNames := lo.SliceToMap(units, func(u *unit.Unit) (string, string) {
		return u.Code, u.Name
	})

	services := lo.Map(f.Services, func(ss seedService, _ int) *service.Service {
		s := service.NewService(ss.Code, ss.Name)
		if ss.DefaultUnit != "" {
			s.WithDefaultUnit(ss.DefaultUnit)
		}
		for _, l := range ss.Units {
			name := l.Name
			if name == "" {
				name = unitNames[l.Code]
			}
			s.WithLinkedUnit(l.Code, name, l.Default)
		}
		return s
	})

	return catalogs.StaticSource{Services: services, Units: units}
}
