package models

import "strings"

// Catalog is the operator-maintained product configuration loaded from catalog.yaml
type Catalog struct {
	Costs       GenerationCosts  `yaml:"costs"`
	Voices      VoiceFilter      `yaml:"voices"`
	Backgrounds BackgroundFilter `yaml:"backgrounds"`
	CreditPacks []CreditPack     `yaml:"credit_packs"`
}

// GenerationCosts is the credit price of each paid operation. Zero means free.
type GenerationCosts struct {
	Video    int64 `yaml:"video"`
	Workflow int64 `yaml:"workflow"`
	Speech   int64 `yaml:"speech"`
}

// VoiceFilter narrows provider voice lists. Empty lists allow everything.
type VoiceFilter struct {
	Languages []string `yaml:"languages"`
	Genders   []string `yaml:"genders"`
	Exclude   []string `yaml:"exclude"`
}

// Allows reports whether a voice passes the catalog lists.
func (f VoiceFilter) Allows(v Voice) bool {
	return matchesAny(f.Languages, v.Language) && matchesAny(f.Genders, v.Gender) && !contains(f.Exclude, v.Id)
}

// BackgroundFilter narrows provider background lists. Empty lists allow everything.
type BackgroundFilter struct {
	Types   []string `yaml:"types"`
	Exclude []string `yaml:"exclude"`
}

// Allows reports whether a background passes the catalog lists.
func (f BackgroundFilter) Allows(b Background) bool {
	return matchesAny(f.Types, b.Type) && !contains(f.Exclude, b.Id)
}

// CreditPack is a purchasable bundle of credits. Price is decimal major units in
// the YAML; PriceMinor is derived at load time.
type CreditPack struct {
	Id         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Credits    int64  `yaml:"credits" json:"credits"`
	Price      string `yaml:"price" json:"price"`
	Currency   string `yaml:"currency" json:"currency"`
	PriceMinor int64  `yaml:"-" json:"priceMinor"`
}

// Pack returns the credit pack with the given id.
func (c *Catalog) Pack(id string) (CreditPack, bool) {
	for _, p := range c.CreditPacks {
		if p.Id == id {
			return p, true
		}
	}
	return CreditPack{}, false
}

// matchesAny is true for an empty allow list or a case-insensitive hit.
func matchesAny(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	return contains(allowed, value)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
