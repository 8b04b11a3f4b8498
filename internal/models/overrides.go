package models

type PotOverride struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name,omitempty"`
	Hidden bool   `yaml:"hidden,omitempty"`
}

type DisplayOverrides struct {
	Pots []PotOverride `yaml:"pots,omitempty"`
}
