package models

// Service is a static catalog entry. The catalog is loaded from configuration
// at startup and never persisted per-booking beyond the identifier reference.
type Service struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Price       string `yaml:"price" json:"price"`
	Icon        string `yaml:"icon" json:"icon"`
}
