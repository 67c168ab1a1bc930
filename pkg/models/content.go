package models

// Translation is a UI string editable from the admin panel
type Translation struct {
	BaseModel
	Key       string        `gorm:"uniqueIndex;not null" json:"key" validate:"required"`
	Namespace string        `gorm:"index;default:'common'" json:"namespace"`
	Value     LocalizedText `json:"value"`
}

// Homepage section types
const (
	SectionHero             = "hero"
	SectionFeaturedProducts = "featured_products"
	SectionCategoryGrid     = "category_grid"
	SectionBanner           = "banner"
)

// HomepageSection is one block of the storefront homepage
type HomepageSection struct {
	BaseModel
	Type     string        `gorm:"not null" json:"type" validate:"required,oneof=hero featured_products category_grid banner"`
	Title    LocalizedText `json:"title"`
	Subtitle LocalizedText `json:"subtitle"`
	Image    string        `json:"image"`
	Link     string        `json:"link"`
	Payload  JSONMap       `json:"payload"`
	Position int           `gorm:"default:0;index" json:"position"`
	IsActive bool          `gorm:"default:true" json:"is_active"`
}

// FooterContent is one block of the storefront footer
type FooterContent struct {
	BaseModel
	Section  string        `gorm:"not null;index" json:"section" validate:"required,oneof=contacts about social links"`
	Title    LocalizedText `json:"title"`
	Body     LocalizedText `json:"body"`
	Payload  JSONMap       `json:"payload"`
	Position int           `gorm:"default:0" json:"position"`
	IsActive bool          `gorm:"default:true" json:"is_active"`
}

// ReorderRequest sets positions for a list of ids in the given order
type ReorderRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}
