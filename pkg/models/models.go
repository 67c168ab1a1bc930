package models

// PaginationResult represents paginated results
type PaginationResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationResult fills the page math for a result set
func NewPaginationResult[T any](data []T, total int64, page, perPage int) *PaginationResult[T] {
	if perPage <= 0 {
		perPage = 1
	}
	if page <= 0 {
		page = 1
	}
	if data == nil {
		data = []T{}
	}
	return &PaginationResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: int((total + int64(perPage) - 1) / int64(perPage)),
	}
}

// GetAllModels returns all models for GORM AutoMigrate
func GetAllModels() []interface{} {
	return []interface{}{
		&User{},

		// Catalog
		&Category{},
		&Product{},
		&Cart{},
		&CartItem{},

		// Orders
		&Order{},
		&OrderItem{},
		&Payment{},
		&OrderStatusHistory{},

		// Content
		&Translation{},
		&HomepageSection{},
		&FooterContent{},

		// Notifications
		&NotificationSettings{},
		&NotificationLog{},
		&InAppNotification{},
	}
}
