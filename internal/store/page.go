package store

import (
	"math"

	"github.com/iurnickita/foodorder/internal/model"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// pageBounds нормализует параметры страницы и возвращает смещение
func pageBounds(filter model.PaymentFilter) (page int, perPage int, offset int) {
	page = filter.Page
	if page < 1 {
		page = 1
	}
	perPage = filter.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	// смещение не должно переполнить int
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	return page, perPage, (page - 1) * perPage
}

func totalPages(total int, perPage int) int {
	if total == 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}
