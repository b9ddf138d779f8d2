package services

import (
	"math"
	"strconv"
	"strings"

	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
	"github.com/yashrajoria/catalog-import/services/product-service/models"
)

// ValidateCandidate checks a parsed payload and normalises it. title, price
// and count are required and non-blank; price must be a finite number above
// zero and count a whole number of at least zero. A missing description
// becomes models.DefaultDescription.
func ValidateCandidate(c models.ImportCandidate) (models.NewProduct, error) {
	title := strings.TrimSpace(c.Title.Raw)
	if !c.Title.Present || title == "" {
		return models.NewProduct{}, &apperrors.ValidationError{Reason: "title is required"}
	}

	priceRaw := strings.TrimSpace(c.Price.Raw)
	if !c.Price.Present || priceRaw == "" {
		return models.NewProduct{}, &apperrors.ValidationError{Reason: "price is required"}
	}
	price, err := strconv.ParseFloat(priceRaw, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return models.NewProduct{}, &apperrors.ValidationError{Reason: "price is not a number"}
	}
	if price <= 0 {
		return models.NewProduct{}, &apperrors.ValidationError{Reason: "price must be greater than zero"}
	}

	countRaw := strings.TrimSpace(c.Count.Raw)
	if !c.Count.Present || countRaw == "" {
		return models.NewProduct{}, &apperrors.ValidationError{Reason: "count is required"}
	}
	count, err := strconv.ParseFloat(countRaw, 64)
	if err != nil || math.IsNaN(count) || math.IsInf(count, 0) {
		return models.NewProduct{}, &apperrors.ValidationError{Reason: "count is not a number"}
	}
	if count < 0 || count != math.Trunc(count) || count > math.MaxInt32 {
		return models.NewProduct{}, &apperrors.ValidationError{Reason: "count must be a whole number of at least zero"}
	}

	description := strings.TrimSpace(c.Description.Raw)
	if description == "" {
		description = models.DefaultDescription
	}

	return models.NewProduct{
		Title:       title,
		Description: description,
		Price:       price,
		Count:       int(count),
	}, nil
}
