package services

import "errors"

var (
	// ErrEmptyCart indicates normalisation produced no usable cart lines.
	ErrEmptyCart = errors.New("checkout: empty cart")
	// ErrInvalidPacksInCart indicates a referenced pack is not visible.
	ErrInvalidPacksInCart = errors.New("checkout: invalid packs in cart")
	// ErrInvalidProductsInCart indicates a referenced product is not visible.
	ErrInvalidProductsInCart = errors.New("checkout: invalid products in cart")
	// ErrCatalogNotFound indicates a referenced id does not resolve or a pack
	// has no components.
	ErrCatalogNotFound = errors.New("checkout: catalog entry not found")
	// ErrNoPrice indicates the active price list has no price for an item.
	ErrNoPrice = errors.New("checkout: no price")
	// ErrOutOfStock is the authoritative reservation failure after the order
	// row exists. Compensation has already run when it is returned.
	ErrOutOfStock = errors.New("checkout: out of stock")
	// ErrSchoolRequiredForDiscount indicates a school-scoped code was supplied
	// by a buyer with no school affiliation.
	ErrSchoolRequiredForDiscount = errors.New("checkout: school affiliation required for discount")
	// ErrDiscountNotAllowedForSchool indicates a school-scoped code belongs to
	// a different school than the buyer's.
	ErrDiscountNotAllowedForSchool = errors.New("checkout: discount not allowed for school")
	// ErrAddressRequired indicates neither the request nor the buyer profile
	// carries a usable shipping address.
	ErrAddressRequired = errors.New("checkout: shipping address required")
	// ErrBuyerProfileRequired indicates the authenticated identity does not
	// resolve to a buyer profile.
	ErrBuyerProfileRequired = errors.New("checkout: buyer profile required")
	// ErrPaymentGateway indicates the payment session could not be created.
	// Compensation has already run when it is returned.
	ErrPaymentGateway = errors.New("checkout: payment gateway failure")
	// ErrDiscountNotFound indicates a public discount lookup missed.
	ErrDiscountNotFound = errors.New("discount: not found")
)
