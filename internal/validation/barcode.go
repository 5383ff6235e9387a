// Package validation checks certificate lookup requests before they reach
// the database.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mir00r/giftcert-router/internal/errors"
)

// BarcodeLength is the only accepted barcode length
const BarcodeLength = 11

// Messages returned to API clients
const (
	MsgEmptyBarcode  = "Cert's barcode can't be empty"
	MsgBarcodeLength = "Cert's barcode should be 11 symbols length"
	MsgBarcodeFormat = "Cert's barcode is in wrong format - only latin symbols and digits are allowed"
	MsgCertsNotValid = "Certs aren't valid"
)

var barcodePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidateBarcode returns the first rule a single barcode breaks
func ValidateBarcode(barcode string) error {
	switch {
	case barcode == "":
		return errors.NewInvalidRequestError(MsgEmptyBarcode)
	case utf8.RuneCountInString(barcode) != BarcodeLength:
		return errors.NewInvalidRequestError(MsgBarcodeLength)
	case !barcodePattern.MatchString(barcode):
		return errors.NewInvalidRequestError(MsgBarcodeFormat)
	}
	return nil
}

// ValidateBarcodes checks every barcode and reports all distinct problems
// in one error. An empty list is rejected.
func ValidateBarcodes(barcodes []string) error {
	if len(barcodes) == 0 {
		return errors.NewInvalidRequestError(MsgCertsNotValid)
	}

	var messages []string
	seen := make(map[string]bool)
	for _, barcode := range barcodes {
		routerErr, failed := errors.AsRouterError(ValidateBarcode(barcode))
		if !failed {
			continue
		}
		if msg := routerErr.Message; !seen[msg] {
			seen[msg] = true
			messages = append(messages, msg)
		}
	}

	if len(messages) > 0 {
		return errors.NewInvalidRequestError(strings.Join(messages, "; "))
	}
	return nil
}
