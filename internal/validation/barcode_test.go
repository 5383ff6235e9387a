package validation

import (
	"testing"

	"github.com/mir00r/giftcert-router/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBarcode(t *testing.T) {
	tests := []struct {
		name    string
		barcode string
		want    string
	}{
		{name: "valid", barcode: "AAO11111111"},
		{name: "lowercase is allowed", barcode: "aao11111111"},
		{name: "empty", barcode: "", want: MsgEmptyBarcode},
		{name: "too short", barcode: "AAO1111", want: MsgBarcodeLength},
		{name: "too long", barcode: "AAO111111111", want: MsgBarcodeLength},
		{name: "length checked before format", barcode: "A-B", want: MsgBarcodeLength},
		{name: "punctuation", barcode: "AAO-1111111", want: MsgBarcodeFormat},
		{name: "whitespace", barcode: "AAO 1111111", want: MsgBarcodeFormat},
		{name: "cyrillic letters", barcode: "ААО11111111", want: MsgBarcodeFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBarcode(tt.barcode)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalid)
			assert.Equal(t, tt.want, err.(*errors.RouterError).Message)
		})
	}
}

func TestValidateBarcodes_EmptyList(t *testing.T) {
	err := ValidateBarcodes(nil)
	require.Error(t, err)
	assert.Equal(t, MsgCertsNotValid, err.(*errors.RouterError).Message)
	assert.Equal(t, 400, errors.GetHTTPStatusCode(err))
}

func TestValidateBarcodes_AllValid(t *testing.T) {
	assert.NoError(t, ValidateBarcodes([]string{"AAO11111111", "bbb22222222"}))
}

func TestValidateBarcodes_ReportsDistinctMessages(t *testing.T) {
	err := ValidateBarcodes([]string{"AAO11111111", "", "short", "", "AAO-1111111"})
	require.Error(t, err)

	msg := err.(*errors.RouterError).Message
	assert.Equal(t, MsgEmptyBarcode+"; "+MsgBarcodeLength+"; "+MsgBarcodeFormat, msg)
}
