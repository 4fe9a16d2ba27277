package infra

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"stockledger/internal/apperr"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// QRCodec maps a product id to the locator printed on shelf labels and back.
// The locator only names a product; resolving it always goes through the
// catalog with the caller's own session.
type QRCodec struct {
	frontendURL string
	size        int
}

const defaultQRSize = 256

func NewQRCodec(frontendURL string) *QRCodec {
	return &QRCodec{frontendURL: strings.TrimRight(frontendURL, "/"), size: defaultQRSize}
}

// Encode returns {frontend}/product/{id}.
func (q *QRCodec) Encode(id uuid.UUID) string {
	return q.frontendURL + "/product/" + id.String()
}

// Decode accepts a locator produced by Encode (from any host) or a bare id.
func (q *QRCodec) Decode(locator string) (uuid.UUID, error) {
	locator = strings.TrimSpace(locator)
	if id, err := uuid.Parse(locator); err == nil {
		return id, nil
	}

	u, err := url.Parse(locator)
	if err != nil {
		return uuid.Nil, apperr.InvalidArgument("unreadable product code")
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[len(segments)-2] != "product" {
		return uuid.Nil, apperr.InvalidArgument("unreadable product code")
	}
	id, err := uuid.Parse(segments[len(segments)-1])
	if err != nil {
		return uuid.Nil, apperr.InvalidArgument("unreadable product code")
	}
	return id, nil
}

// PNG renders locator as a QR symbol.
func (q *QRCodec) PNG(locator string) ([]byte, error) {
	png, err := qrcode.Encode(locator, qrcode.Low, q.size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}

// DataURL renders locator as an inline data:image/png;base64 URL.
func (q *QRCodec) DataURL(locator string) (string, error) {
	png, err := q.PNG(locator)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
