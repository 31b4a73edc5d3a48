package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/png"

	"github.com/skip2/go-qrcode"
)

type QRService struct{}

func NewQRService() *QRService {
	return &QRService{}
}

// CredentialQR renders the hotspot login credentials as a base64 PNG.
// The payload is what captive-portal companion apps scan to log in.
func (s *QRService) CredentialQR(ticketID, username, password string) (string, error) {
	payload := map[string]any{
		"ticketId": ticketID,
		"username": username,
		"password": password,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	qr, err := qrcode.New(string(jsonData), qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
