package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const maxImageBytes = 8 << 20

// detectImageType maps sniffed content to the image type names fpdf expects.
func detectImageType(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return "PNG"
	case "image/jpeg":
		return "JPG"
	case "image/gif":
		return "GIF"
	default:
		return ""
	}
}

func bytesReader(data []byte) *bytes.Reader {
	return bytes.NewReader(data)
}

// downloadImage fetches a media URL with the generator's client. Any failure
// returns an error; callers fall back to placeholder text.
func downloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching image", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if detectImageType(data) == "" {
		return nil, fmt.Errorf("unsupported image format")
	}
	return data, nil
}

// mapsLink builds the maps URL encoded into the report's QR code.
func mapsLink(lat, lng string) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%s,%s", strings.TrimSpace(lat), strings.TrimSpace(lng))
}

// qrPNG renders the link as a PNG QR code. High error correction keeps the
// code scannable on a mediocre printout.
func qrPNG(link string) ([]byte, error) {
	return qrcode.Encode(link, qrcode.High, 256)
}

// normalizeText flattens line endings and strips control characters that the
// historical data sometimes carries into descriptions.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var b strings.Builder
	for _, r := range text {
		if r == '\n' || r >= ' ' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
