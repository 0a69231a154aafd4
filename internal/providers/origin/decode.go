package origin

import (
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// minChardetConfidence is the chardet confidence below which detection is ignored.
const minChardetConfidence = 50

// decompress wraps body according to Content-Encoding. The returned closer
// releases decoder resources, not the underlying body.
func decompress(body io.Reader, encoding string) (io.Reader, func(), error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, func() {}, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case "zstd":
		zr, err := zstd.NewReader(body)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// readCapped reads at most limit bytes of decoded content.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, readFailure(err)
	}
	if int64(len(data)) > limit {
		return nil, &Failure{
			Reason:  types.ReasonProxyTooLarge,
			Message: types.ReasonProxyTooLarge.Message(),
			Err:     fmt.Errorf("body exceeds %d bytes", limit),
		}
	}
	return data, nil
}

func readFailure(err error) *Failure {
	if isTimeout(err) {
		return &Failure{Reason: types.ReasonProxyTimeout, Message: types.ReasonProxyTimeout.Message(), Err: err}
	}
	return &Failure{Reason: types.ReasonProxyFetchFailed, Message: types.ReasonProxyFetchFailed.Message(), Err: err}
}

// isHTMLType reports whether a Content-Type header names an HTML document.
func isHTMLType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// sniffHTML is used when the upstream sent no Content-Type.
func sniffHTML(data []byte) bool {
	mt := mimetype.Detect(data)
	return mt.Is("text/html") || mt.Is("application/xhtml+xml")
}

// toUTF8 converts data to UTF-8. The declared charset wins, then valid
// UTF-8 is kept as is, then chardet, then the HTML prescan default.
func toUTF8(data []byte, contentType string) ([]byte, string) {
	label := declaredCharset(contentType)
	if label == "" {
		if utf8.Valid(data) {
			return data, "utf-8"
		}
		label = detectCharset(data)
	}

	enc, name := charset.Lookup(label)
	if enc == nil || name == "utf-8" {
		return data, "utf-8"
	}
	converted, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return data, "utf-8"
	}
	return converted, name
}

func declaredCharset(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

func detectCharset(data []byte) string {
	result, err := chardet.NewHtmlDetector().DetectBest(data)
	if err == nil && result != nil && result.Confidence >= minChardetConfidence {
		return strings.ToLower(result.Charset)
	}
	_, name, _ := charset.DetermineEncoding(data, "text/html")
	return name
}
