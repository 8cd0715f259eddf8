package documents

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MimeText = "text/plain"
	MimePDF  = "application/pdf"
	MimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// MimeForKey maps an object key's extension to a supported content type.
func MimeForKey(key string) (string, bool) {
	switch strings.ToLower(path.Ext(key)) {
	case ".txt", ".md":
		return MimeText, true
	case ".pdf":
		return MimePDF, true
	case ".docx":
		return MimeDocx, true
	default:
		return "", false
	}
}

func ExtractText(mime string, data []byte) (string, error) {
	switch mime {
	case MimeText:
		return string(data), nil
	case MimePDF:
		return extractPDFText(data)
	case MimeDocx:
		return extractDocxText(data)
	default:
		return "", fmt.Errorf("unsupported file type: %s", mime)
	}
}

func extractPDFText(data []byte) (string, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	var textBuilder strings.Builder
	for i := 1; i <= pdfReader.NumPage(); i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		textBuilder.WriteString(text)
	}
	return textBuilder.String(), nil
}

func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return stripTags(doc.Editable().GetContent()), nil
}

// stripTags drops the WordprocessingML markup GetContent returns, keeping
// paragraph breaks.
func stripTags(xml string) string {
	var b strings.Builder
	r := strings.NewReader(xml)
	inTag := false
	var tag strings.Builder
	for {
		c, _, err := r.ReadRune()
		if err == io.EOF {
			break
		}
		switch {
		case c == '<':
			inTag = true
			tag.Reset()
		case c == '>' && inTag:
			inTag = false
			if t := tag.String(); t == "/w:p" || strings.HasPrefix(t, "w:br") {
				b.WriteByte('\n')
			}
		case inTag:
			tag.WriteRune(c)
		default:
			b.WriteRune(c)
		}
	}
	return strings.TrimSpace(b.String())
}
