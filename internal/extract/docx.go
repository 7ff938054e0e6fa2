package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"dealdossier/internal/domain"
	"dealdossier/internal/finance"
)

const maxKeyPoints = 5

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

type paragraph struct {
	style string
	text  string
}

func (p paragraph) heading() bool {
	s := strings.ToLower(p.style)
	return strings.HasPrefix(s, "heading") || s == "title"
}

func extractDocx(data []byte) (*domain.DocxInsight, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening docx archive: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, errors.New("word/document.xml not found")
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("opening document part: %w", err)
	}
	defer rc.Close()

	paras, err := readParagraphs(rc)
	if err != nil {
		return nil, err
	}

	var (
		texts    []string
		body     []string
		sections []domain.Section
		words    int
	)
	for i, p := range paras {
		if p.text == "" {
			continue
		}
		texts = append(texts, p.text)
		words += len(strings.Fields(p.text))
		if !p.heading() {
			body = append(body, p.text)
			continue
		}
		conf := 0.7
		for _, next := range paras[i+1:] {
			if next.heading() {
				break
			}
			if next.text != "" {
				conf = 0.9
				break
			}
		}
		sections = append(sections, domain.Section{Title: p.text, Confidence: conf})
	}

	text := strings.Join(texts, "\n")
	return &domain.DocxInsight{
		Kind:        domain.StrategyDocx,
		WordCount:   words,
		TextContent: text,
		KeyPoints:   keyPoints(body),
		Sections:    nonNilSections(sections),
		KeyMetrics:  scanMetrics(text),
	}, nil
}

func readParagraphs(r io.Reader) ([]paragraph, error) {
	dec := xml.NewDecoder(r)
	var (
		paras  []paragraph
		cur    *paragraph
		buf    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing document xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				cur = &paragraph{}
				buf.Reset()
			case "pStyle":
				if cur != nil {
					for _, a := range t.Attr {
						if a.Name.Local == "val" {
							cur.style = a.Value
						}
					}
				}
			case "t":
				inText = true
			case "tab", "br":
				if cur != nil {
					buf.WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if cur != nil {
					cur.text = strings.Join(strings.Fields(buf.String()), " ")
					paras = append(paras, *cur)
					cur = nil
				}
			}
		case xml.CharData:
			if inText && cur != nil {
				buf.Write(t)
			}
		}
	}
	return paras, nil
}

// keyPoints picks sentences that mention a metric or a figure.
func keyPoints(body []string) []string {
	out := []string{}
	for _, p := range body {
		for _, s := range splitSentences(p) {
			if len(out) == maxKeyPoints {
				return out
			}
			if len(finance.Mentions(s)) > 0 || strings.ContainsAny(s, "0123456789") {
				out = append(out, s)
			}
		}
	}
	return out
}

func splitSentences(p string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(p, -1) {
		if s := strings.TrimSpace(p[last : loc[0]+1]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(p[last:]); s != "" {
		out = append(out, s)
	}
	return out
}

func nonNilSections(s []domain.Section) []domain.Section {
	if s == nil {
		return []domain.Section{}
	}
	return s
}
