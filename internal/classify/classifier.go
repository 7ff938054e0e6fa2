// Package classify maps declared media types to extraction strategies and
// enforces the admission rules for uploaded files.
package classify

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"dealdossier/internal/domain"
)

// DefaultMaxBytes is the largest file admitted for upload (100 MiB).
const DefaultMaxBytes int64 = 100 * 1024 * 1024

// Kind describes an accepted file type.
type Kind struct {
	MediaType string          `json:"media_type"`
	Strategy  domain.Strategy `json:"strategy"`
	Icon      string          `json:"icon"`
	Label     string          `json:"label"`
	Extension string          `json:"extension"`
}

var accepted = []Kind{
	{MediaType: "application/pdf", Strategy: domain.StrategyPDF, Icon: "FileText", Label: "PDF", Extension: "pdf"},
	{MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Strategy: domain.StrategyDocx, Icon: "FileText", Label: "DOCX", Extension: "docx"},
	{MediaType: "application/vnd.ms-excel", Strategy: domain.StrategySpreadsheet, Icon: "FileSpreadsheet", Label: "XLS", Extension: "xls"},
	{MediaType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Strategy: domain.StrategySpreadsheet, Icon: "FileSpreadsheet", Label: "XLSX", Extension: "xlsx"},
	{MediaType: "text/csv", Strategy: domain.StrategyCSV, Icon: "FileSpreadsheet", Label: "CSV", Extension: "csv"},
	{MediaType: "application/json", Strategy: domain.StrategyJSON, Icon: "FileCode", Label: "JSON", Extension: "json"},
	{MediaType: "audio/mpeg", Strategy: domain.StrategyAudio, Icon: "FileAudio", Label: "MP3", Extension: "mp3"},
	{MediaType: "audio/wav", Strategy: domain.StrategyAudio, Icon: "FileAudio", Label: "WAV", Extension: "wav"},
	{MediaType: "audio/mp4", Strategy: domain.StrategyAudio, Icon: "FileAudio", Label: "M4A", Extension: "m4a"},
}

// aliases maps alternative spellings that browsers and sniffers emit.
var aliases = map[string]string{
	"audio/x-wav":               "audio/wav",
	"audio/wave":                "audio/wav",
	"audio/vnd.wave":            "audio/wav",
	"audio/x-m4a":               "audio/mp4",
	"audio/m4a":                 "audio/mp4",
	"audio/mp3":                 "audio/mpeg",
	"application/x-ole-storage": "application/vnd.ms-excel",
}

var (
	byMediaType = make(map[string]Kind, len(accepted))
	byExtension = make(map[string]Kind, len(accepted))
)

func init() {
	for _, k := range accepted {
		byMediaType[k.MediaType] = k
		byExtension[k.Extension] = k
	}
}

// Accepted returns the accepted file types in display order.
func Accepted() []Kind {
	out := make([]Kind, len(accepted))
	copy(out, accepted)
	return out
}

// Classify maps a declared media type to its Kind. Parameters such as
// charset are ignored and matching is case-insensitive.
func Classify(mediaType string) (Kind, error) {
	mt := normalize(mediaType)
	if k, ok := byMediaType[mt]; ok {
		return k, nil
	}
	return Kind{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, mediaType)
}

// Admit checks the size limit and classifies the file. An empty or generic
// declared type is resolved from the file extension, then from content when
// head is non-nil.
func Admit(name, mediaType string, size, maxBytes int64, head io.Reader) (Kind, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if size > maxBytes {
		return Kind{}, fmt.Errorf("%w: %d bytes", domain.ErrFileTooLarge, size)
	}

	mt := normalize(mediaType)
	if mt == "" || mt == "application/octet-stream" {
		mt = resolve(name, head)
	}
	return Classify(mt)
}

func resolve(name string, head io.Reader) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if k, ok := byExtension[ext]; ok {
		return k.MediaType
	}
	if head == nil {
		return ""
	}
	detected, err := mimetype.DetectReader(head)
	if err != nil {
		return ""
	}
	for m := detected; m != nil; m = m.Parent() {
		mt := normalize(m.String())
		if _, ok := byMediaType[mt]; ok {
			return mt
		}
	}
	return ""
}

func normalize(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if mt == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if canonical, ok := aliases[mt]; ok {
		return canonical
	}
	return mt
}
