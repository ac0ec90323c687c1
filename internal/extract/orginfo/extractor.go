// Package orginfo extracts listing links and organization records from
// orginfo.uz markup.
package orginfo

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
)

// Selectors for the current orginfo.uz layout.
const (
	ListingLinkSelector = "a.text-decoration-none.og-card"
	TitleSelector       = "h1.h1-seo"
	RowSelector         = "div.row"
)

// ErrTitleMissing is returned when a detail page has no title heading.
var ErrTitleMissing = errors.New("organization title not found")

// Labels maps the first-cell text of a detail row to the record field it fills.
var Labels = map[string]crawler.Field{
	"Telefon raqami":  crawler.FieldPhone,
	"Manzili":         crawler.FieldAddress,
	"Elektron pochta": crawler.FieldEmail,
	"IFUT":            crawler.FieldTaxID,
}

// Extractor implements crawler.Extractor for orginfo.uz.
type Extractor struct{}

// New returns an orginfo.uz extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractLinks returns the href of every search-result card, in page order.
func (e *Extractor) ExtractLinks(body []byte) ([]crawler.Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	var links []crawler.Link
	doc.Find(ListingLinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		links = append(links, crawler.Link(href))
	})
	return links, nil
}

// ExtractRecord reads the organization name and the recognized detail rows.
// Rows whose label is not recognized are ignored.
func (e *Extractor) ExtractRecord(body []byte) (crawler.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.Record{}, fmt.Errorf("parse detail html: %w", err)
	}
	title := doc.Find(TitleSelector).First()
	if title.Length() == 0 {
		return crawler.Record{}, ErrTitleMissing
	}

	var rec crawler.Record
	if err := rec.Set(crawler.FieldName, crawler.NormalizeSpace(title.Text())); err != nil {
		return crawler.Record{}, err
	}
	doc.Find(RowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("div")
		if cells.Length() < 2 {
			return
		}
		field, ok := Labels[crawler.NormalizeSpace(cells.Eq(0).Text())]
		if !ok {
			return
		}
		// Set only fails for unknown fields and Labels holds known ones.
		_ = rec.Set(field, crawler.NormalizeSpace(cells.Eq(1).Text()))
	})
	return rec, nil
}
