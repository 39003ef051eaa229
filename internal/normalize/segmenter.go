package normalize

import (
	"html"
	"regexp"
	"strings"

	"apteka/parser/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	log "github.com/sirupsen/logrus"
)

var whitespaceRegex = regexp.MustCompile(`[\s\p{Zs}]+`)

// Segmenter splits an HTML product description into sections keyed by the
// most recent recognised header block.
type Segmenter struct {
	headerRegex *regexp.Regexp
	stripper    *bluemonday.Policy
}

// NewSegmenter builds a Segmenter matching any of keywords, case-insensitively,
// anywhere inside a block.
func NewSegmenter(keywords []string) *Segmenter {
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(kw)))
	}

	var headerRegex *regexp.Regexp
	if len(quoted) > 0 {
		headerRegex = regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
	}

	return &Segmenter{
		headerRegex: headerRegex,
		stripper:    bluemonday.StrictPolicy(),
	}
}

// Segment never fails: unparsable or empty input yields the reserved keys only.
func (s *Segmenter) Segment(description string) domain.AttributeMap {
	attrs := domain.AttributeMap{
		domain.MetadataDescriptionKey: "",
		domain.MetadataArticleKey:     "",
		domain.MetadataCountryKey:     "",
	}

	blocks := s.blocks(description)

	var (
		key      string
		fullText []string
	)
	for _, block := range blocks {
		if s.isHeader(block) {
			key = headerKey(block)
			if _, ok := attrs[key]; !ok {
				attrs[key] = ""
			}
		} else if key != "" {
			attrs[key] = joinText(attrs[key], block)
		}
		fullText = append(fullText, block)
	}
	attrs[domain.MetadataDescriptionKey] = strings.Join(fullText, " ")

	return attrs
}

// blocks returns the normalized text of every top-level node of the fragment,
// skipping nodes that normalize to nothing. The fragment is parsed as is:
// unknown or legacy elements (font, center, o:p) still delimit blocks.
func (s *Segmenter) blocks(description string) []string {
	if strings.TrimSpace(description) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		log.Debugf("Description is not parsable, leaving it unsegmented: %v", err)
		return nil
	}
	doc.Find("script,style,noscript,template").Remove()

	var blocks []string
	doc.Find("body").Contents().Each(func(i int, node *goquery.Selection) {
		if text := s.normalizeBlock(node.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})
	return blocks
}

// normalizeBlock strips markup that survived as text (escaped tags),
// collapses whitespace and trims.
func (s *Segmenter) normalizeBlock(text string) string {
	if strings.Contains(text, "<") {
		text = html.UnescapeString(s.stripper.Sanitize(text))
	}
	text = strings.ReplaceAll(text, "\u00ad", "")
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func (s *Segmenter) isHeader(block string) bool {
	return s.headerRegex != nil && s.headerRegex.MatchString(block)
}

func headerKey(block string) string {
	key := strings.ToLower(block)
	key = strings.TrimRight(key, ": ")
	return strings.TrimSpace(key)
}

func joinText(acc, text string) string {
	if acc == "" {
		return text
	}
	return acc + " " + text
}
