package normalize

import (
	"testing"

	"apteka/parser/internal/config"
	"apteka/parser/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestSegmenter_Segment(t *testing.T) {
	segmenter := NewSegmenter(config.DefaultHeaderKeywords)

	tests := []struct {
		name     string
		html     string
		expected domain.AttributeMap
	}{
		{
			name: "Empty description",
			html: "",
			expected: domain.AttributeMap{
				domain.MetadataDescriptionKey: "",
				domain.MetadataArticleKey:     "",
				domain.MetadataCountryKey:     "",
			},
		},
		{
			name: "Whitespace only",
			html: " \n\t ",
			expected: domain.AttributeMap{
				domain.MetadataDescriptionKey: "",
				domain.MetadataArticleKey:     "",
				domain.MetadataCountryKey:     "",
			},
		},
		{
			name: "Sections under headers",
			html: `<p>Жидкое мыло для рук.</p>
<h2>Состав:</h2>
<p>Вода,   глицерин.</p>
<p>Отдушка.</p>
<h2>Противопоказания</h2>
<p>Индивидуальная непереносимость.</p>`,
			expected: domain.AttributeMap{
				domain.MetadataDescriptionKey: "Жидкое мыло для рук. Состав: Вода, глицерин. Отдушка. Противопоказания Индивидуальная непереносимость.",
				domain.MetadataArticleKey:     "",
				domain.MetadataCountryKey:     "",
				"состав":                      "Вода, глицерин. Отдушка.",
				"противопоказания":            "Индивидуальная непереносимость.",
			},
		},
		{
			name: "Header keyword inside body text takes precedence",
			html: `<p><strong>Форма выпуска</strong></p><p>Гель, область нанесения: кожа рук.</p><p>Хранить в сухом месте.</p>`,
			expected: domain.AttributeMap{
				domain.MetadataDescriptionKey:        "Форма выпуска Гель, область нанесения: кожа рук. Хранить в сухом месте.",
				domain.MetadataArticleKey:            "",
				domain.MetadataCountryKey:            "",
				"форма выпуска":                      "",
				"гель, область нанесения: кожа рук.": "Хранить в сухом месте.",
			},
		},
		{
			name: "Repeated header continues accumulating",
			html: `<p>Состав</p><p>Вода.</p><p>Описание</p><p>Мыло.</p><p>Состав</p><p>Глицерин.</p>`,
			expected: domain.AttributeMap{
				domain.MetadataDescriptionKey: "Состав Вода. Описание Мыло. Состав Глицерин.",
				domain.MetadataArticleKey:     "",
				domain.MetadataCountryKey:     "",
				"состав":                      "Вода. Глицерин.",
				"описание":                    "Мыло.",
			},
		},
		{
			name: "Entities decoded and scripts dropped",
			html: `<p>Дозировка:</p><p>По&nbsp;1&nbsp;таблетке &laquo;утром&raquo;</p><script>alert("x")</script>`,
			expected: domain.AttributeMap{
				domain.MetadataDescriptionKey: "Дозировка: По 1 таблетке «утром»",
				domain.MetadataArticleKey:     "",
				domain.MetadataCountryKey:     "",
				"дозировка":                   "По 1 таблетке «утром»",
			},
		},
		{
			name: "Escaped markup remnants are stripped",
			html: `<p>Описание</p><p>&lt;strong&gt;Мягкая&lt;/strong&gt; формула</p>`,
			expected: domain.AttributeMap{
				domain.MetadataDescriptionKey: "Описание Мягкая формула",
				domain.MetadataArticleKey:     "",
				domain.MetadataCountryKey:     "",
				"описание":                    "Мягкая формула",
			},
		},
		{
			name: "Legacy font siblings stay separate blocks",
			html: `<font>Состав:</font><font>Вода</font>`,
			expected: domain.AttributeMap{
				domain.MetadataDescriptionKey: "Состав: Вода",
				domain.MetadataArticleKey:     "",
				domain.MetadataCountryKey:     "",
				"состав":                      "Вода",
			},
		},
		{
			name: "Word and center markup stay separate blocks",
			html: `<center>Описание</center><o:p>Мыло для рук.</o:p><o:p></o:p><center>Показания</center><o:p>Сухая кожа.</o:p>`,
			expected: domain.AttributeMap{
				domain.MetadataDescriptionKey: "Описание Мыло для рук. Показания Сухая кожа.",
				domain.MetadataArticleKey:     "",
				domain.MetadataCountryKey:     "",
				"описание":                    "Мыло для рук.",
				"показания":                   "Сухая кожа.",
			},
		},
		{
			name: "Styles and comments contribute nothing",
			html: `<style>p { color: red }</style><!-- Состав --><p>Форма:</p><p>Таблетки.</p>`,
			expected: domain.AttributeMap{
				domain.MetadataDescriptionKey: "Форма: Таблетки.",
				domain.MetadataArticleKey:     "",
				domain.MetadataCountryKey:     "",
				"форма":                       "Таблетки.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, segmenter.Segment(tt.html))
		})
	}
}

func TestSegmenter_FlatTextGoesToFallbackOnly(t *testing.T) {
	segmenter := NewSegmenter(config.DefaultHeaderKeywords)

	attrs := segmenter.Segment(`<p>Первый абзац.</p><p>Второй абзац.</p>Хвост без тега`)

	assert.Equal(t, domain.AttributeMap{
		domain.MetadataDescriptionKey: "Первый абзац. Второй абзац. Хвост без тега",
		domain.MetadataArticleKey:     "",
		domain.MetadataCountryKey:     "",
	}, attrs)
}

func TestSegmenter_NoKeywords(t *testing.T) {
	segmenter := NewSegmenter(nil)

	attrs := segmenter.Segment(`<p>Состав</p><p>Вода.</p>`)

	assert.Equal(t, "Состав Вода.", attrs[domain.MetadataDescriptionKey])
	assert.Len(t, attrs, 3)
}

func TestSegmenter_CustomKeywords(t *testing.T) {
	segmenter := NewSegmenter([]string{"Ingredients", " ", "usage"})

	attrs := segmenter.Segment(`<p>Intro</p><h3>INGREDIENTS:</h3><p>Water</p><h3>Usage</h3><p>Daily</p>`)

	assert.Equal(t, "Water", attrs["ingredients"])
	assert.Equal(t, "Daily", attrs["usage"])
	assert.Equal(t, "Intro INGREDIENTS: Water Usage Daily", attrs[domain.MetadataDescriptionKey])
}
