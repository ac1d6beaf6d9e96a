package conversation

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var breakReplacer = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n")

var telegramReplacer = strings.NewReplacer(
	"<br>", "\n",
	"<br/>", "\n",
	"<br />", "\n",
	"<strong>", "<b>",
	"</strong>", "</b>",
	"<small>", "<i>",
	"</small>", "</i>",
	` target="_blank"`, "",
)

// PlainText strips entry markup for speech and terminal output. With
// withLinks set, anchors keep their target as "title (href)".
func PlainText(content string, withLinks bool) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(breakReplacer.Replace(content)))
	if err != nil {
		return tidyLines(content)
	}
	if withLinks {
		doc.Find("a").Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			text := strings.TrimSpace(s.Text())
			if ok && href != "" && href != text {
				s.SetText(text + " (" + href + ")")
			}
		})
	}
	return tidyLines(doc.Text())
}

// TelegramHTML rewrites entry markup into the tag subset Telegram accepts.
func TelegramHTML(content string) string {
	return tidyLines(telegramReplacer.Replace(content))
}

func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
