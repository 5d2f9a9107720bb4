package worker

import "strings"

// markdownV2Escaper escapes every character Telegram's MarkdownV2 parser
// treats as syntax. Backslash comes first in the pair list so escaped
// output is never re-escaped.
var markdownV2Escaper = strings.NewReplacer(
	`\`, `\\`,
	`_`, `\_`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`(`, `\(`,
	`)`, `\)`,
	`~`, `\~`,
	"`", "\\`",
	`>`, `\>`,
	`<`, `\<`,
	`&`, `\&`,
	`#`, `\#`,
	`+`, `\+`,
	`-`, `\-`,
	`=`, `\=`,
	`|`, `\|`,
	`{`, `\{`,
	`}`, `\}`,
	`.`, `\.`,
	`!`, `\!`,
)

// escapeMarkdownV2 returns s with all MarkdownV2 special characters escaped.
func escapeMarkdownV2(s string) string {
	return markdownV2Escaper.Replace(s)
}

// blockQuote renders already-escaped text as a MarkdownV2 block quote:
// every line gets a ">" prefix and blank lines between paragraphs become a
// bare ">" so the quote stays visually contiguous.
func blockQuote(s string) string {
	lines := strings.Split(s, "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(">")
		b.WriteString(line)
	}
	return b.String()
}
