package logger

import (
	"regexp"
	"strings"
)

// RedactToken masks a credential for safe logging, keeping a short prefix
// so different tokens remain distinguishable.
// "7231998:AAF3xyz" → "7231***"
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "***"
	}
	return token[:4] + "***"
}

var dsnPassRegex = regexp.MustCompile(`(://[^:/@]+):[^@]+@`)

// RedactDSN masks the password component of a connection URL.
// "postgres://bot:hunter2@db:5432/posts" → "postgres://bot:***@db:5432/posts"
func RedactDSN(dsn string) string {
	return dsnPassRegex.ReplaceAllString(dsn, "$1:***@")
}

var botURLRegex = regexp.MustCompile(`/bot[0-9]+:[A-Za-z0-9_-]+`)

// RedactBotURL masks a Telegram bot token embedded in an API URL.
func RedactBotURL(s string) string {
	if !strings.Contains(s, "/bot") {
		return s
	}
	return botURLRegex.ReplaceAllString(s, "/bot***")
}
