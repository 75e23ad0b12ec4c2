package app

import (
	"regexp"
	"strconv"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes colour escapes, mainly for tests and width math.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func applyColor(s, code string, color bool) string {
	if !color {
		return s
	}
	return code + s + ansiReset
}

func colorizeHTTPMethod(m string, color bool) string {
	switch m {
	case "GET", "HEAD":
		return applyColor(m, ansiBlue, color)
	case "POST":
		return applyColor(m, ansiGreen, color)
	case "PUT", "PATCH":
		return applyColor(m, ansiYellow, color)
	case "DELETE":
		return applyColor(m, ansiRed, color)
	default:
		return applyColor(m, ansiMagenta, color)
	}
}

func colorizeStatusCode(code int, color bool) string {
	s := strconv.Itoa(code)
	switch {
	case code >= 500:
		return applyColor(s, ansiRed, color)
	case code >= 400:
		return applyColor(s, ansiYellow, color)
	case code >= 300:
		return applyColor(s, ansiCyan, color)
	default:
		return applyColor(s, ansiGreen, color)
	}
}

func colorizeStatusClass(class string, color bool) string {
	switch class {
	case "5xx":
		return applyColor(class, ansiRed, color)
	case "4xx":
		return applyColor(class, ansiYellow, color)
	case "3xx":
		return applyColor(class, ansiCyan, color)
	case "2xx":
		return applyColor(class, ansiGreen, color)
	default:
		return class
	}
}

func colorizeDurationMS(ms int64, color bool) string {
	s := strconv.FormatInt(ms, 10) + "ms"
	switch {
	case ms >= 1000:
		return applyColor(s, ansiRed, color)
	case ms >= 250:
		return applyColor(s, ansiYellow, color)
	default:
		return applyColor(s, ansiGreen, color)
	}
}

func colorizeResult(result string, color bool) string {
	switch result {
	case "success":
		return applyColor(result, ansiGreen, color)
	case "redirect":
		return applyColor(result, ansiCyan, color)
	case "client_error":
		return applyColor(result, ansiYellow, color)
	case "server_error":
		return applyColor(result, ansiRed, color)
	default:
		return quoteIfNeeded(result)
	}
}

// colorizeResultCode colours session result codes (ok, validation, capacity, ...).
func colorizeResultCode(code string, color bool) string {
	switch code {
	case "ok":
		return applyColor(code, ansiGreen, color)
	case "validation", "capacity":
		return applyColor(code, ansiYellow, color)
	default:
		return applyColor(quoteIfNeeded(code), ansiRed, color)
	}
}
