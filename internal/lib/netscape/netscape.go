// Package netscape читает и пишет файлы куков в формате Netscape (cookies.txt),
// который понимают curl, wget и браузерные расширения.
//
// Строка файла: domain, include_subdomains, path, secure, expires, name, value через табуляцию.
// Куки с HttpOnly записываются с префиксом "#HttpOnly_" перед доменом.
package netscape

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	header = "# Netscape HTTP Cookie File\n" +
		"# https://curl.se/docs/http-cookies.html\n" +
		"# This is a generated file! Do not edit.\n\n"
	httpOnlyPrefix = "#HttpOnly_"
	fieldCount     = 7
)

// Write записывает куки в w. Кукам без домена проставляется defaultDomain,
// без пути "/". Сессионные куки получают expires 0.
func Write(w io.Writer, cookies []*http.Cookie, defaultDomain string) error {
	const op = "netscape.Write"
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(header); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, c := range cookies {
		domain := c.Domain
		if domain == "" {
			domain = defaultDomain
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		var expires int64
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}
		if c.HttpOnly {
			domain = httpOnlyPrefix + domain
		}

		line := strings.Join([]string{
			domain,
			boolField(strings.HasPrefix(strings.TrimPrefix(domain, httpOnlyPrefix), ".")),
			path,
			boolField(c.Secure),
			strconv.FormatInt(expires, 10),
			c.Name,
			c.Value,
		}, "\t")
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Read разбирает файл куков. Комментарии и пустые строки пропускаются,
// строки с неверным числом полей дают ошибку.
func Read(r io.Reader) ([]*http.Cookie, error) {
	const op = "netscape.Read"
	var cookies []*http.Cookie

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != fieldCount {
			return nil, fmt.Errorf("%s: line %d: expected %d fields, got %d", op, lineNo, fieldCount, len(fields))
		}
		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", op, lineNo, err)
		}

		c := &http.Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   fields[3] == "TRUE",
			Name:     fields[5],
			Value:    fields[6],
			HttpOnly: httpOnly,
		}
		if expires > 0 {
			c.Expires = time.Unix(expires, 0).UTC()
		}
		cookies = append(cookies, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cookies, nil
}

// Has сообщает, есть ли среди куков кука с именем name.
func Has(cookies []*http.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}

func boolField(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
