package avurl

import (
	"strconv"
	"strings"
)

// URL is a media source address in the loose form ffmpeg accepts:
//
//	schema://[userinfo@]host[:port][/path]
//
// Userinfo is kept apart from Host so that logs can print the URL without
// credentials.
type URL struct {
	Schema   string `json:"schema"`
	Userinfo string `json:"userinfo"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Path     string `json:"path"`
}

// RTSP builds the source URL of an RTSP camera. Port 0 is omitted.
func RTSP(host string, port int, path string) URL {
	u := URL{Schema: "rtsp", Host: host, Path: path}
	if port != 0 {
		u.Port = strconv.Itoa(port)
	}
	return u
}

// EmbeddUserinfo returns a copy of u carrying the escaped credentials.
// An empty username leaves the URL anonymous.
func EmbeddUserinfo(u URL, username, password string) URL {
	if username == "" {
		u.Userinfo = ""
		return u
	}
	u.Userinfo = escapUsername(username)
	if password != "" {
		u.Userinfo += ":" + escapPassword(password)
	}
	return u
}

// String joins the URL including credentials. Treat the result as a secret.
func (u URL) String() string {
	return u.join(u.Userinfo)
}

// Redacted joins the URL with the password replaced by "***".
func (u URL) Redacted() string {
	userinfo := u.Userinfo
	if i := strings.IndexByte(userinfo, ':'); i >= 0 {
		userinfo = userinfo[:i] + ":***"
	}
	return u.join(userinfo)
}

func (u URL) join(userinfo string) string {
	var b strings.Builder
	if u.Schema != "" {
		b.WriteString(u.Schema)
		b.WriteString("://")
	}
	if userinfo != "" {
		b.WriteString(userinfo)
		b.WriteByte('@')
	}
	if strings.Contains(u.Host, ":") {
		b.WriteString("[" + u.Host + "]")
	} else {
		b.WriteString(u.Host)
	}
	if u.Port != "" {
		b.WriteByte(':')
		b.WriteString(u.Port)
	}
	if u.Path != "" {
		b.WriteByte('/')
		b.WriteString(strings.TrimPrefix(u.Path, "/"))
	}
	return b.String()
}

// escapUsername escapes only '/', '?', '#', '@' and ':' using percent-encoding.
func escapUsername(input string) string {
	replacer := strings.NewReplacer(
		"%", "%25",
		"/", "%2F",
		"?", "%3F",
		"#", "%23",
		"@", "%40",
		":", "%3A",
	)
	return replacer.Replace(input)
}

// escapPassword escapes only '/', '?', '#' and '@' using percent-encoding.
func escapPassword(input string) string {
	replacer := strings.NewReplacer(
		"%", "%25",
		"/", "%2F",
		"?", "%3F",
		"#", "%23",
		"@", "%40",
	)
	return replacer.Replace(input)
}
