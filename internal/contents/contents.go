// Package contents encodes structured QR payloads (e-mail, phone, SMS,
// Wi-Fi, geolocation) into the plain strings that scanner apps recognise.
package contents

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Contents is anything that can be turned into a QR payload.
type Contents interface {
	Encode() string
}

// Text is plain text, encoded verbatim.
type Text struct {
	Content string `json:"content"`
}

func (c Text) Encode() string { return c.Content }

// URL is a link, encoded verbatim.
type URL struct {
	URL string `json:"url"`
}

func (c URL) Encode() string { return c.URL }

// Email is a mailto: link with optional headers.
type Email struct {
	Email   string  `json:"email"`
	Subject *string `json:"subject,omitempty"`
	Body    *string `json:"body,omitempty"`
	CC      *string `json:"cc,omitempty"`
	BCC     *string `json:"bcc,omitempty"`
}

func (c Email) Encode() string {
	var query []string
	if c.Subject != nil {
		query = append(query, "subject="+escapeComponent(*c.Subject))
	}
	if c.Body != nil {
		query = append(query, "body="+escapeComponent(*c.Body))
	}
	if c.CC != nil {
		query = append(query, "cc="+escapeURI(*c.CC))
	}
	if c.BCC != nil {
		query = append(query, "bcc="+escapeURI(*c.BCC))
	}

	out := "mailto:" + escapeURI(c.Email)
	if len(query) > 0 {
		out += "?" + strings.Join(query, "&")
	}
	return out
}

// Phone is a tel: link.
type Phone struct {
	Telephone string `json:"telephone"`
}

func (c Phone) Encode() string {
	return "tel:" + normalizePhone(c.Telephone)
}

// SMS is an SMSTO: message.
type SMS struct {
	PhoneNumber string  `json:"phone_number"`
	Message     *string `json:"message,omitempty"`
}

func (c SMS) Encode() string {
	msg := ""
	if c.Message != nil {
		msg = escapeComponent(*c.Message)
	}
	return "SMSTO:" + normalizePhone(c.PhoneNumber) + ":" + msg
}

// Security is a Wi-Fi authentication type.
type Security string

const (
	WEP    Security = "WEP"
	WPA    Security = "WPA"
	WPA3   Security = "WPA3"
	NoPass Security = "nopass"
)

// ErrInvalidSecurity is returned for an unknown Wi-Fi security type.
var ErrInvalidSecurity = errors.New("invalid wifi security type")

func (s Security) validate() error {
	switch s {
	case WEP, WPA, WPA3, NoPass:
		return nil
	default:
		return fmt.Errorf("contents: %w %q (want WEP, WPA, WPA3 or nopass)", ErrInvalidSecurity, string(s))
	}
}

// WiFi is a network join payload.
type WiFi struct {
	Security Security `json:"security"`
	SSID     string   `json:"ssid"`
	Password *string  `json:"password,omitempty"`
	Hidden   *bool    `json:"hidden,omitempty"`
}

func (c WiFi) Encode() string {
	var b strings.Builder
	b.WriteString("WIFI:T:" + string(c.Security) + ";S:" + escapeComponent(c.SSID))
	if c.Password != nil {
		b.WriteString(";P:" + escapeComponent(*c.Password))
	}
	if c.Hidden != nil {
		b.WriteString(";H:" + strconv.FormatBool(*c.Hidden))
	}
	b.WriteString(";;")
	return b.String()
}

// Geolocation is a geo: URI.
type Geolocation struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

func (c Geolocation) Encode() string {
	out := "geo:" + formatNumber(c.Latitude) + "," + formatNumber(c.Longitude)
	if c.Altitude != nil {
		out += "," + formatNumber(*c.Altitude)
	}
	return out
}

func formatNumber(f float64) string {
	return escapeComponent(numberString(f))
}

// numberString renders f the way JavaScript's Number toString does: plain
// decimals from 1e-6 up to 1e21, shortest exponent form outside that.
func numberString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if a := math.Abs(f); a >= 1e-6 && a < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	return mant + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
}

// normalizePhone strips whitespace, parentheses and dashes. Whitespace is
// the JavaScript \s class: Unicode spaces and the byte order mark, but not
// U+0085.
func normalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '(', r == ')', r == '-', r == '\uFEFF':
			return -1
		case unicode.IsSpace(r) && r != '\u0085':
			return -1
		}
		return r
	}, s)
}

// Type names accepted by FromJSON.
const (
	TypeText        = "plain-text"
	TypeURL         = "url"
	TypeEmail       = "email"
	TypePhone       = "phone"
	TypeSMS         = "sms"
	TypeWiFi        = "wifi"
	TypeGeolocation = "geolocation"
)

// FromJSON decodes a {"type": ..., ...} envelope into the matching
// Contents. A bare JSON string is treated as plain text.
func FromJSON(data []byte) (Contents, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return Text{Content: s}, nil
	}

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("contents: decode envelope: %w", err)
	}

	var c Contents
	var err error
	switch env.Type {
	case TypeText:
		c, err = decode[Text](data)
	case TypeURL:
		c, err = decode[URL](data)
	case TypeEmail:
		c, err = decode[Email](data)
	case TypePhone:
		c, err = decode[Phone](data)
	case TypeSMS:
		c, err = decode[SMS](data)
	case TypeWiFi:
		var w WiFi
		if w, err = decode[WiFi](data); err == nil {
			err = w.Security.validate()
		}
		c = w
	case TypeGeolocation:
		c, err = decode[Geolocation](data)
	case "":
		return nil, errors.New("contents: missing type")
	default:
		return nil, fmt.Errorf("contents: unknown type %q", env.Type)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("contents: decode %T: %w", v, err)
	}
	return v, nil
}
