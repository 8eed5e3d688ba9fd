// Package link builds and parses the deep link that hands a WhatsApp
// conversation off to the web intake flow. The query-string keys are a
// fixed contract with the web client and must not change.
package link

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"legalmeet-agent/internal/domain"
)

// DefaultBaseURL is where the web client lives unless overridden.
const DefaultBaseURL = "https://legal-meet.vercel.app"

const countryPrefix = "57" // Colombia

// Params is the payload carried on the deep link. The web client reads
// it exactly once to pre-fill its intake form.
type Params struct {
	Category    domain.Category
	Description string
	Phone       string
	PriceMin    int
	PriceMax    int
	UserName    string
	Urgency     domain.Urgency
}

// CleanPhone strips the Colombian country-code prefix from a full
// international number (57 + 10 digits). Anything else passes through.
func CleanPhone(phone string) string {
	phone = strings.TrimPrefix(phone, "+")
	if len(phone) == 12 && strings.HasPrefix(phone, countryPrefix) {
		return phone[len(countryPrefix):]
	}
	return phone
}

// Build composes the deep link against baseURL. The category is
// lowercased and free text is URL-encoded by url.Values.
func Build(baseURL string, p Params) (string, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("link: parse base url: %w", err)
	}

	q := url.Values{}
	q.Set("tipo", strings.ToLower(string(p.Category)))
	q.Set("descripcion", p.Description)
	q.Set("telefono", CleanPhone(p.Phone))
	q.Set("precio_min", strconv.Itoa(p.PriceMin))
	q.Set("precio_max", strconv.Itoa(p.PriceMax))
	if p.UserName != "" {
		q.Set("nombre", p.UserName)
	}
	if p.Urgency != "" {
		q.Set("urgencia", string(p.Urgency))
	}
	q.Set("desde_whatsapp", "true")

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Parse reads a deep link back into Params. Used by tests and by the
// web client's local mirror of this contract.
func Parse(raw string) (Params, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Params{}, fmt.Errorf("link: parse url: %w", err)
	}
	q := u.Query()
	if q.Get("desde_whatsapp") != "true" {
		return Params{}, errors.New("link: missing whatsapp source flag")
	}

	priceMin, err := strconv.Atoi(q.Get("precio_min"))
	if err != nil {
		return Params{}, fmt.Errorf("link: parse precio_min: %w", err)
	}
	priceMax, err := strconv.Atoi(q.Get("precio_max"))
	if err != nil {
		return Params{}, fmt.Errorf("link: parse precio_max: %w", err)
	}

	return Params{
		Category:    domain.ParseCategory(q.Get("tipo")),
		Description: q.Get("descripcion"),
		Phone:       q.Get("telefono"),
		PriceMin:    priceMin,
		PriceMax:    priceMax,
		UserName:    q.Get("nombre"),
		Urgency:     domain.ParseUrgency(q.Get("urgencia")),
	}, nil
}
