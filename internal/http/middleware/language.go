package middleware

import (
	"strings"

	"kidshop/pkg/models"

	"github.com/labstack/echo/v4"
)

// Language resolves the storefront language from ?lang= or Accept-Language and
// stores it under "lang". Unknown values fall back to Georgian.
func Language() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("lang", ResolveLanguage(c.QueryParam("lang"), c.Request().Header.Get("Accept-Language")))
			return next(c)
		}
	}
}

// ResolveLanguage picks the query value when supported, then the first supported
// Accept-Language entry.
func ResolveLanguage(query, acceptLanguage string) models.Language {
	if lang, ok := supported(query); ok {
		return lang
	}
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if lang, ok := supported(tag); ok {
			return lang
		}
	}
	return models.DefaultLanguage
}

func supported(raw string) (models.Language, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	lang := models.ParseLanguage(raw)
	raw = strings.ToLower(strings.TrimSpace(raw))
	if lang == models.DefaultLanguage && !strings.HasPrefix(raw, string(models.LangKa)) {
		return "", false
	}
	return lang, true
}

// Lang returns the language resolved for this request
func Lang(c echo.Context) models.Language {
	if lang, ok := c.Get("lang").(models.Language); ok {
		return lang
	}
	return models.DefaultLanguage
}
