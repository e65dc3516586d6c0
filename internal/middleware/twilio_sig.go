package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// validateTwilioSignature verifies a Twilio webhook signature: HMAC-SHA1
// over the full URL plus the sorted form parameters.
func validateTwilioSignature(authToken, signature, fullURL string, params map[string]string) bool {
	if authToken == "" || signature == "" {
		return false
	}

	data := fullURL
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data += k + params[k]
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(data))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// TwilioAuth validates webhook requests under /twilio/ and stashes the
// parsed form parameters in the context under "twilioParams". Other routes,
// including the media-stream WebSocket, pass through untouched. With an
// empty auth token the check is skipped, for local development only.
func TwilioAuth(authToken string) echo.MiddlewareFunc {
	if authToken == "" {
		log.Println("Warning: TWILIO_AUTH_TOKEN not set - webhook signatures are NOT verified")
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Request().URL.Path, "/twilio/") {
				return next(c)
			}

			bodyBytes, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return c.String(http.StatusBadRequest, "Failed to read request body")
			}
			formData, err := url.ParseQuery(string(bodyBytes))
			if err != nil {
				return c.String(http.StatusBadRequest, "Failed to parse form data")
			}
			params := make(map[string]string, len(formData))
			for key, values := range formData {
				if len(values) > 0 {
					params[key] = values[0]
				}
			}

			if authToken != "" {
				signature := c.Request().Header.Get("X-Twilio-Signature")
				requestURL := fmt.Sprintf("https://%s%s", c.Request().Host, c.Request().URL.Path)
				if !validateTwilioSignature(authToken, signature, requestURL, params) {
					return c.String(http.StatusUnauthorized, "Invalid Twilio signature")
				}
			}

			c.Set("twilioParams", params)
			return next(c)
		}
	}
}
