package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photokiosk/internal/config"
	"photokiosk/internal/eventlog"
	"photokiosk/internal/testsupport"
)

func request(method, path, token string, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoginAction(t *testing.T) {
	t.Run("valid password returns a usable token", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)

		resp, err := k.App.Test(request("POST", "/admin/login", "", []byte(`{"password":"`+testsupport.AdminPassword+`"}`)))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode(t, resp)
		token, _ := body["token"].(string)
		require.NotEmpty(t, token)
		assert.NotEmpty(t, body["expiresAt"])

		resp, err = k.App.Test(request("GET", "/admin/settings", token, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("wrong password", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)

		resp, err := k.App.Test(request("POST", "/admin/login", "", []byte(`{"password":"nope"}`)))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing password", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)

		resp, err := k.App.Test(request("POST", "/admin/login", "", []byte(`{}`)))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("no admin password configured", func(t *testing.T) {
		k := testsupport.NewKiosk(t, func(cfg *config.Config) { cfg.AdminPasswordHash = "" })

		resp, err := k.App.Test(request("POST", "/admin/login", "", []byte(`{"password":"x"}`)))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestAdminRoutesRequireToken(t *testing.T) {
	k := testsupport.NewKiosk(t, nil)

	for _, path := range []string{"/admin/photos", "/admin/settings", "/session-report-daily", "/session-report-preview"} {
		resp, err := k.App.Test(request("GET", path, "", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)

		resp, err = k.App.Test(request("GET", path, "garbage", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestPhotoReview(t *testing.T) {
	t.Run("lists pending photos with their ticket", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		k.Files.Seed(k.Config.PendingFolderID, "T003-02-12-25-21-00-PR.jpeg", false)
		k.Files.Seed(k.Config.PendingFolderID, "T002-02-12-25-20-00-PR.jpeg", true)

		resp, err := k.App.Test(request("GET", "/admin/photos", k.AdminToken(t), nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, "pending", body["folder"])
		photos := body["photos"].([]interface{})
		require.Len(t, photos, 1)
		assert.EqualValues(t, 3, photos[0].(map[string]interface{})["ticket"])
	})

	t.Run("unknown folder", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)

		resp, err := k.App.Test(request("GET", "/admin/photos?folder=trash", k.AdminToken(t), nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("approve moves a pending photo into the gallery", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		item := k.Files.Seed(k.Config.PendingFolderID, "T001-02-12-25-20-00-PR.jpeg", false)
		token := k.AdminToken(t)

		resp, err := k.App.Test(request("GET", "/photos/"+item.ID, "", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "pending photos stay private")

		resp, err = k.App.Test(request("POST", "/admin/photos/"+item.ID+"/approve", token, nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = k.App.Test(request("GET", "/gallery", "", nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decode(t, resp)["photos"], 1)

		resp, err = k.App.Test(request("GET", "/photos/"+item.ID, "", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/jpeg", resp.Header.Get(fiber.HeaderContentType))

		resp, err = k.App.Test(request("POST", "/admin/photos/"+item.ID+"/approve", token, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode, "already approved")
	})

	t.Run("approve unknown photo", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)

		resp, err := k.App.Test(request("POST", "/admin/photos/missing/approve", k.AdminToken(t), nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("reject trashes the photo", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		item := k.Files.Seed(k.Config.PendingFolderID, "T001-02-12-25-20-00-PR.jpeg", false)

		resp, err := k.App.Test(request("POST", "/admin/photos/"+item.ID+"/reject", k.AdminToken(t), nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, k.Files.Items()[0].Trashed)
	})

	t.Run("thumbnail is a JPEG no wider than requested", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		item, err := k.Files.Create(t.Context(), k.Config.PendingFolderID, "T001-02-12-25-20-00-PR.png", "image/png", pngBytes(t, 800, 600))
		require.NoError(t, err)

		resp, err := k.App.Test(request("GET", "/admin/photos/"+item.ID+"/thumb?w=200", k.AdminToken(t), nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/jpeg", resp.Header.Get(fiber.HeaderContentType))

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 200, cfg.Width)
	})
}

func TestSettingsActions(t *testing.T) {
	t.Run("public settings need no token", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)

		resp, err := k.App.Test(request("GET", "/settings", "", nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		settings := decode(t, resp)["settings"].(map[string]interface{})
		assert.Equal(t, true, settings["appEnabled"])
	})

	t.Run("update replaces settings and bumps the version", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		payload := []byte(`{"appEnabled":true,"galleryLimit":12,"formTitle":"Hola","formFields":[{"name":"email","enabled":true,"required":true}]}`)

		resp, err := k.App.Test(request("POST", "/admin/settings", k.AdminToken(t), payload))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		current := k.Services.Settings.Get(t.Context())
		assert.Equal(t, 12, current.GalleryLimit)
		assert.Equal(t, "Hola", current.FormTitle)
		assert.Equal(t, 1, current.Version)
		assert.False(t, current.FieldEnabled("lastName"))
	})

	t.Run("invalid settings are rejected", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		payload := []byte(`{"galleryLimit":9000,"formFields":[]}`)

		resp, err := k.App.Test(request("POST", "/admin/settings", k.AdminToken(t), payload))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, 60, k.Services.Settings.Get(t.Context()).GalleryLimit)
	})

	t.Run("toggle switches the app off and on", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		token := k.AdminToken(t)

		resp, err := k.App.Test(request("POST", "/admin/app/toggle", token, nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, decode(t, resp)["appEnabled"])

		resp, err = k.App.Test(request("POST", "/admin/app/toggle", token, nil))
		require.NoError(t, err)
		assert.Equal(t, true, decode(t, resp)["appEnabled"])
	})
}

func TestTemplateActions(t *testing.T) {
	k := testsupport.NewKiosk(t, nil)
	token := k.AdminToken(t)

	resp, err := k.App.Test(request("POST", "/admin/templates", token, []byte(`{"name":"Navidad","overlay":"frames/navidad.png","active":true}`)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode(t, resp)["template"].(map[string]interface{})
	id, _ := saved["id"].(string)
	require.NotEmpty(t, id)

	resp, err = k.App.Test(request("GET", "/admin/templates", token, nil))
	require.NoError(t, err)
	assert.Len(t, decode(t, resp)["templates"], 1)

	resp, err = k.App.Test(request("POST", "/admin/templates", token, []byte(`{"name":""}`)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = k.App.Test(request("DELETE", "/admin/templates/"+id, token, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = k.App.Test(request("DELETE", "/admin/templates/"+id, token, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func seedLog(k *testsupport.Kiosk) {
	rows := [][]string{
		eventlog.HeaderV2,
		{"2025-12-02T20:15:00.000Z", "", "visit", "", "s1", "", "", "", "", ""},
		{"2025-12-02T20:40:00.000Z", "", "form", "ana@example.com", "s1", "", "", "", "Y", ""},
		{"2025-12-02T21:10:00.000Z", "", "form", "ana@example.com", "s2", "", "", "", "Y", ""},
		{"2025-12-02T21:20:00.000Z", "", "upload", "", "s2", "", "", "", "", "1"},
		// previous kiosk day
		{"2025-12-01T12:00:00.000Z", "", "visit", "", "s0", "", "", "", "", ""},
	}
	k.Sheets.SetRows(k.Config.LogSheetID, k.Config.LogSheetRange, rows)
}

func TestReportActions(t *testing.T) {
	t.Run("report now mails today's stats", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		seedLog(k)

		resp, err := k.App.Test(request("POST", "/session-report-now", k.AdminToken(t), nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, true, body["sent"])
		assert.Contains(t, body["subject"], "diciembre")
		stats := body["stats"].(map[string]interface{})
		assert.EqualValues(t, 1, stats["visits"])
		assert.EqualValues(t, 2, stats["forms"])
		assert.EqualValues(t, 1, stats["uploads"])
		assert.Len(t, stats["newsletterEmails"], 1)

		sent := k.Mailer.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, []string{"ops@example.com"}, sent[0].To)
		assert.Contains(t, sent[0].Body, "Fotos subidas: 1")
	})

	t.Run("daily report without mail settings is not sent", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		k.Mailer.Disable()

		resp, err := k.App.Test(request("GET", "/session-report-daily", k.AdminToken(t), nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, decode(t, resp)["sent"])
		assert.Empty(t, k.Mailer.Sent())
	})

	t.Run("preview renders plain text", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		seedLog(k)

		resp, err := k.App.Test(request("GET", "/session-report-preview", k.AdminToken(t), nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMETextPlain))

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "Visitas: 1")
		assert.Contains(t, string(raw), "Total de eventos: 4")
		assert.Empty(t, k.Mailer.Sent())
	})

	t.Run("legacy log that later received current rows", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		k.Sheets.SetRows(k.Config.LogSheetID, k.Config.LogSheetRange, [][]string{
			eventlog.HeaderV1,
			{"2025-12-02T20:15:00.000Z", "", "form", "old@example.com", "s1", `{"newsletter":"si"}`},
			{"2025-12-02T20:40:00.000Z", "", "form", "new@example.com", "s2", "PR", "Ponce", "Rivera", "Y", ""},
		})

		resp, err := k.App.Test(request("POST", "/session-report-now", k.AdminToken(t), nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		stats := decode(t, resp)["stats"].(map[string]interface{})
		assert.EqualValues(t, 2, stats["forms"])
		assert.Equal(t, []interface{}{"old@example.com", "new@example.com"}, stats["newsletterEmails"])
	})

	t.Run("unreadable event log is a bad gateway", func(t *testing.T) {
		k := testsupport.NewKiosk(t, nil)
		k.Sheets.FailRead(errors.New("sheets down"))

		resp, err := k.App.Test(request("POST", "/session-report-now", k.AdminToken(t), nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestOpsEndpoints(t *testing.T) {
	k := testsupport.NewKiosk(t, nil)

	resp, err := k.App.Test(request("GET", "/_health", "", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, resp)["db_status"])

	resp, err = k.App.Test(request("GET", "/metrics", "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = k.App.Test(request("GET", "/admin/system/health", k.AdminToken(t), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, false, body["geoip_enabled"])
	assert.Contains(t, body["warnings"], "GeoLite database not loaded")
}
