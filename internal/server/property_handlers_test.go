package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"propertyhub/internal/models"
	"propertyhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type propertyEnvelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Property models.Property `json:"property"`
}

func TestGetProperty_NotFound(t *testing.T) {
	env := newTestEnv(t, "")

	for _, target := range []string{"/api/properties/999", "/api/properties/not-an-id"} {
		resp := env.do(t, newRequest(http.MethodGet, target, nil, "", ""))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, target)

		var body models.ErrorResponse
		decodeBody(t, resp, &body)
		assert.False(t, body.Success)
		assert.Equal(t, "Property not found", body.Message)
		assert.Equal(t, models.CodeNotFound, body.Error)
	}
}

func TestGetProperty_SetsVersionTag(t *testing.T) {
	env := newTestEnv(t, "")
	p := env.seedProperty(t, "mem://properties/a.png")

	resp := env.do(t, newRequest(http.MethodGet, fmt.Sprintf("/api/properties/%d", p.ID), nil, "", ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"1"`, resp.Header.Get("ETag"))

	var got models.Property
	decodeBody(t, resp, &got)
	assert.Equal(t, "Sea view flat", got.Title)
	assert.Equal(t, []string{"mem://properties/a.png"}, []string(got.Images))
}

func TestListProperties(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, newRequest(http.MethodGet, "/api/properties", nil, "", ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var empty []models.Property
	decodeBody(t, resp, &empty)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	env.seedProperty(t)
	other := &models.Property{Title: "Villa", Price: "9", City: "Goa", State: "GA"}
	require.NoError(t, env.properties.Create(context.Background(), other))

	resp = env.do(t, newRequest(http.MethodGet, "/api/properties?city=goa", nil, "", ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var filtered []models.Property
	decodeBody(t, resp, &filtered)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Villa", filtered[0].Title)

	resp = env.do(t, newRequest(http.MethodGet, "/api/properties?limit=1", nil, "", ""))
	var page []models.Property
	decodeBody(t, resp, &page)
	assert.Len(t, page, 1)
}

func TestAddProperty(t *testing.T) {
	env := newTestEnv(t, "")
	token, admin := env.login(t)

	body, contentType := multipartBody(t, [][2]string{
		{"title", "Lake house"},
		{"price", "1200000"},
		{"city", "Udaipur"},
		{"state", "RJ"},
		{"bhk", "3"},
		{"furnishing", "semi"},
		{"amenities", `["Gym","Pool","Gym"]`},
	},
		formFile{"images", "front.png", testutil.TinyPNG(t, 4, 4)},
		formFile{"images", "back.png", testutil.TinyPNG(t, 6, 6)},
	)

	resp := env.do(t, newRequest(http.MethodPost, "/api/properties/add", body, contentType, token))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out propertyEnvelope
	decodeBody(t, resp, &out)
	assert.True(t, out.Success)
	assert.Equal(t, "Property added successfully", out.Message)
	assert.Equal(t, "Lake house", out.Property.Title)
	assert.Equal(t, "3", out.Property.BHK)
	assert.Equal(t, "semi", out.Property.Extras["furnishing"])
	assert.Equal(t, []string{"Gym", "Pool"}, []string(out.Property.Amenities))
	assert.Equal(t, uint(1), out.Property.Version)
	require.NotNil(t, out.Property.CreatedBy)
	assert.Equal(t, admin.ID, *out.Property.CreatedBy)

	require.Len(t, out.Property.Images, 2)
	assert.True(t, strings.HasSuffix(out.Property.Images[0], "front.png"))
	assert.True(t, strings.HasSuffix(out.Property.Images[1], "back.png"))
	for _, loc := range out.Property.Images {
		assert.True(t, env.store.Has(loc))
	}
	assert.Equal(t, 1, env.properties.Len())
}

func TestAddProperty_Rejections(t *testing.T) {
	env := newTestEnv(t, "")
	token, _ := env.login(t)

	t.Run("unauthenticated", func(t *testing.T) {
		body, contentType := multipartBody(t, [][2]string{{"title", "x"}})
		resp := env.do(t, newRequest(http.MethodPost, "/api/properties/add", body, contentType, ""))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing required fields", func(t *testing.T) {
		body, contentType := multipartBody(t, [][2]string{{"title", "Only a title"}})
		resp := env.do(t, newRequest(http.MethodPost, "/api/properties/add", body, contentType, token))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var errBody models.ErrorResponse
		decodeBody(t, resp, &errBody)
		assert.Equal(t, "Missing required fields: price, city, state", errBody.Message)
		assert.Equal(t, models.CodeValidation, errBody.Error)
	})

	t.Run("not an image", func(t *testing.T) {
		body, contentType := multipartBody(t, [][2]string{
			{"title", "T"}, {"price", "1"}, {"city", "C"}, {"state", "S"},
		}, formFile{"images", "notes.txt", []byte("plain text, not pixels")})
		resp := env.do(t, newRequest(http.MethodPost, "/api/properties/add", body, contentType, token))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Zero(t, env.store.UploadCalls)
	})

	t.Run("too many images", func(t *testing.T) {
		img := testutil.TinyPNG(t, 2, 2)
		body, contentType := multipartBody(t, [][2]string{
			{"title", "T"}, {"price", "1"}, {"city", "C"}, {"state", "S"},
		},
			formFile{"images", "1.png", img},
			formFile{"images", "2.png", img},
			formFile{"images", "3.png", img},
			formFile{"images", "4.png", img},
		)
		resp := env.do(t, newRequest(http.MethodPost, "/api/properties/add", body, contentType, token))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var errBody models.ErrorResponse
		decodeBody(t, resp, &errBody)
		assert.Equal(t, "Too many images (max 3)", errBody.Message)
	})

	t.Run("upload failure aborts create", func(t *testing.T) {
		env.store.FailFilename["bad.png"] = errors.New("remote store down")
		t.Cleanup(func() { delete(env.store.FailFilename, "bad.png") })

		img := testutil.TinyPNG(t, 2, 2)
		body, contentType := multipartBody(t, [][2]string{
			{"title", "T"}, {"price", "1"}, {"city", "C"}, {"state", "S"},
		},
			formFile{"images", "ok.png", img},
			formFile{"images", "bad.png", img},
		)
		resp := env.do(t, newRequest(http.MethodPost, "/api/properties/add", body, contentType, token))
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		var errBody models.ErrorResponse
		decodeBody(t, resp, &errBody)
		assert.Equal(t, models.CodeRemoteStore, errBody.Error)
		assert.NotContains(t, errBody.Message, "remote store down")
		assert.Zero(t, env.properties.Len())
	})
}

func TestUpdateProperty_DeleteOneUploadOne(t *testing.T) {
	env := newTestEnv(t, "")
	token, _ := env.login(t)
	p := env.seedProperty(t, "mem://properties/a.png", "mem://properties/b.png")

	body, contentType := multipartBody(t, [][2]string{
		{"deletedImages", `["mem://properties/a.png"]`},
	}, formFile{"images", "c.png", testutil.TinyPNG(t, 3, 3)})

	resp := env.do(t, newRequest(http.MethodPut, fmt.Sprintf("/api/properties/%d", p.ID), body, contentType, token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"2"`, resp.Header.Get("ETag"))

	var out propertyEnvelope
	decodeBody(t, resp, &out)
	assert.Equal(t, "Property updated successfully", out.Message)
	require.Len(t, out.Property.Images, 2)
	assert.Equal(t, "mem://properties/b.png", out.Property.Images[0])
	assert.True(t, strings.HasSuffix(out.Property.Images[1], "c.png"))

	assert.False(t, env.store.Has("mem://properties/a.png"))
	assert.True(t, env.store.Has("mem://properties/b.png"))
	assert.Equal(t, []string{"mem://properties/a.png"}, env.store.Deleted)

	stored, err := env.properties.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Property.Images, stored.Images)
}

func TestUpdateProperty_ExistingImagesKeptList(t *testing.T) {
	env := newTestEnv(t, "")
	token, _ := env.login(t)
	p := env.seedProperty(t, "mem://properties/a.png", "mem://properties/b.png", "mem://properties/c.png")

	body, contentType := multipartBody(t, [][2]string{
		{"existingImages[]", "mem://properties/c.png"},
		{"existingImages[]", "mem://properties/a.png"},
		{"existingImages[]", "undefined"},
	})

	resp := env.do(t, newRequest(http.MethodPut, fmt.Sprintf("/api/properties/%d", p.ID), body, contentType, token))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out propertyEnvelope
	decodeBody(t, resp, &out)
	assert.Equal(t, []string{"mem://properties/a.png", "mem://properties/c.png"}, []string(out.Property.Images))
	// Dropping from the kept list is not a delete request.
	assert.Zero(t, env.store.DeleteCalls)
}

func TestUpdateProperty_PriceOnlyJSON(t *testing.T) {
	env := newTestEnv(t, "")
	token, _ := env.login(t)
	p := env.seedProperty(t, "mem://properties/a.png")

	resp := env.do(t, newRequest(http.MethodPut, fmt.Sprintf("/api/properties/%d", p.ID),
		strings.NewReader(`{"price":"500000","id":77,"createdBy":5}`), "application/json", token))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out propertyEnvelope
	decodeBody(t, resp, &out)
	assert.Equal(t, p.ID, out.Property.ID)
	assert.Equal(t, "500000", out.Property.Price)
	assert.Equal(t, p.Title, out.Property.Title)
	assert.Equal(t, p.City, out.Property.City)
	assert.Equal(t, []string{"Gym"}, []string(out.Property.Amenities))
	assert.Equal(t, []string{"mem://properties/a.png"}, []string(out.Property.Images))
	assert.Nil(t, out.Property.CreatedBy)
	assert.Zero(t, env.store.UploadCalls)
	assert.Zero(t, env.store.DeleteCalls)
}

func TestUpdateProperty_JSONNullListsAreIgnored(t *testing.T) {
	env := newTestEnv(t, "")
	token, _ := env.login(t)
	p := env.seedProperty(t, "mem://properties/a.png", "mem://properties/b.png")

	body := `{"price":"1","existingImages":null,"deletedImages":null,"amenities":null,"images":null}`
	resp := env.do(t, newRequest(http.MethodPut, fmt.Sprintf("/api/properties/%d", p.ID),
		strings.NewReader(body), "application/json", token))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out propertyEnvelope
	decodeBody(t, resp, &out)
	assert.Equal(t, "1", out.Property.Price)
	assert.Equal(t, []string{"mem://properties/a.png", "mem://properties/b.png"}, []string(out.Property.Images))
	assert.Equal(t, []string{"Gym"}, []string(out.Property.Amenities))
	assert.True(t, env.store.Has("mem://properties/a.png"))
	assert.Zero(t, env.store.DeleteCalls)
}

func TestUpdateProperty_MalformedAmenitiesFallsBackToEmpty(t *testing.T) {
	env := newTestEnv(t, "")
	token, _ := env.login(t)
	p := env.seedProperty(t)

	body, contentType := multipartBody(t, [][2]string{{"amenities", "{not json"}})
	resp := env.do(t, newRequest(http.MethodPut, fmt.Sprintf("/api/properties/%d", p.ID), body, contentType, token))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out propertyEnvelope
	decodeBody(t, resp, &out)
	assert.NotNil(t, out.Property.Amenities)
	assert.Empty(t, out.Property.Amenities)
}

func TestUpdateProperty_Rejections(t *testing.T) {
	env := newTestEnv(t, "")
	token, _ := env.login(t)
	p := env.seedProperty(t, "mem://properties/a.png")
	target := fmt.Sprintf("/api/properties/%d", p.ID)

	t.Run("unknown property", func(t *testing.T) {
		body, contentType := multipartBody(t, [][2]string{{"price", "1"}})
		resp := env.do(t, newRequest(http.MethodPut, "/api/properties/999", body, contentType, token))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed deletedImages", func(t *testing.T) {
		body, contentType := multipartBody(t, [][2]string{{"deletedImages", "mem://properties/a.png"}})
		resp := env.do(t, newRequest(http.MethodPut, target, body, contentType, token))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("blank required field", func(t *testing.T) {
		body, contentType := multipartBody(t, [][2]string{{"city", "  "}},
			formFile{"images", "n.png", testutil.TinyPNG(t, 2, 2)})
		resp := env.do(t, newRequest(http.MethodPut, target, body, contentType, token))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Zero(t, env.store.UploadCalls)
	})

	t.Run("stale If-Match", func(t *testing.T) {
		body, contentType := multipartBody(t, [][2]string{{"deletedImages", `["mem://properties/a.png"]`}},
			formFile{"images", "n.png", testutil.TinyPNG(t, 2, 2)})
		req := newRequest(http.MethodPut, target, body, contentType, token)
		req.Header.Set("If-Match", `"5"`)
		resp := env.do(t, req)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Zero(t, env.store.UploadCalls)
		assert.Zero(t, env.store.DeleteCalls)
		assert.True(t, env.store.Has("mem://properties/a.png"))
	})

	t.Run("stale version field", func(t *testing.T) {
		body, contentType := multipartBody(t, [][2]string{{"version", "2"}, {"price", "7"}})
		resp := env.do(t, newRequest(http.MethodPut, target, body, contentType, token))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		var errBody models.ErrorResponse
		decodeBody(t, resp, &errBody)
		assert.Equal(t, models.CodeConflict, errBody.Error)
	})

	t.Run("bad version field", func(t *testing.T) {
		body, contentType := multipartBody(t, [][2]string{{"version", "latest"}})
		resp := env.do(t, newRequest(http.MethodPut, target, body, contentType, token))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("matching version", func(t *testing.T) {
		body, contentType := multipartBody(t, [][2]string{{"version", "1"}, {"price", "7"}})
		resp := env.do(t, newRequest(http.MethodPut, target, body, contentType, token))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out propertyEnvelope
		decodeBody(t, resp, &out)
		assert.Equal(t, "7", out.Property.Price)
		assert.Equal(t, uint(2), out.Property.Version)
	})
}

func TestUpdateProperty_SaveFailureKeepsDeletedImages(t *testing.T) {
	env := newTestEnv(t, "")
	token, _ := env.login(t)
	p := env.seedProperty(t, "mem://properties/a.png")
	env.properties.UpdateErr = errors.New("connection reset")

	body, contentType := multipartBody(t, [][2]string{{"deletedImages", `["mem://properties/a.png"]`}})
	resp := env.do(t, newRequest(http.MethodPut, fmt.Sprintf("/api/properties/%d", p.ID), body, contentType, token))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var errBody models.ErrorResponse
	decodeBody(t, resp, &errBody)
	assert.Equal(t, "Internal server error", errBody.Message)
	assert.True(t, env.store.Has("mem://properties/a.png"))
	assert.Zero(t, env.store.DeleteCalls)
}

func TestDeleteProperty(t *testing.T) {
	env := newTestEnv(t, "")
	token, _ := env.login(t)
	p := env.seedProperty(t, "mem://properties/a.png", "mem://properties/b.png")
	env.store.FailDelete["mem://properties/a.png"] = errors.New("timeout")

	resp := env.do(t, newRequest(http.MethodDelete, fmt.Sprintf("/api/properties/%d", p.ID), nil, "", token))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Property deleted successfully", body["message"])

	assert.Equal(t, 2, env.store.DeleteCalls)
	assert.False(t, env.store.Has("mem://properties/b.png"))
	assert.Zero(t, env.properties.Len())

	resp = env.do(t, newRequest(http.MethodDelete, fmt.Sprintf("/api/properties/%d", p.ID), nil, "", token))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, newRequest(http.MethodDelete, "/api/properties/1", nil, "", ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
