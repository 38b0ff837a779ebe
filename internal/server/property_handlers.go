package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"propertyhub/internal/models"
	"propertyhub/internal/service"
	"propertyhub/internal/storage"

	"github.com/gofiber/fiber/v2"
)

const (
	imagesField         = "images"
	amenitiesField      = "amenities"
	existingImagesField = "existingImages"
	deletedImagesField  = "deletedImages"
	versionField        = "version"
)

// propertyForm is a decoded add/update request body. Values keeps repeated keys.
type propertyForm struct {
	values map[string][]string
	files  []*multipart.FileHeader
}

func (f *propertyForm) has(key string) bool {
	_, ok := f.values[key]
	return ok
}

func (f *propertyForm) first(key string) (string, bool) {
	v, ok := f.values[key]
	if !ok || len(v) == 0 {
		return "", ok
	}
	return v[0], true
}

// scalarFields returns the last value of every key, skipping list-valued keys the
// service handles separately.
func (f *propertyForm) scalarFields() map[string]string {
	out := make(map[string]string, len(f.values))
	for key, vals := range f.values {
		switch key {
		case amenitiesField, existingImagesField, existingImagesField + "[]", deletedImagesField, imagesField, versionField:
			continue
		}
		if len(vals) == 0 {
			continue
		}
		out[key] = vals[len(vals)-1]
	}
	return out
}

func (f *propertyForm) amenitiesRaw() *string {
	raw, ok := f.first(amenitiesField)
	if !ok {
		return nil
	}
	return &raw
}

// existingImages merges existingImages and existingImages[]. Presence of either key
// counts as supplied even if every value is blank.
func (f *propertyForm) existingImages() ([]string, bool) {
	var out []string
	supplied := false
	for _, key := range []string{existingImagesField, existingImagesField + "[]"} {
		if vals, ok := f.values[key]; ok {
			supplied = true
			out = append(out, vals...)
		}
	}
	return out, supplied
}

// deletedImages accepts JSON array text in a single field, or one locator per repeated field.
func (f *propertyForm) deletedImages() ([]string, error) {
	vals, ok := f.values[deletedImagesField]
	if !ok || len(vals) == 0 {
		return nil, nil
	}
	if len(vals) > 1 {
		return vals, nil
	}

	raw := strings.TrimSpace(vals[0])
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, models.NewValidationError("deletedImages must be a JSON array of strings")
	}
	return out, nil
}

func (f *propertyForm) readFiles() ([]storage.File, error) {
	files := make([]storage.File, 0, len(f.files))
	for _, fh := range f.files {
		src, err := fh.Open()
		if err != nil {
			return nil, models.NewValidationError("Unable to read uploaded file")
		}
		content, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			return nil, models.NewValidationError("Unable to read uploaded file")
		}
		files = append(files, storage.File{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		})
	}
	return files, nil
}

// parsePropertyForm decodes multipart, JSON or urlencoded bodies into one shape.
func parsePropertyForm(c *fiber.Ctx) (*propertyForm, error) {
	form := &propertyForm{values: map[string][]string{}}
	contentType := strings.ToLower(c.Get(fiber.HeaderContentType))

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		mf, err := c.MultipartForm()
		if err != nil {
			return nil, models.NewValidationError("Invalid multipart form")
		}
		for k, v := range mf.Value {
			form.values[k] = v
		}
		form.files = append(form.files, mf.File[imagesField]...)
		form.files = append(form.files, mf.File[imagesField+"[]"]...)

	case strings.HasPrefix(contentType, fiber.MIMEApplicationJSON):
		if len(c.Body()) == 0 {
			return form, nil
		}
		var body map[string]any
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return nil, models.NewValidationError("Invalid request body")
		}
		for k, v := range body {
			if v == nil && isListField(k) {
				continue
			}
			vals, err := jsonFieldValues(k, v)
			if err != nil {
				return nil, err
			}
			form.values[k] = vals
		}

	default:
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			k := string(key)
			form.values[k] = append(form.values[k], string(value))
		})
	}

	return form, nil
}

// isListField reports whether key carries a list, where JSON null means absent.
func isListField(key string) bool {
	switch key {
	case amenitiesField, deletedImagesField, existingImagesField, existingImagesField + "[]",
		imagesField, imagesField + "[]":
		return true
	}
	return false
}

// jsonFieldValues flattens a JSON body value into form values. List fields whose form
// encoding is JSON text are re-encoded so both transports share one parser.
func jsonFieldValues(key string, v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return []string{""}, nil
	case string:
		return []string{val}, nil
	case bool:
		return []string{strconv.FormatBool(val)}, nil
	case float64:
		return []string{strconv.FormatFloat(val, 'f', -1, 64)}, nil
	case []any:
		if key == amenitiesField || key == deletedImagesField {
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, models.NewValidationError("Invalid " + key)
			}
			return []string{string(raw)}, nil
		}
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, models.NewValidationError(fmt.Sprintf("%s must contain only strings", key))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, models.NewValidationError(fmt.Sprintf("%s must be a scalar value", key))
	}
}

// expectedVersion reads the optimistic concurrency token from the form or If-Match.
func expectedVersion(c *fiber.Ctx, form *propertyForm) (*uint, error) {
	if raw, ok := form.first(versionField); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
		if err != nil {
			return nil, models.NewValidationError("version must be a positive integer")
		}
		v := uint(n)
		return &v, nil
	}
	if v, ok := parseIfMatch(c.Get(fiber.HeaderIfMatch)); ok {
		return &v, nil
	}
	return nil, nil
}

func setVersionTag(c *fiber.Ctx, p *models.Property) {
	c.Set(fiber.HeaderETag, fmt.Sprintf(`"%d"`, p.Version))
}

// ListProperties handles GET /api/properties
// @Summary List properties
// @Description Newest first; unbounded unless limit is given
// @Tags properties
// @Produce json
// @Param city query string false "City (case-insensitive)"
// @Param state query string false "State (case-insensitive)"
// @Param purpose query string false "Purpose, e.g. sale or rent"
// @Param category query string false "Category"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Property
// @Router /properties [get]
func (s *Server) ListProperties(c *fiber.Ctx) error {
	page := parsePagination(c)
	properties, err := s.propertyService.ListProperties(c.UserContext(), service.ListPropertiesInput{
		City:     c.Query("city"),
		State:    c.Query("state"),
		Purpose:  c.Query("purpose"),
		Category: c.Query("category"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(properties)
}

// GetProperty handles GET /api/properties/:id
// @Summary Get property
// @Tags properties
// @Produce json
// @Param id path int true "Property ID"
// @Success 200 {object} models.Property
// @Failure 404 {object} models.ErrorResponse
// @Router /properties/{id} [get]
func (s *Server) GetProperty(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id", "Property")
	if err != nil {
		return nil
	}

	property, err := s.propertyService.GetProperty(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	setVersionTag(c, property)
	return c.JSON(property)
}

// AddProperty handles POST /api/properties/add
// @Summary Add property
// @Description Multipart scalar fields, amenities as JSON text and up to 10 images
// @Tags properties
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param price formData string true "Price"
// @Param city formData string true "City"
// @Param state formData string true "State"
// @Param amenities formData string false "JSON array of amenities"
// @Param images formData file false "Images"
// @Success 201 {object} object{success=bool,message=string,property=models.Property}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /properties/add [post]
func (s *Server) AddProperty(c *fiber.Ctx) error {
	form, err := parsePropertyForm(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	files, err := form.readFiles()
	if err != nil {
		return respondServiceError(c, err)
	}

	property, err := s.propertyService.AddProperty(c.UserContext(), service.AddPropertyInput{
		Fields:       form.scalarFields(),
		AmenitiesRaw: form.amenitiesRaw(),
		Files:        files,
		CreatorID:    adminIDFromLocals(c),
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	setVersionTag(c, property)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"message":  "Property added successfully",
		"property": property,
	})
}

// UpdateProperty handles PUT /api/properties/:id
// @Summary Update property
// @Description Partial update; reconciles images from existingImages, deletedImages and new uploads
// @Tags properties
// @Accept mpfd,json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Property ID"
// @Param existingImages formData []string false "Image locators to keep"
// @Param deletedImages formData string false "JSON array of image locators to delete"
// @Param amenities formData string false "JSON array of amenities"
// @Param version formData int false "Expected version"
// @Param If-Match header string false "Expected version"
// @Param images formData file false "New images"
// @Success 200 {object} object{success=bool,message=string,property=models.Property}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /properties/{id} [put]
func (s *Server) UpdateProperty(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id", "Property")
	if err != nil {
		return nil
	}

	form, err := parsePropertyForm(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	deleted, err := form.deletedImages()
	if err != nil {
		return respondServiceError(c, err)
	}
	version, err := expectedVersion(c, form)
	if err != nil {
		return respondServiceError(c, err)
	}
	files, err := form.readFiles()
	if err != nil {
		return respondServiceError(c, err)
	}
	existing, supplied := form.existingImages()

	property, err := s.propertyService.UpdateProperty(c.UserContext(), service.UpdatePropertyInput{
		ID:               id,
		Fields:           form.scalarFields(),
		AmenitiesRaw:     form.amenitiesRaw(),
		ExistingImages:   existing,
		ExistingSupplied: supplied,
		DeletedImages:    deleted,
		Files:            files,
		ExpectedVersion:  version,
		AdminID:          adminIDFromLocals(c),
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	setVersionTag(c, property)
	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Property updated successfully",
		"property": property,
	})
}

// DeleteProperty handles DELETE /api/properties/:id
// @Summary Delete property
// @Description Deletes the record and every listed image
// @Tags properties
// @Produce json
// @Security BearerAuth
// @Param id path int true "Property ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /properties/{id} [delete]
func (s *Server) DeleteProperty(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id", "Property")
	if err != nil {
		return nil
	}

	if err := s.propertyService.DeleteProperty(c.UserContext(), id, adminIDFromLocals(c)); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Property deleted successfully",
	})
}
