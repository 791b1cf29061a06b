package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lostfound/apiserver/internal/imaging"
	"github.com/lostfound/apiserver/internal/query"
	"github.com/lostfound/apiserver/internal/services"
	"github.com/lostfound/apiserver/types"
)

const (
	maxBodyBytes       = 5 << 20
	maxMultipartMemory = 8 << 20
	formFieldImage     = "image"
	formFieldType      = "type"
	formFieldName      = "itemName"
	formFieldLocation  = "location"
	formFieldDesc      = "description"
	formFieldContact   = "contact"
)

var errBodyTooLarge = errors.New("request body too large")

// ItemHandler provides HTTP handlers for items.
type ItemHandler struct {
	items  *services.ItemService
	logger *zap.Logger
}

func NewItemHandler(items *services.ItemService, logger *zap.Logger) *ItemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemHandler{items: items, logger: logger}
}

// ItemRouter registers item routes on the given router.
func ItemRouter(r chi.Router, items *services.ItemService, logger *zap.Logger) {
	handler := NewItemHandler(items, logger)

	r.Get("/", handler.ListItems)
	r.Post("/", handler.CreateItem)
	r.Route("/{itemID}", func(r chi.Router) {
		r.Get("/", handler.GetItem)
		r.Patch("/", handler.UpdateItem)
		r.Delete("/", handler.DeleteItem)
		r.Post("/reveal-contact", handler.RevealContact)
	})
}

// ListItems returns matching items newest first. Contacts are returned in
// full unless masked=true is given.
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	items, err := h.items.List(r.Context(), query.ParseFilter(values))
	if err != nil {
		writeServiceError(w, h.logger, err, "Database error")
		return
	}

	if masked, _ := strconv.ParseBool(values.Get("masked")); masked {
		for i := range items {
			items[i] = items[i].Masked()
		}
	}
	if items == nil {
		items = []types.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.Get(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// CreateItem accepts multipart/form-data with an optional "image" file,
// a urlencoded form, or a JSON body.
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	in, upload, err := parseCreateRequest(r)
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, kindValidation, err.Error())
			return
		}
		writeServiceError(w, h.logger, err, "Failed to create item")
		return
	}

	item, err := h.items.Create(r.Context(), in, upload)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create item")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem changes the description of an item. It is the only mutable
// field.
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	description, err := parseDescription(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update item")
		return
	}

	if err := h.items.Update(r.Context(), chi.URLParam(r, "itemID"), description); err != nil {
		writeServiceError(w, h.logger, err, "Failed to update item")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Item updated"})
}

func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.items.Delete(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete item")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Item deleted"})
}

func (h *ItemHandler) RevealContact(w http.ResponseWriter, r *http.Request) {
	contact, err := h.items.RevealContact(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"contact": contact})
}

func parseCreateRequest(r *http.Request) (types.NewItemInput, *services.Upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			if isTooLarge(err) {
				return types.NewItemInput{}, nil, &services.AssetError{Reason: "Image must be 1.5 MB or smaller"}
			}
			return types.NewItemInput{}, nil, invalidBody("invalid multipart form")
		}
		upload, err := parseImage(r)
		if err != nil {
			return types.NewItemInput{}, nil, err
		}
		return formInput(r), upload, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			if isTooLarge(err) {
				return types.NewItemInput{}, nil, errBodyTooLarge
			}
			return types.NewItemInput{}, nil, invalidBody("invalid form body")
		}
		return formInput(r), nil, nil

	default:
		var in types.NewItemInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			if isTooLarge(err) {
				return types.NewItemInput{}, nil, errBodyTooLarge
			}
			if errors.Is(err, io.EOF) {
				return in, nil, nil
			}
			return types.NewItemInput{}, nil, invalidBody("invalid JSON body")
		}
		return in, nil, nil
	}
}

func formInput(r *http.Request) types.NewItemInput {
	return types.NewItemInput{
		Type:        r.FormValue(formFieldType),
		ItemName:    r.FormValue(formFieldName),
		Location:    r.FormValue(formFieldLocation),
		Description: r.FormValue(formFieldDesc),
		Contact:     r.FormValue(formFieldContact),
	}
}

// parseImage reads the optional image part fully into memory, refusing to
// buffer more than imaging.MaxBytes.
func parseImage(r *http.Request) (*services.Upload, error) {
	files := r.MultipartForm.File[formFieldImage]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, &services.AssetError{Reason: "Only one image is allowed"}
	}

	header := files[0]
	if header.Size > imaging.MaxBytes {
		return nil, &services.AssetError{Reason: "Image must be 1.5 MB or smaller"}
	}
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, imaging.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return &services.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// parseDescription returns nil when the body names no description.
func parseDescription(r *http.Request) (*string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, invalidBody("invalid form body")
		}
		if _, ok := r.Form[formFieldDesc]; !ok {
			return nil, nil
		}
		desc := r.Form.Get(formFieldDesc)
		return &desc, nil
	}

	var body struct {
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, invalidBody("invalid JSON body")
	}
	return body.Description, nil
}

func invalidBody(message string) error {
	return &services.ValidationError{Problems: []string{message}}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
