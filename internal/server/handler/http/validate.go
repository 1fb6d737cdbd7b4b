package http

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atinyakov/sms-drafts/internal/models"
)

const draftTypeTag = "drafttype"

// draftKeyParams are the path parameters naming a draft.
type draftKeyParams struct {
	Type string `json:"type" validate:"required,drafttype"`
	ID   string `json:"id" validate:"required,max=128"`
}

// draftTypeParams is the path parameter naming a draft type.
type draftTypeParams struct {
	Type string `json:"type" validate:"required,drafttype"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(draftTypeTag, func(fl validator.FieldLevel) bool {
		return models.DraftType(fl.Field().String()).Valid()
	})
	return v
}

// fieldErrors turns validation errors into a field -> message map.
func fieldErrors(err error) map[string]string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "this field is required"
		case "max":
			out[fe.Field()] = "must be at most " + fe.Param() + " characters"
		case draftTypeTag:
			out[fe.Field()] = "unknown draft type"
		default:
			out[fe.Field()] = "invalid value"
		}
	}
	return out
}

func (h *DraftHandler) keyFromPath(r *http.Request) (models.DraftKey, map[string]string) {
	p := draftKeyParams{Type: chi.URLParam(r, "type"), ID: chi.URLParam(r, "id")}
	if err := h.validate.Struct(p); err != nil {
		return models.DraftKey{}, fieldErrors(err)
	}
	return models.DraftKey{Type: models.DraftType(p.Type), ID: p.ID}, nil
}

func (h *DraftHandler) typeFromPath(r *http.Request) (models.DraftType, map[string]string) {
	return h.parseType(chi.URLParam(r, "type"))
}

func (h *DraftHandler) parseType(s string) (models.DraftType, map[string]string) {
	p := draftTypeParams{Type: s}
	if err := h.validate.Struct(p); err != nil {
		return "", fieldErrors(err)
	}
	return models.DraftType(p.Type), nil
}
