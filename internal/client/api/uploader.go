package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/atinyakov/sms-drafts/internal/models"
)

// DefaultEndpoints maps each draft type to the backend endpoint accepting it.
var DefaultEndpoints = map[models.DraftType]string{
	models.CAScores:      "/academics/ca-scores",
	models.ExamScores:    "/academics/exam-scores",
	models.AdmissionForm: "/students/admissions",
	models.Message:       "/messages",
}

// Uploader posts draft data to the endpoint for its type.
type Uploader struct {
	Client    *Client
	Endpoints map[models.DraftType]string
}

// NewUploader returns an Uploader using DefaultEndpoints.
func NewUploader(c *Client) *Uploader {
	return &Uploader{Client: c, Endpoints: DefaultEndpoints}
}

// Upload sends d.Data. The Idempotency-Key header identifies this exact
// revision of the draft so the backend can drop replays.
func (u *Uploader) Upload(ctx context.Context, d models.Draft) error {
	path, ok := u.Endpoints[d.Type]
	if !ok {
		return fmt.Errorf("%w: no endpoint for %q", models.ErrUnknownDraftType, d.Type)
	}
	h := http.Header{}
	h.Set("Idempotency-Key", IdempotencyKey(d))
	_, err := u.Client.Do(ctx, http.MethodPost, path, d.Data, nil, h)
	return err
}

// IdempotencyKey returns "<type>:<id>:<savedAt unix nanos>".
func IdempotencyKey(d models.Draft) string {
	return string(d.Type) + ":" + d.ID + ":" + strconv.FormatInt(d.SavedAt.UnixNano(), 10)
}
