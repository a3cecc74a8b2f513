// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/pdiddy/pii-masker/internal/maskerr"
	"github.com/pdiddy/pii-masker/pkg/types"
)

// contentTypes covers the attachment kinds the masking pipeline handles.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
}

// ContentType guesses an attachment's MIME type from its extension.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// SaveMaskedEmail stores a masked outbound email. Each attachment is read
// from the artifact area, preferring its masked copy, and embedded as
// base64. The record id is a new UUID.
func (s *Store) SaveMaskedEmail(ctx context.Context, art *Artifacts, draft types.EmailDraft) (types.MaskedEmail, error) {
	rec := types.MaskedEmail{
		ID:           uuid.NewString(),
		From:         draft.From,
		To:           draft.To,
		Subject:      draft.Subject,
		Body:         draft.Body,
		MaskedByType: draft.MaskedCounts(),
		RunID:        draft.RunID,
		CreatedAt:    time.Now().UTC(),
	}
	if rec.To == nil {
		rec.To = []string{}
	}
	rec.Attachments = make([]types.EmailAttachment, 0, len(draft.Attachments))
	for _, name := range draft.Attachments {
		att, err := loadAttachment(art, name)
		if err != nil {
			return types.MaskedEmail{}, err
		}
		rec.Attachments = append(rec.Attachments, att)
	}

	to, _ := json.Marshal(rec.To)
	atts, err := json.Marshal(rec.Attachments)
	if err != nil {
		return types.MaskedEmail{}, maskerr.Persistence(err, "encoding attachments")
	}
	counts, _ := json.Marshal(rec.MaskedByType)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO masked_emails (id, run_id, sender, recipients, subject, body, attachments, masked_by_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.From, string(to), rec.Subject, rec.Body, string(atts), string(counts), formatTime(rec.CreatedAt))
	if err != nil {
		return types.MaskedEmail{}, maskerr.Persistence(err, "saving masked email")
	}
	return rec, nil
}

func loadAttachment(art *Artifacts, name string) (types.EmailAttachment, error) {
	path, masked := art.Masked(name)
	if !masked {
		var err error
		if path, err = art.Source(name); err != nil {
			return types.EmailAttachment{}, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.EmailAttachment{}, fmt.Errorf("reading attachment %s: %w", name, err)
	}
	return types.EmailAttachment{
		Filename:    name,
		ContentType: ContentType(name),
		Size:        int64(len(data)),
		Masked:      masked,
		Data:        base64.StdEncoding.EncodeToString(data),
	}, nil
}

// GetMaskedEmail loads a stored email by id.
func (s *Store) GetMaskedEmail(ctx context.Context, id string) (types.MaskedEmail, error) {
	var (
		rec                       types.MaskedEmail
		runID, subject, body      sql.NullString
		to, atts, counts, created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, sender, recipients, subject, body, attachments, masked_by_type, created_at
		 FROM masked_emails WHERE id = ?`, id).
		Scan(&rec.ID, &runID, &rec.From, &to, &subject, &body, &atts, &counts, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return types.MaskedEmail{}, errors.Wrapf(ErrNoRecord, "email %s", id)
	}
	if err != nil {
		return types.MaskedEmail{}, fmt.Errorf("querying email %s: %w", id, err)
	}
	rec.RunID, rec.Subject, rec.Body = runID.String, subject.String, body.String
	rec.CreatedAt = parseTime(created)
	for _, f := range []struct {
		raw string
		dst any
	}{{to, &rec.To}, {atts, &rec.Attachments}, {counts, &rec.MaskedByType}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return types.MaskedEmail{}, fmt.Errorf("decoding email %s: %w", id, err)
		}
	}
	return rec, nil
}
