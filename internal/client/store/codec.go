package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
)

var errMissingID = errors.New("record without id")

// legacyHeader picks header fields out of payloads written before records
// had an envelope. Both spellings used by earlier releases are accepted.
type legacyHeader struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	OwnerIDCamel   string     `json:"ownerId"`
	UserID         string     `json:"userId"`
	CreatedAt      *time.Time `json:"created_at"`
	CreatedAtCamel *time.Time `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updated_at"`
	UpdatedAtCamel *time.Time `json:"updatedAt"`
	DeletedAt      *time.Time `json:"deleted_at"`
	DeletedAtCamel *time.Time `json:"deletedAt"`
}

func firstTime(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

func firstString(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

// decodeRecord accepts an enveloped record or a bare legacy payload.
func decodeRecord(raw json.RawMessage) (models.Record, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return models.Record{}, err
	}

	if _, ok := probe["data"]; ok {
		var r models.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return models.Record{}, err
		}
		if r.ID == "" {
			return models.Record{}, errMissingID
		}
		return r, nil
	}

	var h legacyHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return models.Record{}, err
	}
	if h.ID == "" {
		return models.Record{}, errMissingID
	}
	r := models.Record{
		ID:        h.ID,
		OwnerID:   firstString(h.OwnerID, h.OwnerIDCamel, h.UserID),
		DeletedAt: firstTime(h.DeletedAt, h.DeletedAtCamel),
		Data:      append(json.RawMessage(nil), raw...),
	}
	if t := firstTime(h.CreatedAt, h.CreatedAtCamel); t != nil {
		r.CreatedAt = *t
	}
	if t := firstTime(h.UpdatedAt, h.UpdatedAtCamel); t != nil {
		r.UpdatedAt = *t
	}
	return r, nil
}

// decodeRecords parses one stored payload. A payload that is not a JSON
// array is corrupt as a whole; bad elements are dropped and reported.
func decodeRecords(b []byte) ([]models.Record, []error, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrCorruptPayload, err)
	}

	out := make([]models.Record, 0, len(raws))
	var bad []error
	for i, raw := range raws {
		r, err := decodeRecord(raw)
		if err != nil {
			bad = append(bad, fmt.Errorf("%w: element %d: %v", common.ErrCorruptPayload, i, err))
			continue
		}
		out = append(out, r)
	}
	return out, bad, nil
}
