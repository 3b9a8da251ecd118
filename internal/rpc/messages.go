package rpc

import (
	"time"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
)

type UpsertRequest struct {
	Entity  models.EntityType `json:"entity"`
	Records []models.Record   `json:"records"`
}

type UpsertResponse struct {
	Upserted int `json:"upserted"`
}

// QueryRequest carries no owner: the server scopes it to the token's owner.
type QueryRequest struct {
	Entity         models.EntityType `json:"entity"`
	UpdatedAfter   *time.Time        `json:"updated_after,omitempty"`
	AfterID        string            `json:"after_id,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	ExcludeDeleted bool              `json:"exclude_deleted,omitempty"`
}

type QueryResponse struct {
	Records []models.Record `json:"records"`
}

type DeleteRequest struct {
	Entity models.EntityType `json:"entity"`
	ID     string            `json:"id"`
}

type DeleteResponse struct{}
