package server

import (
	"context"
	"errors"

	"github.com/hazyhaar/jobclip/kit"
	"github.com/hazyhaar/jobclip/popup"
	"github.com/hazyhaar/jobclip/store"
)

// RecordSaver persists assembled records for the authenticated caller. It
// reads the owner from the request context the auth middleware stamped.
type RecordSaver struct {
	Store *store.Store
}

// NewRecordSaver wires the store as the popup controller's saver.
func NewRecordSaver(st *store.Store) *RecordSaver {
	return &RecordSaver{Store: st}
}

// SaveRecord implements popup.Saver.
func (s *RecordSaver) SaveRecord(ctx context.Context, rec popup.Record) error {
	owner := kit.GetUserID(ctx)
	if owner == "" {
		return errors.New("server: no authenticated user in context")
	}
	return s.Store.InsertRecord(ctx, &store.JobRecord{
		OwnerID:        owner,
		JobTitle:       rec.JobTitle,
		CompanyName:    rec.CompanyName,
		JobURL:         rec.JobURL,
		JobDescription: rec.JobDescription,
	})
}
