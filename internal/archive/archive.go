// Package archive uploads snappy-compressed roster artifacts to object
// storage. Archival is owner-only and goes through the registry's
// authorization, so the same predicate guards exports and archives.
package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/golang/snappy"

	rcerrors "github.com/rollcall/rollcall/internal/errors"
	"github.com/rollcall/rollcall/internal/registry"
	"github.com/rollcall/rollcall/internal/storage"
)

// Archiver copies roster artifacts into an object store.
type Archiver struct {
	reg    registry.Registry
	store  storage.ObjectStorage
	prefix string
}

// NewArchiver creates an archiver writing under the given object prefix.
func NewArchiver(reg registry.Registry, store storage.ObjectStorage, prefix string) *Archiver {
	if prefix == "" {
		prefix = "rosters"
	}
	return &Archiver{reg: reg, store: store, prefix: prefix}
}

// ObjectPath returns the archive object key for an event.
func (a *Archiver) ObjectPath(eventID int64) string {
	return fmt.Sprintf("%s/%d.csv.snappy", a.prefix, eventID)
}

// Archive compresses and uploads the event's roster. The requester must be
// the event owner; authorization failures are the registry's typed errors.
func (a *Archiver) Archive(ctx context.Context, eventID, requester int64) (string, error) {
	path, err := a.reg.GetExportPath(ctx, eventID, requester)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", rcerrors.NewRosterError(rcerrors.CodeRosterReadFailed,
			fmt.Sprintf("failed to read roster for event %d", eventID), err)
	}

	objectPath := a.ObjectPath(eventID)
	if err := a.store.Put(ctx, objectPath, snappy.Encode(nil, data)); err != nil {
		return "", rcerrors.NewStorageError(rcerrors.CodeUploadFailed,
			fmt.Sprintf("failed to upload archive for event %d", eventID), err)
	}
	return objectPath, nil
}

// Fetch downloads and decompresses an archived roster. Authorization is the
// same owner check as Archive.
func (a *Archiver) Fetch(ctx context.Context, eventID, requester int64) ([]byte, error) {
	if _, err := a.reg.GetExportPath(ctx, eventID, requester); err != nil {
		return nil, err
	}

	compressed, err := a.store.Get(ctx, a.ObjectPath(eventID))
	if err != nil {
		return nil, rcerrors.NewStorageError(rcerrors.CodeDownloadFailed,
			fmt.Sprintf("failed to download archive for event %d", eventID), err)
	}

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, rcerrors.NewStorageError(rcerrors.CodeDownloadFailed,
			fmt.Sprintf("archive for event %d is corrupt", eventID), err)
	}
	return data, nil
}
