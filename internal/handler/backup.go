package handler

import (
	"log/slog"
	"net/http"

	"github.com/hbkim/iljeong/internal/backup"
	"github.com/hbkim/iljeong/internal/model"
	"github.com/hbkim/iljeong/internal/store"
)

// BackupHandler exposes backup status and history to admins.
type BackupHandler struct {
	manager *backup.Manager
	records *store.BackupStore
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, records *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, records: records, logger: logger}
}

type backupResponse struct {
	Enabled bool                 `json:"enabled"`
	Status  backup.Status        `json:"status"`
	History []model.BackupRecord `json:"history"`
}

// List returns whether backups are configured, the last run result, and
// the most recent history records.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	history, err := h.records.History(20)
	if err != nil {
		h.logger.Error("backup history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load backup history")
		return
	}
	if history == nil {
		history = []model.BackupRecord{}
	}

	writeJSON(w, http.StatusOK, backupResponse{
		Enabled: h.manager.Enabled(),
		Status:  h.manager.Status(),
		History: history,
	})
}
