// internal/store/store.go
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"intake-bot/internal/common/config"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/common/validation"
	"intake-bot/internal/models"
)

const (
	collectionApplications = "applications"
	collectionUsers        = "users"
	collectionBanned       = "banned_users"

	backupSuffix = ".backup"
	tempSuffix   = ".tmp"
)

// Store owns the three durable collections: the application list, the
// per-user index, and the ban list. It assumes a single writer process; all
// access is serialized through the store mutex.
type Store struct {
	mu     sync.RWMutex
	logger logger.Logger

	dataDir          string
	applicationsPath string
	usersPath        string
	bannedPath       string
	cooldown         time.Duration

	applications []models.Application
	users        map[string]models.UserRecord
	banned       map[string]struct{}

	now func() time.Time
}

// New creates the store and loads all collections from the data directory.
// Corrupt or missing files degrade to empty collections instead of failing
// startup; records failing integrity checks are dropped and the cleaned
// collection is re-persisted.
func New(storageCfg config.StorageConfig, formCfg config.FormConfig, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(storageCfg.DataDir, 0755); err != nil {
		return nil, apperrors.NewStoreIOFailedError("data_dir", err)
	}

	s := &Store{
		logger:           log,
		dataDir:          storageCfg.DataDir,
		applicationsPath: filepath.Join(storageCfg.DataDir, storageCfg.ApplicationsFile),
		usersPath:        filepath.Join(storageCfg.DataDir, storageCfg.UsersFile),
		bannedPath:       filepath.Join(storageCfg.DataDir, storageCfg.BannedFile),
		cooldown:         time.Duration(formCfg.CooldownHours) * time.Hour,
		users:            make(map[string]models.UserRecord),
		banned:           make(map[string]struct{}),
		now:              time.Now,
	}

	s.loadApplications()
	s.loadUsers()
	s.loadBanned()

	return s, nil
}

// ==========================
// Loading
// ==========================

func (s *Store) loadApplications() {
	var raw []json.RawMessage
	if !s.readCollection(s.applicationsPath, collectionApplications, &raw) {
		s.applications = []models.Application{}
		return
	}

	applications := make([]models.Application, 0, len(raw))
	dropped := 0
	for _, entry := range raw {
		var record map[string]interface{}
		if err := json.Unmarshal(entry, &record); err != nil {
			dropped++
			continue
		}
		if result := validation.ValidateApplicationRecord(record); !result.Valid {
			s.logger.Warn("Dropping malformed application record", map[string]interface{}{
				"collection": collectionApplications,
				"errors":     result.GetErrorMessages(),
			})
			dropped++
			continue
		}
		var app models.Application
		if err := json.Unmarshal(entry, &app); err != nil {
			dropped++
			continue
		}
		applications = append(applications, app)
	}

	s.applications = applications
	if dropped > 0 {
		s.logger.Warn("Re-persisting cleaned applications collection", map[string]interface{}{
			"dropped":  dropped,
			"retained": len(applications),
		})
		if err := s.persistApplications(applications); err != nil {
			s.logger.Error("Failed to re-persist cleaned applications", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func (s *Store) loadUsers() {
	var raw map[string]json.RawMessage
	if !s.readCollection(s.usersPath, collectionUsers, &raw) {
		s.users = make(map[string]models.UserRecord)
		return
	}

	users := make(map[string]models.UserRecord, len(raw))
	dropped := 0
	for key, entry := range raw {
		var record map[string]interface{}
		if err := json.Unmarshal(entry, &record); err != nil {
			dropped++
			continue
		}
		if result := validation.ValidateUserRecord(record); !result.Valid {
			s.logger.Warn("Dropping malformed user record", map[string]interface{}{
				"collection": collectionUsers,
				"user_key":   key,
				"errors":     result.GetErrorMessages(),
			})
			dropped++
			continue
		}
		var user models.UserRecord
		if err := json.Unmarshal(entry, &user); err != nil {
			dropped++
			continue
		}
		users[key] = user
	}

	s.users = users
	if dropped > 0 {
		s.logger.Warn("Re-persisting cleaned users collection", map[string]interface{}{
			"dropped":  dropped,
			"retained": len(users),
		})
		if err := s.persistUsers(users); err != nil {
			s.logger.Error("Failed to re-persist cleaned users", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func (s *Store) loadBanned() {
	var ids []string
	if !s.readCollection(s.bannedPath, collectionBanned, &ids) {
		s.banned = make(map[string]struct{})
		return
	}

	banned := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		banned[id] = struct{}{}
	}
	s.banned = banned
}

// readCollection reads a collection file into v. Returns false when the
// caller should start from an empty collection. A file that fails to decode
// is recovered from its backup sibling when possible.
func (s *Store) readCollection(path, name string, v interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.readBackup(path, name, v)
		}
		s.logger.Error("Failed to read collection file", map[string]interface{}{
			"collection": name,
			"error":      err.Error(),
		})
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Error("Collection file is corrupt, trying backup", map[string]interface{}{
			"collection": name,
			"error":      err.Error(),
		})
		return s.readBackup(path, name, v)
	}
	return true
}

func (s *Store) readBackup(path, name string, v interface{}) bool {
	backup, err := os.ReadFile(path + backupSuffix)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(backup, v); err != nil {
		s.logger.Error("Backup file is also corrupt", map[string]interface{}{
			"collection": name,
			"error":      err.Error(),
		})
		return false
	}

	// Put the recovered content back as the primary file
	if err := os.WriteFile(path, backup, 0644); err != nil {
		s.logger.Error("Failed to restore collection from backup", map[string]interface{}{
			"collection": name,
			"error":      err.Error(),
		})
	} else {
		s.logger.Warn("Recovered collection from backup", map[string]interface{}{
			"collection": name,
		})
	}
	return true
}

// ==========================
// Persistence
// ==========================

type pendingWrite struct {
	path string
	name string
	data []byte
}

// persist writes the given collections as one logical transaction. Each file
// is staged to a temp sibling first, then committed by renaming the previous
// version to .backup and the temp file into place. If any commit fails, the
// already-committed files in the batch are rolled back from their backups.
func (s *Store) persist(writes ...pendingWrite) error {
	started := time.Now()

	// Stage everything before touching any live file
	for i, w := range writes {
		if err := os.WriteFile(w.path+tempSuffix, w.data, 0644); err != nil {
			for _, staged := range writes[:i] {
				os.Remove(staged.path + tempSuffix)
			}
			return apperrors.NewStoreIOFailedError(w.name, err)
		}
	}

	committed := make([]pendingWrite, 0, len(writes))
	for _, w := range writes {
		if err := s.commit(w); err != nil {
			s.rollback(committed)
			for _, staged := range writes {
				os.Remove(staged.path + tempSuffix)
			}
			return err
		}
		committed = append(committed, w)
	}

	for _, w := range writes {
		metrics.StoreSaveDuration.WithLabelValues(w.name).Observe(time.Since(started).Seconds())
	}
	return nil
}

func (s *Store) commit(w pendingWrite) error {
	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.path+backupSuffix); err != nil {
			return apperrors.NewStoreIOFailedError(w.name, err)
		}
	}
	if err := os.Rename(w.path+tempSuffix, w.path); err != nil {
		// Bring the previous version back so the primary file is not lost
		if restoreErr := os.Rename(w.path+backupSuffix, w.path); restoreErr != nil {
			s.logger.Error("Failed to restore collection backup", map[string]interface{}{
				"collection": w.name,
				"error":      restoreErr.Error(),
			})
		}
		return apperrors.NewStoreIOFailedError(w.name, err)
	}
	return nil
}

func (s *Store) rollback(committed []pendingWrite) {
	for _, w := range committed {
		if err := os.Rename(w.path+backupSuffix, w.path); err != nil {
			s.logger.Error("Failed to roll back collection", map[string]interface{}{
				"collection": w.name,
				"error":      err.Error(),
			})
		}
	}
}

func (s *Store) applicationsWrite(applications []models.Application) (pendingWrite, error) {
	data, err := json.MarshalIndent(applications, "", "  ")
	if err != nil {
		return pendingWrite{}, apperrors.NewStoreIOFailedError(collectionApplications, err)
	}
	return pendingWrite{path: s.applicationsPath, name: collectionApplications, data: data}, nil
}

func (s *Store) usersWrite(users map[string]models.UserRecord) (pendingWrite, error) {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return pendingWrite{}, apperrors.NewStoreIOFailedError(collectionUsers, err)
	}
	return pendingWrite{path: s.usersPath, name: collectionUsers, data: data}, nil
}

func (s *Store) bannedWrite(banned map[string]struct{}) (pendingWrite, error) {
	ids := make([]string, 0, len(banned))
	for id := range banned {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return pendingWrite{}, apperrors.NewStoreIOFailedError(collectionBanned, err)
	}
	return pendingWrite{path: s.bannedPath, name: collectionBanned, data: data}, nil
}

func (s *Store) persistApplications(applications []models.Application) error {
	w, err := s.applicationsWrite(applications)
	if err != nil {
		return err
	}
	return s.persist(w)
}

func (s *Store) persistUsers(users map[string]models.UserRecord) error {
	w, err := s.usersWrite(users)
	if err != nil {
		return err
	}
	return s.persist(w)
}

// persistBoth writes applications and users together so a failure cannot
// leave one collection updated without the other.
func (s *Store) persistBoth(applications []models.Application, users map[string]models.UserRecord) error {
	appsWrite, err := s.applicationsWrite(applications)
	if err != nil {
		return err
	}
	usersWrite, err := s.usersWrite(users)
	if err != nil {
		return err
	}
	return s.persist(appsWrite, usersWrite)
}

func (s *Store) persistBanned(banned map[string]struct{}) error {
	w, err := s.bannedWrite(banned)
	if err != nil {
		return err
	}
	return s.persist(w)
}
