// Package creds persists per-owner external-account bindings (Steam id and
// API key) plus the synchronized game library used by the periodic report.
package creds

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
)

// GameRecord is one linked library item.
type GameRecord struct {
	Name            string `json:"name"`
	PlaytimeMinutes int    `json:"playtime_minutes"`
	Achievement     string `json:"achievement"` // ratio like "0.43", or placeholder text
	ImageRef        string `json:"image_ref,omitempty"`
	LastPlayed      int64  `json:"last_played,omitempty"`
}

// Record is the per-owner credential record. Only fully validated records are
// ever persisted: the two-phase bind conversation keeps partial state in
// memory and commits once the profile lookup succeeds.
type Record struct {
	OwnerID string `json:"owner_id"`
	SteamID string `json:"steam_id"`
	APIKey  string `json:"api_key"`
	Bound   bool   `json:"bound"`
	// Channel and ChatID remember where the binding happened so the periodic
	// report can be delivered there.
	Channel  string             `json:"channel,omitempty"`
	ChatID   string             `json:"chat_id,omitempty"`
	LastSync time.Time          `json:"last_sync"`
	Games    map[int]GameRecord `json:"games,omitempty"`
}

type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(ownerID string) string {
	return filepath.Join(s.dir, ownerID+".secret")
}

func (s *Store) Exists(ownerID string) bool {
	_, err := os.Stat(s.path(ownerID))
	return err == nil
}

// Read loads the record for ownerID, failing with a NotBound tip if absent.
func (s *Store) Read(ownerID string) (*Record, error) {
	raw, err := os.ReadFile(s.path(ownerID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierr.New(apierr.NotBound)
		}
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every owner id with a persisted record. A missing store
// directory means nobody is bound yet.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var owners []string
	for _, e := range entries {
		if name := e.Name(); strings.HasSuffix(name, ".secret") {
			owners = append(owners, strings.TrimSuffix(name, ".secret"))
		}
	}
	return owners, nil
}

// Write persists the record. With overwrite false an existing record fails
// with an AlreadyBound tip; with overwrite true the record is fully replaced,
// never merged. The write is atomic (tmp + rename).
func (s *Store) Write(rec *Record, overwrite bool) error {
	if !overwrite && s.Exists(rec.OwnerID) {
		return apierr.New(apierr.AlreadyBound)
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	tmp, err := os.CreateTemp(s.dir, "creds-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, s.path(rec.OwnerID)); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
