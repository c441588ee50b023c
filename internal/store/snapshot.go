// Package store реализует durable снапшот позиций в плоском JSON файле.
//
// Файл перезаписывается целиком при каждом изменении: объём данных
// мал (единицы позиций), атомарность обеспечивается записью во
// временный файл с последующим rename.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"sniper/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State - полное содержимое снапшота
type State struct {
	Positions map[string]*models.Position `json:"positions"`
	Order     []string                    `json:"order"` // порядок открытия (mint)
	Stats     models.TradeStats           `json:"stats"`
	LastSaved time.Time                   `json:"last_saved"`
}

// SnapshotStore пишет и читает снапшот по фиксированному пути
type SnapshotStore struct {
	path string
}

// NewSnapshotStore создаёт store для указанного файла
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Path возвращает путь к файлу снапшота
func (s *SnapshotStore) Path() string {
	return s.path
}

// Load читает снапшот с диска
//
// Отсутствующий файл - не ошибка: возвращается пустое состояние
// (первый запуск). Повреждённый JSON - ошибка, оператор должен
// разобраться сам, молча затирать файл нельзя.
func (s *SnapshotStore) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyState(), nil
		}
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", s.path, err)
	}

	if state.Positions == nil {
		state.Positions = make(map[string]*models.Position)
	}

	// Снапшоты старого формата не содержат order - восстанавливаем
	// из map (порядок неопределён, но позиции не теряются)
	if len(state.Order) == 0 && len(state.Positions) > 0 {
		for mint := range state.Positions {
			state.Order = append(state.Order, mint)
		}
	}

	return &state, nil
}

// Save перезаписывает снапшот целиком
//
// Запись через временный файл + rename: при падении посреди записи
// на диске остаётся либо старая, либо новая версия, не огрызок.
func (s *SnapshotStore) Save(state *State) error {
	state.LastSaved = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}

	return nil
}

func emptyState() *State {
	return &State{
		Positions: make(map[string]*models.Position),
	}
}
