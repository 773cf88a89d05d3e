package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/decinco/miniworld/internal/vec"
	"github.com/decinco/miniworld/internal/world"
	"github.com/decinco/miniworld/internal/world/block"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

// ErrNotReady возвращается после Close
var ErrNotReady = errors.New("хранилище не готово")

// Флаги формата значения: первый байт записи
const (
	formatJSON byte = 'j'
	formatZstd byte = 'z'
)

// WorldStorage хранит миры в BadgerDB.
//
// Ключи:
//
//	world:<name>:meta            - WorldRecord
//	world:<name>:chunk:<x>:<z>   - ChunkRecord
type WorldStorage struct {
	db       *badger.DB
	dbPath   string
	mutex    sync.RWMutex
	isReady  bool
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// WorldRecord - метаданные сохранённого мира
type WorldRecord struct {
	Name     string         `json:"name"`
	Settings world.Settings `json:"settings"`
	SavedAt  time.Time      `json:"saved_at"`
}

// ChunkRecord - сериализованный чанк: столбцы в порядке x*16+z
type ChunkRecord struct {
	Coords  vec.Vec2   `json:"coords"`
	Columns [][]uint16 `json:"columns"`
}

// NewWorldStorage открывает хранилище в <dataPath>/worlds
func NewWorldStorage(dataPath string, compress bool) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "worlds")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	return open(opts, dbPath, compress)
}

// NewInMemoryWorldStorage открывает хранилище без записи на диск (для тестов и dry-run)
func NewInMemoryWorldStorage(compress bool) (*WorldStorage, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	return open(opts, "", compress)
}

func open(opts badger.Options, dbPath string, compress bool) (*WorldStorage, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &WorldStorage{
		db:       db,
		dbPath:   dbPath,
		isReady:  true,
		compress: compress,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	ws.encoder.Close()
	ws.decoder.Close()
	return ws.db.Close()
}

func worldPrefix(name string) []byte {
	return []byte("world:" + name + ":")
}

func metaKey(name string) []byte {
	return []byte("world:" + name + ":meta")
}

func chunkKey(name string, coords vec.Vec2) []byte {
	return []byte(fmt.Sprintf("world:%s:chunk:%d:%d", name, coords.X, coords.Z))
}

func (ws *WorldStorage) encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации: %w", err)
	}
	if !ws.compress {
		return append([]byte{formatJSON}, data...), nil
	}
	return ws.encoder.EncodeAll(data, []byte{formatZstd}), nil
}

func (ws *WorldStorage) decode(raw []byte, v interface{}) error {
	if len(raw) == 0 {
		return errors.New("пустая запись")
	}

	data := raw[1:]
	switch raw[0] {
	case formatJSON:
	case formatZstd:
		var err error
		data, err = ws.decoder.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("ошибка распаковки zstd: %w", err)
		}
	default:
		return fmt.Errorf("неизвестный формат записи %q", raw[0])
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("ошибка десериализации: %w", err)
	}
	return nil
}

func toRecord(chunk *world.Chunk) ChunkRecord {
	rec := ChunkRecord{
		Coords:  chunk.Coords,
		Columns: make([][]uint16, world.ChunkSize*world.ChunkSize),
	}
	for x := 0; x < world.ChunkSize; x++ {
		for z := 0; z < world.ChunkSize; z++ {
			col := chunk.Column(x, z)
			out := make([]uint16, len(col))
			for i, id := range col {
				out[i] = uint16(id)
			}
			rec.Columns[x*world.ChunkSize+z] = out
		}
	}
	return rec
}

func fromRecord(rec ChunkRecord) *world.Chunk {
	chunk := world.NewChunk(rec.Coords)
	for i, col := range rec.Columns {
		if i >= world.ChunkSize*world.ChunkSize || len(col) == 0 {
			continue
		}
		ids := make([]block.BlockID, len(col))
		for y, id := range col {
			ids[y] = block.BlockID(id)
		}
		chunk.SetColumn(i/world.ChunkSize, i%world.ChunkSize, ids)
	}
	return chunk
}

// SaveWorld сохраняет метаданные мира и все изменённые чанки.
// Реализует world.Saver.
func (ws *WorldStorage) SaveWorld(w *world.World) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	meta, err := ws.encode(WorldRecord{
		Name:     w.Name(),
		Settings: w.Settings(),
		SavedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	wb := ws.db.NewWriteBatch()
	defer wb.Cancel()

	if err := wb.Set(metaKey(w.Name()), meta); err != nil {
		return fmt.Errorf("ошибка записи метаданных: %w", err)
	}

	var saved []*world.Chunk
	for _, chunk := range w.LoadedChunks() {
		if !chunk.IsDirty() {
			continue
		}
		data, err := ws.encode(toRecord(chunk))
		if err != nil {
			return err
		}
		if err := wb.Set(chunkKey(w.Name(), chunk.Coords), data); err != nil {
			return fmt.Errorf("ошибка записи чанка %v: %w", chunk.Coords, err)
		}
		saved = append(saved, chunk)
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	for _, chunk := range saved {
		chunk.ClearChanges()
	}
	return nil
}

// LoadChunk загружает чанк мира; ok == false, если чанк не сохранялся
func (ws *WorldStorage) LoadChunk(name string, coords vec.Vec2) (*world.Chunk, bool, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, false, ErrNotReady
	}

	var raw []byte
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(name, coords))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var rec ChunkRecord
	if err := ws.decode(raw, &rec); err != nil {
		return nil, false, err
	}
	return fromRecord(rec), true, nil
}

// LoadWorld загружает метаданные и все сохранённые чанки мира
func (ws *WorldStorage) LoadWorld(name string) (*WorldRecord, []*world.Chunk, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, nil, ErrNotReady
	}

	var (
		record *WorldRecord
		chunks []*world.Chunk
	)
	prefix := worldPrefix(name)
	err := ws.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if strings.HasSuffix(key, ":meta") {
				var rec WorldRecord
				if err := ws.decode(raw, &rec); err != nil {
					return fmt.Errorf("мир %s: %w", name, err)
				}
				record = &rec
				continue
			}

			var rec ChunkRecord
			if err := ws.decode(raw, &rec); err != nil {
				return fmt.Errorf("чанк %s: %w", key, err)
			}
			chunks = append(chunks, fromRecord(rec))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, fmt.Errorf("мир %s не найден в хранилище: %w", name, badger.ErrKeyNotFound)
	}
	return record, chunks, nil
}

// ListWorlds возвращает метаданные всех сохранённых миров, отсортированные по имени
func (ws *WorldStorage) ListWorlds() ([]WorldRecord, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrNotReady
	}

	var records []WorldRecord
	prefix := []byte("world:")
	err := ws.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), ":meta") {
				continue
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec WorldRecord
			if err := ws.decode(raw, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка миров: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// DeleteWorld удаляет все данные мира
func (ws *WorldStorage) DeleteWorld(name string) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	if err := ws.db.DropPrefix(worldPrefix(name)); err != nil {
		return fmt.Errorf("ошибка удаления мира %s: %w", name, err)
	}
	return nil
}

// HasWorld проверяет, сохранялся ли мир
func (ws *WorldStorage) HasWorld(name string) (bool, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return false, ErrNotReady
	}

	err := ws.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(name))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
