package miniature

import (
	"context"
	"errors"
)

// CleanMiniatures удаляет все загруженные миры с именем миниатюры.
// Не зависит от счётчиков реестра: решение принимается только по имени мира,
// поэтому очистка работает и сразу после старта процесса.
// Ошибка одного мира не останавливает обход; возвращаются все ошибки.
func (m *Manager) CleanMiniatures(ctx context.Context) error {
	var (
		errs    []error
		removed int
	)

	for _, w := range m.dir.ListLoadedWorlds() {
		if !IsMiniatureName(w.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := m.removeMiniature(ctx, w, true); err != nil {
			m.log.Error("Миниатюра %s не удалена при очистке: %v", w.Name(), err)
			errs = append(errs, err)
			continue
		}
		removed++
	}

	m.log.Info("Очистка миниатюр завершена: удалено %d, ошибок %d", removed, len(errs))
	return errors.Join(errs...)
}
