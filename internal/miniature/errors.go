package miniature

import (
	"context"
	"errors"
)

var (
	// ErrInvalidSource - миниатюру нельзя клонировать
	ErrInvalidSource = errors.New("miniature worlds can't be cloned")
	// ErrInvalidTarget - удалять можно только миниатюры
	ErrInvalidTarget = errors.New("provided world is not a miniature world")
	// ErrLinkedMiniatureExists - у мира уже есть связанная миниатюра
	ErrLinkedMiniatureExists = errors.New("this world already has a miniature linked to it")
	// ErrUnresolvedWorld - менеджер миров не знает удаляемый мир
	ErrUnresolvedWorld = errors.New("world is not tracked by the world manager")
	// ErrUnloadedWorld - исходный мир не загружен менеджером миров
	ErrUnloadedWorld = errors.New("source world is not loaded by the world manager")
	// ErrWorldCreation - создание или клонирование не дало мира, доступного по имени
	ErrWorldCreation = errors.New("world creation failed")
)

// errorKind возвращает метку для метрики ошибок
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSource):
		return "invalid_source"
	case errors.Is(err, ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, ErrLinkedMiniatureExists):
		return "linked_exists"
	case errors.Is(err, ErrUnresolvedWorld):
		return "unresolved"
	case errors.Is(err, ErrUnloadedWorld):
		return "unloaded"
	case errors.Is(err, ErrWorldCreation):
		return "creation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "external"
	}
}
