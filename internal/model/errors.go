package model

import "errors"

var (
	// ErrNotFound - запись не найдена в хранилище.
	ErrNotFound = errors.New("запись не найдена")
	// ErrNoPagesFound - у истории нет ни одной страницы, продолжение невозможно.
	ErrNoPagesFound = errors.New("у истории не найдено ни одной страницы")
	// ErrStoryLocked - для истории уже идет генерация следующей страницы.
	ErrStoryLocked = errors.New("история уже генерируется")
)
